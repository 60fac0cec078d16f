package events

import (
	"fmt"

	"github.com/thebeyondr/sekiva/lib/rpc"
	"github.com/thebeyondr/sekiva/modules/common"
)

// Events organizations send to the factory, to their ballots and to themselves.
// The discriminant byte is the variant's wire tag.
type OrganizationEvent interface {
	rpc.Writable
	Discriminant() uint8
	GetProcessId() string
	GetTimestamp() int64
}

const (
	BALLOT_DEPLOYED            uint8 = 0
	MEMBERS_ADDED              uint8 = 1
	MEMBERS_REMOVED            uint8 = 2
	BALLOT_DEPLOY_FAILED       uint8 = 3
	ORGANIZATION_DEPLOYED      uint8 = 4
	ORGANIZATION_DEPLOY_FAILED uint8 = 5
)

type BallotDeployed struct {
	Organization common.Address
	Ballot       common.Address
	Title        string
	Timestamp    int64
	ProcessId    string
}

type MembersAdded struct {
	Members      []common.Address
	Organization common.Address
	Timestamp    int64
	ProcessId    string
	Nonce        uint64
}

type MembersRemoved struct {
	Members      []common.Address
	Organization common.Address
	Timestamp    int64
	ProcessId    string
	Nonce        uint64
}

type BallotDeployFailed struct {
	Organization common.Address
	Reason       string
	Timestamp    int64
	ProcessId    string
}

type OrganizationDeployed struct {
	Factory      common.Address
	Organization common.Address
	Timestamp    int64
	ProcessId    string
}

// Reported by the factory to itself when an organization deployment failed
type OrganizationDeployFailed struct {
	Factory       common.Address
	Administrator common.Address
	Reason        string
	Timestamp     int64
	ProcessId     string
}

func (BallotDeployed) Discriminant() uint8           { return BALLOT_DEPLOYED }
func (MembersAdded) Discriminant() uint8             { return MEMBERS_ADDED }
func (MembersRemoved) Discriminant() uint8           { return MEMBERS_REMOVED }
func (BallotDeployFailed) Discriminant() uint8       { return BALLOT_DEPLOY_FAILED }
func (OrganizationDeployed) Discriminant() uint8     { return ORGANIZATION_DEPLOYED }
func (OrganizationDeployFailed) Discriminant() uint8 { return ORGANIZATION_DEPLOY_FAILED }

func (e BallotDeployed) GetProcessId() string           { return e.ProcessId }
func (e MembersAdded) GetProcessId() string             { return e.ProcessId }
func (e MembersRemoved) GetProcessId() string           { return e.ProcessId }
func (e BallotDeployFailed) GetProcessId() string       { return e.ProcessId }
func (e OrganizationDeployed) GetProcessId() string     { return e.ProcessId }
func (e OrganizationDeployFailed) GetProcessId() string { return e.ProcessId }

func (e BallotDeployed) GetTimestamp() int64           { return e.Timestamp }
func (e MembersAdded) GetTimestamp() int64             { return e.Timestamp }
func (e MembersRemoved) GetTimestamp() int64           { return e.Timestamp }
func (e BallotDeployFailed) GetTimestamp() int64       { return e.Timestamp }
func (e OrganizationDeployed) GetTimestamp() int64     { return e.Timestamp }
func (e OrganizationDeployFailed) GetTimestamp() int64 { return e.Timestamp }

func (e BallotDeployed) WriteRPC(w *rpc.Writer) {
	w.WriteU8(e.Discriminant())
	e.Organization.WriteRPC(w)
	e.Ballot.WriteRPC(w)
	w.WriteString(e.Title)
	w.WriteI64(e.Timestamp)
	w.WriteString(e.ProcessId)
}

func (e MembersAdded) WriteRPC(w *rpc.Writer) {
	w.WriteU8(e.Discriminant())
	common.WriteAddresses(w, e.Members)
	e.Organization.WriteRPC(w)
	w.WriteI64(e.Timestamp)
	w.WriteString(e.ProcessId)
	w.WriteU64(e.Nonce)
}

func (e MembersRemoved) WriteRPC(w *rpc.Writer) {
	w.WriteU8(e.Discriminant())
	common.WriteAddresses(w, e.Members)
	e.Organization.WriteRPC(w)
	w.WriteI64(e.Timestamp)
	w.WriteString(e.ProcessId)
	w.WriteU64(e.Nonce)
}

func (e BallotDeployFailed) WriteRPC(w *rpc.Writer) {
	w.WriteU8(e.Discriminant())
	e.Organization.WriteRPC(w)
	w.WriteString(e.Reason)
	w.WriteI64(e.Timestamp)
	w.WriteString(e.ProcessId)
}

func (e OrganizationDeployed) WriteRPC(w *rpc.Writer) {
	w.WriteU8(e.Discriminant())
	e.Factory.WriteRPC(w)
	e.Organization.WriteRPC(w)
	w.WriteI64(e.Timestamp)
	w.WriteString(e.ProcessId)
}

func (e OrganizationDeployFailed) WriteRPC(w *rpc.Writer) {
	w.WriteU8(e.Discriminant())
	e.Factory.WriteRPC(w)
	e.Administrator.WriteRPC(w)
	w.WriteString(e.Reason)
	w.WriteI64(e.Timestamp)
	w.WriteString(e.ProcessId)
}

func ReadOrganizationEvent(r *rpc.Reader) OrganizationEvent {
	tag := r.ReadU8()
	if r.Err() != nil {
		return nil
	}
	var ev OrganizationEvent
	switch tag {
	case BALLOT_DEPLOYED:
		ev = BallotDeployed{
			Organization: common.ReadAddress(r),
			Ballot:       common.ReadAddress(r),
			Title:        r.ReadString(),
			Timestamp:    r.ReadI64(),
			ProcessId:    r.ReadString(),
		}
	case MEMBERS_ADDED:
		ev = MembersAdded{
			Members:      common.ReadAddresses(r),
			Organization: common.ReadAddress(r),
			Timestamp:    r.ReadI64(),
			ProcessId:    r.ReadString(),
			Nonce:        r.ReadU64(),
		}
	case MEMBERS_REMOVED:
		ev = MembersRemoved{
			Members:      common.ReadAddresses(r),
			Organization: common.ReadAddress(r),
			Timestamp:    r.ReadI64(),
			ProcessId:    r.ReadString(),
			Nonce:        r.ReadU64(),
		}
	case BALLOT_DEPLOY_FAILED:
		ev = BallotDeployFailed{
			Organization: common.ReadAddress(r),
			Reason:       r.ReadString(),
			Timestamp:    r.ReadI64(),
			ProcessId:    r.ReadString(),
		}
	case ORGANIZATION_DEPLOYED:
		ev = OrganizationDeployed{
			Factory:      common.ReadAddress(r),
			Organization: common.ReadAddress(r),
			Timestamp:    r.ReadI64(),
			ProcessId:    r.ReadString(),
		}
	case ORGANIZATION_DEPLOY_FAILED:
		ev = OrganizationDeployFailed{
			Factory:       common.ReadAddress(r),
			Administrator: common.ReadAddress(r),
			Reason:        r.ReadString(),
			Timestamp:     r.ReadI64(),
			ProcessId:     r.ReadString(),
		}
	default:
		r.Fail(fmt.Errorf("%w: organization event %d", rpc.ErrInvalidVariant, tag))
		return nil
	}
	if r.Err() != nil {
		return nil
	}
	return ev
}

// Decodes a full action argument payload holding exactly one event
func DecodeOrganizationEvent(b []byte) (OrganizationEvent, error) {
	r := rpc.NewReader(b)
	ev := ReadOrganizationEvent(r)
	if err := r.Finish(); err != nil {
		return nil, err
	}
	return ev, nil
}

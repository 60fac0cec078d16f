package factory

import (
	"errors"
	"fmt"

	"github.com/thebeyondr/sekiva/lib/rpc"
	"github.com/thebeyondr/sekiva/modules/common"
	processLedger "github.com/thebeyondr/sekiva/modules/process-ledger"

	"go.mongodb.org/mongo-driver/bson"
)

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrUnknownOrganization = errors.New("unknown organization")
	ErrUnknownProcess      = errors.New("unknown organization process")
)

type State struct {
	Admin         common.Address   `bson:"admin"`
	Organizations []common.Address `bson:"organizations"`
	Ballots       []common.Address `bson:"ballots"`

	// user address -> organizations the user belongs to
	UserOrgMemberships map[string][]common.Address `bson:"user_org_memberships"`

	Code ContractCode `bson:"code"`

	EventNonce            uint64                                                       `bson:"event_nonce"`
	OrganizationProcesses processLedger.Ledger[processLedger.OrganizationProcessState] `bson:"organization_processes"`
	EventProcesses        processLedger.Ledger[processLedger.ProcessState]             `bson:"event_processes"`
}

func (s State) Encode() ([]byte, error) {
	return bson.Marshal(s)
}

func DecodeState(b []byte) (State, error) {
	var s State
	if err := bson.Unmarshal(b, &s); err != nil {
		return State{}, fmt.Errorf("factory state: %w", err)
	}
	return s, nil
}

func (s State) OrganizationsOf(user common.Address) []common.Address {
	return s.UserOrgMemberships[user.String()]
}

// Code and abi of the contracts the factory spawns. Also the init and
// update_contract_code arguments.
type ContractCode struct {
	OrganizationCode []byte `bson:"organization_code" validate:"min=1"`
	OrganizationAbi  []byte `bson:"organization_abi" validate:"min=1"`
	BallotCode       []byte `bson:"ballot_code" validate:"min=1"`
	BallotAbi        []byte `bson:"ballot_abi" validate:"min=1"`
}

func (c ContractCode) WriteRPC(w *rpc.Writer) {
	w.WriteBytes(c.BallotCode)
	w.WriteBytes(c.BallotAbi)
	w.WriteBytes(c.OrganizationCode)
	w.WriteBytes(c.OrganizationAbi)
}

func ReadContractCode(r *rpc.Reader) ContractCode {
	c := ContractCode{}
	c.BallotCode = r.ReadBytes()
	c.BallotAbi = r.ReadBytes()
	c.OrganizationCode = r.ReadBytes()
	c.OrganizationAbi = r.ReadBytes()
	return c
}

// Raw invocation data for the initializer
func (c ContractCode) Encode() []byte {
	w := rpc.NewInvocation()
	c.WriteRPC(w)
	return w.Bytes()
}

func DecodeInitArgs(b []byte) (ContractCode, error) {
	r, err := rpc.OpenInvocation(b)
	if err != nil {
		return ContractCode{}, err
	}
	c := ReadContractCode(r)
	if err := r.Finish(); err != nil {
		return ContractCode{}, err
	}
	return c, nil
}

// Arguments of deploy_organization
type OrganizationInit struct {
	Name          string         `bson:"name" validate:"required"`
	Description   string         `bson:"description" validate:"required"`
	ProfileImage  string         `bson:"profile_image"`
	BannerImage   string         `bson:"banner_image"`
	XUrl          string         `bson:"x_url"`
	DiscordUrl    string         `bson:"discord_url"`
	WebsiteUrl    string         `bson:"website_url"`
	Administrator common.Address `bson:"administrator" validate:"required"`
}

func (o OrganizationInit) WriteRPC(w *rpc.Writer) {
	w.WriteString(o.Name)
	w.WriteString(o.Description)
	w.WriteString(o.ProfileImage)
	w.WriteString(o.BannerImage)
	w.WriteString(o.XUrl)
	w.WriteString(o.DiscordUrl)
	w.WriteString(o.WebsiteUrl)
	o.Administrator.WriteRPC(w)
}

func ReadOrganizationInit(r *rpc.Reader) OrganizationInit {
	return OrganizationInit{
		Name:          r.ReadString(),
		Description:   r.ReadString(),
		ProfileImage:  r.ReadString(),
		BannerImage:   r.ReadString(),
		XUrl:          r.ReadString(),
		DiscordUrl:    r.ReadString(),
		WebsiteUrl:    r.ReadString(),
		Administrator: common.ReadAddress(r),
	}
}

type PublicView struct {
	Admin              common.Address              `json:"admin"`
	Organizations      []common.Address            `json:"organizations"`
	Ballots            []common.Address            `json:"ballots"`
	UserOrgMemberships map[string][]common.Address `json:"user_org_memberships"`
	EventNonce         uint64                      `json:"event_nonce"`
}

func (s State) View() PublicView {
	return PublicView{
		Admin:              s.Admin,
		Organizations:      s.Organizations,
		Ballots:            s.Ballots,
		UserOrgMemberships: s.UserOrgMemberships,
		EventNonce:         s.EventNonce,
	}
}

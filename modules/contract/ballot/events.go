package ballot

import (
	"fmt"

	"github.com/thebeyondr/sekiva/lib/rpc"
	"github.com/thebeyondr/sekiva/modules/common"
)

// Notifications a ballot emits about itself
type BallotEvent interface {
	rpc.Writable
	Discriminant() uint8
}

const (
	MEMBERS_UPDATED uint8 = 0
	VOTE_CAST       uint8 = 1
	TALLY_STARTED   uint8 = 2
	TALLY_COMPLETED uint8 = 3
	STATUS_CHANGED  uint8 = 4
)

type MembersUpdated struct {
	Added     []common.Address
	Removed   []common.Address
	Timestamp int64
	ProcessId string
}

type VoteCast struct {
	Voter     common.Address
	Timestamp int64
	ProcessId string
}

type TallyStarted struct {
	Timestamp int64
	ProcessId string
}

type TallyCompleted struct {
	Timestamp int64
	ProcessId string
}

type StatusChanged struct {
	Status    Status
	Timestamp int64
	ProcessId string
}

func (MembersUpdated) Discriminant() uint8 { return MEMBERS_UPDATED }
func (VoteCast) Discriminant() uint8       { return VOTE_CAST }
func (TallyStarted) Discriminant() uint8   { return TALLY_STARTED }
func (TallyCompleted) Discriminant() uint8 { return TALLY_COMPLETED }
func (StatusChanged) Discriminant() uint8  { return STATUS_CHANGED }

func (e MembersUpdated) WriteRPC(w *rpc.Writer) {
	w.WriteU8(e.Discriminant())
	common.WriteAddresses(w, e.Added)
	common.WriteAddresses(w, e.Removed)
	w.WriteI64(e.Timestamp)
	w.WriteString(e.ProcessId)
}

func (e VoteCast) WriteRPC(w *rpc.Writer) {
	w.WriteU8(e.Discriminant())
	e.Voter.WriteRPC(w)
	w.WriteI64(e.Timestamp)
	w.WriteString(e.ProcessId)
}

func (e TallyStarted) WriteRPC(w *rpc.Writer) {
	w.WriteU8(e.Discriminant())
	w.WriteI64(e.Timestamp)
	w.WriteString(e.ProcessId)
}

func (e TallyCompleted) WriteRPC(w *rpc.Writer) {
	w.WriteU8(e.Discriminant())
	w.WriteI64(e.Timestamp)
	w.WriteString(e.ProcessId)
}

func (e StatusChanged) WriteRPC(w *rpc.Writer) {
	w.WriteU8(e.Discriminant())
	w.WriteU8(uint8(e.Status))
	w.WriteI64(e.Timestamp)
	w.WriteString(e.ProcessId)
}

func ReadBallotEvent(r *rpc.Reader) BallotEvent {
	tag := r.ReadU8()
	if r.Err() != nil {
		return nil
	}
	var ev BallotEvent
	switch tag {
	case MEMBERS_UPDATED:
		ev = MembersUpdated{
			Added:     common.ReadAddresses(r),
			Removed:   common.ReadAddresses(r),
			Timestamp: r.ReadI64(),
			ProcessId: r.ReadString(),
		}
	case VOTE_CAST:
		ev = VoteCast{
			Voter:     common.ReadAddress(r),
			Timestamp: r.ReadI64(),
			ProcessId: r.ReadString(),
		}
	case TALLY_STARTED:
		ev = TallyStarted{Timestamp: r.ReadI64(), ProcessId: r.ReadString()}
	case TALLY_COMPLETED:
		ev = TallyCompleted{Timestamp: r.ReadI64(), ProcessId: r.ReadString()}
	case STATUS_CHANGED:
		status := Status(r.ReadU8())
		if status > Cancelled {
			r.Fail(fmt.Errorf("%w: ballot status %d", rpc.ErrInvalidVariant, status))
			return nil
		}
		ev = StatusChanged{Status: status, Timestamp: r.ReadI64(), ProcessId: r.ReadString()}
	default:
		r.Fail(fmt.Errorf("%w: ballot event %d", rpc.ErrInvalidVariant, tag))
		return nil
	}
	if r.Err() != nil {
		return nil
	}
	return ev
}

func DecodeBallotEvent(b []byte) (BallotEvent, error) {
	r := rpc.NewReader(b)
	ev := ReadBallotEvent(r)
	if err := r.Finish(); err != nil {
		return nil, err
	}
	return ev, nil
}

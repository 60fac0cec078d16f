package ballot

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/thebeyondr/sekiva/lib/rpc"
	"github.com/thebeyondr/sekiva/lib/utils"
	"github.com/thebeyondr/sekiva/modules/common"
	processLedger "github.com/thebeyondr/sekiva/modules/process-ledger"

	"github.com/moznion/go-optional"
	"go.mongodb.org/mongo-driver/bson"
)

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidStatus     = errors.New("invalid ballot status")
	ErrVotingClosed      = errors.New("outside the voting window")
	ErrNotEligible       = errors.New("not an eligible voter")
	ErrAlreadyVoted      = errors.New("already voted")
	ErrTallyInProgress   = errors.New("tally computation cannot start")
	ErrProtocolViolation = errors.New("zk protocol violation")
)

type Status uint8

const (
	Created Status = iota
	Active
	Tallying
	Completed
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Created:
		return "Created"
	case Active:
		return "Active"
	case Tallying:
		return "Tallying"
	case Completed:
		return "Completed"
	case Cancelled:
		return "Cancelled"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

func (s Status) CanTransition(to Status) bool {
	switch s {
	case Created:
		return to == Active || to == Cancelled
	case Active:
		return to == Tallying || to == Cancelled
	case Tallying:
		return to == Completed || to == Cancelled
	case Completed, Cancelled:
		return false
	}
	return false
}

func (s Status) Terminal() bool {
	return s == Completed || s == Cancelled
}

func (s Status) transition(to Status) (Status, error) {
	if !s.CanTransition(to) {
		return s, fmt.Errorf("%w: cannot go from %s to %s", ErrInvalidStatus, s, to)
	}
	return to, nil
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

const MAX_OPTIONS = 5

type Tally struct {
	Option0 uint32 `bson:"option_0" json:"option_0"`
	Option1 uint32 `bson:"option_1" json:"option_1"`
	Option2 uint32 `bson:"option_2" json:"option_2"`
	Option3 uint32 `bson:"option_3" json:"option_3"`
	Option4 uint32 `bson:"option_4" json:"option_4"`
	Total   uint32 `bson:"total" json:"total"`
}

func (t Tally) Counts() [MAX_OPTIONS]uint32 {
	return [MAX_OPTIONS]uint32{t.Option0, t.Option1, t.Option2, t.Option3, t.Option4}
}

// Five little-endian 32 bit counts, as the tally program outputs them
func DecodeTally(b []byte) (Tally, error) {
	if len(b) != 4*MAX_OPTIONS {
		return Tally{}, fmt.Errorf("%w: tally result must be %d bytes, got %d", ErrProtocolViolation, 4*MAX_OPTIONS, len(b))
	}
	var c [MAX_OPTIONS]uint32
	for i := range c {
		c[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	return Tally{c[0], c[1], c[2], c[3], c[4], utils.Sum(c[:])}, nil
}

type State struct {
	Administrator  common.Address   `bson:"administrator"`
	Organization   common.Address   `bson:"organization"`
	Title          string           `bson:"title"`
	Description    string           `bson:"description"`
	Options        []string         `bson:"options"`
	StartTime      int64            `bson:"start_time"`
	EndTime        int64            `bson:"end_time"`
	Status         Status           `bson:"status"`
	EligibleVoters []common.Address `bson:"eligible_voters"`
	AlreadyVoted   []common.Address `bson:"already_voted"`

	Tally          optional.Option[Tally]                           `bson:"tally"`
	EventProcesses processLedger.Ledger[processLedger.ProcessState] `bson:"event_processes"`
	// Nonce of the last organization event applied to each address
	MemberNonces map[string]uint64 `bson:"member_nonces"`
}

func (s State) Encode() ([]byte, error) {
	return bson.Marshal(s)
}

func DecodeState(b []byte) (State, error) {
	var s State
	if err := bson.Unmarshal(b, &s); err != nil {
		return State{}, fmt.Errorf("ballot state: %w", err)
	}
	return s, nil
}

type InitArgs struct {
	Options        []string         `bson:"options" validate:"min=2,max=5,dive,required"`
	Title          string           `bson:"title" validate:"required"`
	Description    string           `bson:"description" validate:"required"`
	Organization   common.Address   `bson:"organization" validate:"required"`
	Administrator  common.Address   `bson:"administrator" validate:"required"`
	EligibleVoters []common.Address `bson:"eligible_voters"`
}

// Raw invocation data for the initializer
func (a InitArgs) Encode() []byte {
	w := rpc.NewInvocation()
	rpc.WriteVec(w, a.Options, (*rpc.Writer).WriteString)
	w.WriteString(a.Title)
	w.WriteString(a.Description)
	a.Organization.WriteRPC(w)
	a.Administrator.WriteRPC(w)
	common.WriteAddresses(w, a.EligibleVoters)
	return w.Bytes()
}

func DecodeInitArgs(b []byte) (InitArgs, error) {
	r, err := rpc.OpenInvocation(b)
	if err != nil {
		return InitArgs{}, err
	}
	a := InitArgs{
		Options:        rpc.ReadVec(r, (*rpc.Reader).ReadString),
		Title:          r.ReadString(),
		Description:    r.ReadString(),
		Organization:   common.ReadAddress(r),
		Administrator:  common.ReadAddress(r),
		EligibleVoters: common.ReadAddresses(r),
	}
	if err := r.Finish(); err != nil {
		return InitArgs{}, err
	}
	return a, nil
}

// What anyone reading the chain sees of a ballot
type PublicView struct {
	Title              string                 `json:"title"`
	Description        string                 `json:"description"`
	Organization       common.Address         `json:"organization"`
	Administrator      common.Address         `json:"administrator"`
	Status             Status                 `json:"status"`
	Options            []string               `json:"options"`
	StartTime          int64                  `json:"start_time"`
	EndTime            int64                  `json:"end_time"`
	Tally              optional.Option[Tally] `json:"tally"`
	EligibleVoterCount int                    `json:"eligible_voter_count"`
	VotedCount         int                    `json:"voted_count"`
}

func (s State) View() PublicView {
	return PublicView{
		Title:              s.Title,
		Description:        s.Description,
		Organization:       s.Organization,
		Administrator:      s.Administrator,
		Status:             s.Status,
		Options:            s.Options,
		StartTime:          s.StartTime,
		EndTime:            s.EndTime,
		Tally:              s.Tally,
		EligibleVoterCount: len(s.EligibleVoters),
		VotedCount:         len(s.AlreadyVoted),
	}
}

package invocation

import (
	"errors"
	"fmt"

	"github.com/thebeyondr/sekiva/modules/common"
	"github.com/thebeyondr/sekiva/modules/zk"

	"github.com/moznion/go-optional"
)

type Kind uint8

const (
	Init Kind = iota
	Action
	Callback
	// phase one of a secret input; returns an InputDef
	SecretInput
	// the engine bound a secret input
	InputConfirmed
	ComputeComplete
	VariablesOpened
)

func (k Kind) String() string {
	switch k {
	case Init:
		return "init"
	case Action:
		return "action"
	case Callback:
		return "callback"
	case SecretInput:
		return "secret-input"
	case InputConfirmed:
		return "input-confirmed"
	case ComputeComplete:
		return "compute-complete"
	case VariablesOpened:
		return "variables-opened"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

var (
	ErrUnknownShortname = errors.New("unknown shortname")
	ErrUnsupported      = errors.New("invocation kind not supported by contract")
)

type Invocation struct {
	Kind      Kind
	Shortname common.Shortname
	// Arguments after the shortname. For Init, the raw invocation data including the header.
	Rpc       []byte
	Callback  common.CallbackContext
	Variables []zk.SecretVarId
}

type Outcome struct {
	State     []byte
	Events    []common.EventGroup
	Zk        []zk.StateChange
	Input     optional.Option[zk.InputDef]
	ReturnRpc []byte
}

// Implemented by every natively compiled contract. State is the persisted
// document; a handler decodes it, runs, and hands back the full replacement.
type Contract interface {
	Name() string
	Invoke(ctx common.ContractContext, zkState zk.State, state []byte, inv Invocation) (Outcome, error)
}

// The zk programs a contract can ask the engine to run
type ZkContract interface {
	Contract
	Programs() map[common.Shortname]zk.Program
}

func Unknown(inv Invocation) error {
	return fmt.Errorf("%w: %s 0x%02x", ErrUnknownShortname, inv.Kind, uint32(inv.Shortname))
}

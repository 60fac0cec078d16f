package zk

import (
	"errors"
	"fmt"
	"slices"

	"github.com/thebeyondr/sekiva/modules/common"

	"github.com/moznion/go-optional"
)

type SecretVarId uint32

type CalculationStatus uint8

const (
	Waiting CalculationStatus = iota
	Calculating
	Output
	MaliciousBehaviour
	Done
)

func (s CalculationStatus) String() string {
	switch s {
	case Waiting:
		return "Waiting"
	case Calculating:
		return "Calculating"
	case Output:
		return "Output"
	case MaliciousBehaviour:
		return "MaliciousBehaviour"
	case Done:
		return "Done"
	}
	return fmt.Sprintf("CalculationStatus(%d)", uint8(s))
}

var (
	ErrUnknownContract    = errors.New("zk: contract not attached")
	ErrUnknownVariable    = errors.New("zk: unknown secret variable")
	ErrUnknownProgram     = errors.New("zk: unknown program")
	ErrNotWaiting         = errors.New("zk: engine is not waiting")
	ErrNotCalculating     = errors.New("zk: no computation pending")
	ErrInputOutOfRange    = errors.New("zk: secret input out of range")
	ErrCommitmentMismatch = errors.New("zk: share commitment mismatch")
	ErrOutputMismatch     = errors.New("zk: program output count does not match requested metadata")
)

// A secret variable as the contract sees it. Data is only set once opened.
type Variable struct {
	Id         SecretVarId
	Owner      common.Address
	Metadata   []byte
	Widths     []uint8
	Commitment [32]byte
	Confirmed  bool
	Opened     bool
	Data       []byte
}

// Read-only view of a contract's engine session
type State struct {
	CalculationState CalculationStatus
	Variables        []Variable
}

func (s State) Variable(id SecretVarId) (Variable, bool) {
	i, found := slices.BinarySearchFunc(s.Variables, id, func(v Variable, id SecretVarId) int {
		return int(int64(v.Id) - int64(id))
	})
	if !found {
		return Variable{}, false
	}
	return s.Variables[i], true
}

func (s State) VariableIds() []SecretVarId {
	ids := make([]SecretVarId, len(s.Variables))
	for i, v := range s.Variables {
		ids[i] = v.Id
	}
	return ids
}

// Returned by a contract's secret input handler. The engine rejects the
// value unless Min <= value <= Max.
type InputDef struct {
	Metadata   []byte
	BitLength  uint8
	Min        int64
	Max        int64
	OnInputted optional.Option[common.Shortname]
}

func (d InputDef) Check(value int64) error {
	if d.BitLength == 0 || d.BitLength > 32 || d.BitLength%8 != 0 {
		return fmt.Errorf("%w: unsupported bit length %d", ErrInputOutOfRange, d.BitLength)
	}
	if value < d.Min || value > d.Max {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInputOutOfRange, value, d.Min, d.Max)
	}
	return nil
}

// Requests a contract returns to the engine
type StateChange interface {
	zkStateChange()
}

type StartComputation struct {
	Program        common.Shortname
	OutputMetadata [][]byte
	OnComplete     common.Shortname
}

type OpenVariables struct {
	Ids []SecretVarId
}

type ContractDone struct{}

func (StartComputation) zkStateChange() {}
func (OpenVariables) zkStateChange()    {}
func (ContractDone) zkStateChange()     {}

package processLedger

import (
	"encoding/hex"
	"errors"
	"fmt"
	"maps"

	"github.com/thebeyondr/sekiva/modules/common"
)

var (
	ErrProcessExists     = errors.New("process already exists")
	ErrProcessNotFound   = errors.New("process not found")
	ErrIllegalTransition = errors.New("illegal process transition")
)

// "<block time>-<hex of the first 8 bytes of the original transaction>"
func NewProcessId(ctx common.ContractContext) string {
	return fmt.Sprintf("%d-%s", ctx.BlockTime, hex.EncodeToString(ctx.OriginalTransaction[:8]))
}

type State[S any] interface {
	comparable
	fmt.Stringer
	CanTransition(to S) bool
	Terminal() bool
}

// Process id -> state. Every mutation returns a new map; the receiver is
// never written to, so a ledger read out of persisted state can be shared.
type Ledger[S State[S]] map[string]S

func (l Ledger[S]) Get(id string) (S, bool) {
	s, ok := l[id]
	return s, ok
}

func (l Ledger[S]) Has(id string) bool {
	_, ok := l[id]
	return ok
}

// Starts tracking a new process.
func (l Ledger[S]) Begin(id string, initial S) (Ledger[S], error) {
	if l.Has(id) {
		return l, fmt.Errorf("%w: %s", ErrProcessExists, id)
	}
	return l.with(id, initial), nil
}

// Moves a process to `to`. Advancing to the state it is already in is a no-op
// reported through changed=false.
func (l Ledger[S]) Advance(id string, to S) (next Ledger[S], changed bool, err error) {
	current, ok := l[id]
	if !ok {
		return l, false, fmt.Errorf("%w: %s", ErrProcessNotFound, id)
	}
	if current == to {
		return l, false, nil
	}
	if !current.CanTransition(to) {
		return l, false, fmt.Errorf("%w: %s -> %s (%s)", ErrIllegalTransition, current, to, id)
	}
	return l.with(id, to), true, nil
}

func (l Ledger[S]) with(id string, s S) Ledger[S] {
	next := maps.Clone(l)
	if next == nil {
		next = make(Ledger[S], 1)
	}
	next[id] = s
	return next
}

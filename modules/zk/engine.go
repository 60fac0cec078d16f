package zk

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/thebeyondr/sekiva/lib/logger"
	"github.com/thebeyondr/sekiva/modules/common"

	"github.com/ipfs/go-datastore"
)

type session struct {
	status   CalculationStatus
	nextId   SecretVarId
	vars     map[SecretVarId]Variable
	pending  *StartComputation
	programs map[common.Shortname]Program
}

// Engine simulates the zk node cluster serving every zk contract on the
// chain. Secret values only ever exist as shares in the node stores; they
// are recombined inside a running program or when explicitly opened.
type Engine struct {
	mu       sync.Mutex
	store    *shareStore
	sessions map[common.Address]*session
	metrics  *Metrics
	log      logger.Logger
}

func New(nodes []datastore.Batching, log logger.Logger, metrics *Metrics) (*Engine, error) {
	if len(nodes) < 2 {
		return nil, fmt.Errorf("zk: at least 2 nodes are needed, got %d", len(nodes))
	}
	if log == nil {
		log = logger.Nop{}
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Engine{
		store:    &shareStore{nodes},
		sessions: make(map[common.Address]*session),
		metrics:  metrics,
		log:      log,
	}, nil
}

func (e *Engine) Nodes() int {
	return len(e.store.nodes)
}

// Registers a zk contract and the programs it may start
func (e *Engine) Attach(contract common.Address, programs map[common.Shortname]Program) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions[contract] = &session{
		status:   Waiting,
		vars:     make(map[SecretVarId]Variable),
		programs: maps.Clone(programs),
		nextId:   1,
	}
}

func (e *Engine) Attached(contract common.Address) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.sessions[contract]
	return ok
}

func (e *Engine) session(contract common.Address) (*session, error) {
	s, ok := e.sessions[contract]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContract, contract)
	}
	return s, nil
}

// Snapshot handed to contract handlers. Unattached contracts see an empty waiting state.
func (e *Engine) State(contract common.Address) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[contract]
	if !ok {
		return State{CalculationState: Waiting}
	}
	vars := make([]Variable, 0, len(s.vars))
	for _, v := range s.vars {
		v.Metadata = slices.Clone(v.Metadata)
		v.Widths = slices.Clone(v.Widths)
		v.Data = slices.Clone(v.Data)
		vars = append(vars, v)
	}
	slices.SortFunc(vars, func(a, b Variable) int { return int(int64(a.Id) - int64(b.Id)) })
	return State{CalculationState: s.status, Variables: vars}
}

// Shares value to all nodes and allocates an unconfirmed variable.
func (e *Engine) Input(ctx context.Context, contract common.Address, owner common.Address, def InputDef, value int64) (SecretVarId, error) {
	if err := def.Check(value); err != nil {
		e.metrics.InputsRejected.Inc()
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.session(contract)
	if err != nil {
		return 0, err
	}

	word, err := split(value, e.Nodes(), def.BitLength)
	if err != nil {
		return 0, err
	}
	id := s.nextId
	words := []Secret{word}
	if err := e.store.put(ctx, contract, id, words); err != nil {
		return 0, err
	}
	s.nextId++
	s.vars[id] = Variable{
		Id:         id,
		Owner:      owner,
		Metadata:   slices.Clone(def.Metadata),
		Widths:     []uint8{def.BitLength},
		Commitment: commit(contract, id, words),
	}
	e.metrics.InputsAccepted.Inc()
	e.log.Debug("input", id, "stored for", contract)
	return id, nil
}

// Marks an input as bound; only confirmed variables enter computations.
func (e *Engine) Confirm(contract common.Address, id SecretVarId) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.session(contract)
	if err != nil {
		return err
	}
	v, ok := s.vars[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownVariable, id)
	}
	v.Confirmed = true
	s.vars[id] = v
	return nil
}

// Drops an input whose binding was refused by the contract.
func (e *Engine) Reject(ctx context.Context, contract common.Address, id SecretVarId) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.session(contract)
	if err != nil {
		return err
	}
	v, ok := s.vars[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownVariable, id)
	}
	delete(s.vars, id)
	e.metrics.InputsRejected.Inc()
	return e.store.delete(ctx, contract, id, v.Widths)
}

func (e *Engine) StartComputation(contract common.Address, req StartComputation) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.session(contract)
	if err != nil {
		return err
	}
	if s.status != Waiting {
		return fmt.Errorf("%w: status is %s", ErrNotWaiting, s.status)
	}
	if _, ok := s.programs[req.Program]; !ok {
		return fmt.Errorf("%w: 0x%02x", ErrUnknownProgram, uint32(req.Program))
	}
	s.status = Calculating
	s.pending = &req
	return nil
}

// Pending computation of a contract, if any
func (e *Engine) Pending(contract common.Address) (StartComputation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[contract]
	if !ok || s.pending == nil {
		return StartComputation{}, false
	}
	return *s.pending, true
}

// Runs the pending program over the confirmed variables and stores its
// outputs as new variables owned by the contract.
func (e *Engine) Compute(ctx context.Context, contract common.Address) ([]SecretVarId, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.session(contract)
	if err != nil {
		return nil, err
	}
	if s.status != Calculating || s.pending == nil {
		return nil, ErrNotCalculating
	}
	req := *s.pending

	inputs := make([]Variable, 0, len(s.vars))
	for _, v := range s.vars {
		if v.Confirmed {
			inputs = append(inputs, v)
		}
	}
	slices.SortFunc(inputs, func(a, b Variable) int { return int(int64(a.Id) - int64(b.Id)) })

	for _, v := range inputs {
		if err := e.verify(ctx, contract, v); err != nil {
			s.status = MaliciousBehaviour
			s.pending = nil
			e.metrics.Computations.WithLabelValues("malicious").Inc()
			return nil, err
		}
	}

	env := &ComputeEnv{ctx: ctx, engine: e, contract: contract, vars: inputs}
	outputs, err := s.programs[req.Program].Run(env)
	if err == nil && len(outputs) != len(req.OutputMetadata) {
		err = fmt.Errorf("%w: %d outputs, %d metadata", ErrOutputMismatch, len(outputs), len(req.OutputMetadata))
	}
	if err != nil {
		// the contract may start again
		s.status = Waiting
		s.pending = nil
		e.metrics.Computations.WithLabelValues("failed").Inc()
		return nil, err
	}

	ids := make([]SecretVarId, len(outputs))
	for i, out := range outputs {
		id := s.nextId
		if err := e.store.put(ctx, contract, id, out.Words); err != nil {
			return nil, err
		}
		s.nextId++
		widths := make([]uint8, len(out.Words))
		for w, word := range out.Words {
			widths[w] = word.bits
		}
		s.vars[id] = Variable{
			Id:         id,
			Owner:      contract,
			Metadata:   slices.Clone(req.OutputMetadata[i]),
			Widths:     widths,
			Commitment: commit(contract, id, out.Words),
			Confirmed:  true,
		}
		ids[i] = id
	}
	s.status = Output
	s.pending = nil
	e.metrics.Computations.WithLabelValues("ok").Inc()
	e.log.Debug("computation finished for", contract, "outputs", ids)
	return ids, nil
}

func (e *Engine) verify(ctx context.Context, contract common.Address, v Variable) error {
	words, err := e.store.get(ctx, contract, v.Id, v.Widths)
	if err != nil {
		return err
	}
	if commit(contract, v.Id, words) != v.Commitment {
		return fmt.Errorf("%w: variable %d of %s", ErrCommitmentMismatch, v.Id, contract)
	}
	return nil
}

// Declassifies variables: reconstructs every word and exposes the bytes.
func (e *Engine) Open(ctx context.Context, contract common.Address, ids []SecretVarId) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.session(contract)
	if err != nil {
		return err
	}
	opened := make(map[SecretVarId]Variable, len(ids))
	for _, id := range ids {
		v, ok := s.vars[id]
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownVariable, id)
		}
		words, err := e.store.get(ctx, contract, id, v.Widths)
		if err != nil {
			return err
		}
		if commit(contract, id, words) != v.Commitment {
			s.status = MaliciousBehaviour
			return fmt.Errorf("%w: variable %d of %s", ErrCommitmentMismatch, id, contract)
		}
		var data []byte
		for _, word := range words {
			data = append(data, encodeWord(reconstruct(word), word.bits)...)
		}
		v.Opened = true
		v.Data = data
		opened[id] = v
	}
	maps.Copy(s.vars, opened)
	e.metrics.OpenedVariables.Add(float64(len(ids)))
	return nil
}

// The contract will not start further computations
func (e *Engine) Done(contract common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, err := e.session(contract)
	if err != nil {
		return err
	}
	s.status = Done
	return nil
}

// Applies the non-asynchronous parts of contract requested changes. The
// host schedules the actual computation and opening as later jobs.
func (e *Engine) Apply(contract common.Address, changes []StateChange) error {
	var errs []error
	for _, c := range changes {
		switch c := c.(type) {
		case StartComputation:
			errs = append(errs, e.StartComputation(contract, c))
		case ContractDone:
			errs = append(errs, e.Done(contract))
		case OpenVariables:
			// opening is a separate job
		default:
			errs = append(errs, fmt.Errorf("zk: unknown state change %T", c))
		}
	}
	return errors.Join(errs...)
}

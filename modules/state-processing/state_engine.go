package stateEngine

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/thebeyondr/sekiva/lib/logger"
	"github.com/thebeyondr/sekiva/modules/aggregate"
	"github.com/thebeyondr/sekiva/modules/common"
	"github.com/thebeyondr/sekiva/modules/contract/invocation"
	contract_session "github.com/thebeyondr/sekiva/modules/contract/session"
	"github.com/thebeyondr/sekiva/modules/db/sekiva/contract_states"
	"github.com/thebeyondr/sekiva/modules/db/sekiva/event_log"
	"github.com/thebeyondr/sekiva/modules/db/sekiva/nonces"
	"github.com/thebeyondr/sekiva/modules/zk"

	"github.com/JustinKnueppel/go-result"
	"github.com/chebyrash/promise"
	"github.com/multiformats/go-multicodec"
	"go.mongodb.org/mongo-driver/mongo"
)

// Jobs a single block may run before the queue is considered stuck
const MAX_QUEUE_STEPS = 10_000

// Committed contracts; the store every call session reads through to
type records map[common.Address]contract_session.ContractRecord

func (r records) Record(address common.Address) (contract_session.ContractRecord, bool) {
	rec, ok := r[address]
	return rec, ok
}

// StateEngine hosts the contracts. Every invocation runs against a call
// session that only reaches the committed records when the contract and the
// zk engine accepted it. Everything an invocation spawns runs later from the
// FIFO dispatch queue.
type StateEngine struct {
	mu       sync.Mutex
	log      logger.Logger
	metrics  *Metrics
	registry *CodeRegistry
	zk       *zk.Engine

	contracts   records
	nonces      map[common.Address]uint64
	dirtyNonces map[common.Address]struct{}
	queue       []job

	// Height of the block being built
	height uint64
	// Seconds
	blockTime  int64
	derived    uint64
	pendingLog []event_log.EventRecord

	contractStates contract_states.ContractStates
	eventLog       event_log.EventLog
	nonceDb        nonces.Nonces
}

var _ aggregate.Plugin = &StateEngine{}

// Repositories may be nil, the engine then keeps everything in memory.
func New(
	log logger.Logger,
	zkEngine *zk.Engine,
	registry *CodeRegistry,
	contractStates contract_states.ContractStates,
	eventLog event_log.EventLog,
	nonceDb nonces.Nonces,
	metrics *Metrics,
) *StateEngine {
	if log == nil {
		log = logger.Nop{}
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if registry == nil {
		registry = NewCodeRegistry()
	}
	return &StateEngine{
		log:            log,
		metrics:        metrics,
		registry:       registry,
		zk:             zkEngine,
		contracts:      make(records),
		nonces:         make(map[common.Address]uint64),
		dirtyNonces:    make(map[common.Address]struct{}),
		height:         1,
		contractStates: contractStates,
		eventLog:       eventLog,
		nonceDb:        nonceDb,
	}
}

// Init implements aggregate.Plugin.
func (se *StateEngine) Init() error {
	return se.registry.RegisterNatives()
}

// Start implements aggregate.Plugin. Blocks are driven by the producer.
func (se *StateEngine) Start() *promise.Promise[any] {
	return aggregate.Resolved()
}

// Stop implements aggregate.Plugin.
func (se *StateEngine) Stop() error {
	return nil
}

func (se *StateEngine) Registry() *CodeRegistry {
	return se.registry
}

// A contract as last committed
func (se *StateEngine) Contract(address common.Address) (contract_session.ContractRecord, bool) {
	se.mu.Lock()
	defer se.mu.Unlock()
	rec, ok := se.contracts[address]
	rec.State = slices.Clone(rec.State)
	return rec, ok
}

func (se *StateEngine) Addresses() []common.Address {
	se.mu.Lock()
	defer se.mu.Unlock()
	return slices.SortedFunc(maps.Keys(se.contracts), common.Address.Compare)
}

func (se *StateEngine) ZkState(address common.Address) zk.State {
	return se.zk.State(address)
}

func (se *StateEngine) Height() uint64 {
	se.mu.Lock()
	defer se.mu.Unlock()
	return se.height
}

func (se *StateEngine) BlockTime() int64 {
	se.mu.Lock()
	defer se.mu.Unlock()
	return se.blockTime
}

func (se *StateEngine) QueueLen() int {
	se.mu.Lock()
	defer se.mu.Unlock()
	return len(se.queue)
}

// Nonce the next transaction of sender must carry
func (se *StateEngine) NextNonce(sender common.Address) uint64 {
	se.mu.Lock()
	defer se.mu.Unlock()
	return se.nonceOf(sender)
}

func (se *StateEngine) nonceOf(sender common.Address) uint64 {
	if n, ok := se.nonces[sender]; ok {
		return n
	}
	var n uint64
	if se.nonceDb != nil {
		rec, err := se.nonceDb.GetNonce(sender)
		switch {
		case err == nil:
			n = rec.Nonce
		case !errors.Is(err, mongo.ErrNoDocuments):
			se.log.Error("loading nonce of", sender, err)
		}
	}
	se.nonces[sender] = n
	return n
}

func (se *StateEngine) setNonce(sender common.Address, n uint64) {
	se.nonces[sender] = n
	se.dirtyNonces[sender] = struct{}{}
}

// One invocation of a contract
type call struct {
	contract common.Address
	sender   common.Address
	inv      invocation.Invocation
	original common.Hash
	current  common.Hash
}

func (se *StateEngine) contractContext(c call) common.ContractContext {
	return common.ContractContext{
		ContractAddress:     c.contract,
		Sender:              c.sender,
		BlockTime:           se.blockTime,
		BlockProductionTime: se.blockTime * 1000,
		CurrentTransaction:  c.current,
		OriginalTransaction: c.original,
	}
}

// Id of an invocation spawned by original
func (se *StateEngine) derive(original common.Hash) common.Hash {
	se.derived++
	b := binary.BigEndian.AppendUint64(slices.Clone(original[:]), se.derived)
	c, err := common.HashBytes(b, multicodec.Raw)
	if err != nil {
		return original
	}
	return common.DigestOf(c)
}

// Runs the contract against a fresh call session. Nothing is committed.
func (se *StateEngine) run(c call) (*contract_session.CallSession, invocation.Outcome, error) {
	sess := contract_session.NewCallSession(se.contracts)
	rec, ok := sess.Get(c.contract)
	if !ok {
		return nil, invocation.Outcome{}, fmt.Errorf("%w: %s", ErrContractNotFound, c.contract)
	}
	impl, err := se.registry.Lookup(rec.CodeId)
	if err != nil {
		return nil, invocation.Outcome{}, err
	}
	out, err := impl.Invoke(se.contractContext(c), se.zk.State(c.contract), rec.State, c.inv)
	if err != nil {
		return nil, invocation.Outcome{}, err
	}
	rec.State = out.State
	sess.Put(rec)
	return sess, out, nil
}

// Applies the zk requests of an outcome, then the staged records, then
// queues whatever the invocation spawned. A refused zk request rolls the
// session back.
func (se *StateEngine) commit(sess *contract_session.CallSession, c call, out invocation.Outcome) error {
	if len(out.Zk) > 0 {
		if err := se.zk.Apply(c.contract, out.Zk); err != nil {
			sess.Rollback()
			return fmt.Errorf("%w: %w", ErrEngineRejected, err)
		}
	}
	for _, o := range sess.ToOutputs() {
		se.contracts[o.Record.Address] = o.Record
	}
	for _, group := range out.Events {
		se.enqueueGroup(c.contract, c.original, group)
	}
	for _, change := range out.Zk {
		switch change := change.(type) {
		case zk.StartComputation:
			se.push(computeJob{contract: c.contract, original: c.original})
		case zk.OpenVariables:
			se.push(openJob{contract: c.contract, ids: slices.Clone(change.Ids), original: c.original})
		}
	}
	return nil
}

func (se *StateEngine) execute(c call) result.Result[invocation.Outcome] {
	sess, out, err := se.run(c)
	if err == nil {
		err = se.commit(sess, c, out)
	}
	if err != nil {
		se.record(c, c.inv.Kind.String(), 0, err)
		se.log.Error("invocation failed", c.contract, c.inv.Kind, fmt.Sprintf("0x%02x", uint32(c.inv.Shortname)), err)
		return result.Err[invocation.Outcome](err)
	}
	se.record(c, c.inv.Kind.String(), len(out.Events), nil)
	return result.Ok(out)
}

func (se *StateEngine) record(c call, kind string, spawned int, err error) {
	rec := event_log.EventRecord{
		Height:    se.height,
		Index:     len(se.pendingLog),
		BlockTime: se.blockTime,
		TxId:      c.original.String(),
		Contract:  c.contract,
		Sender:    c.sender,
		Kind:      kind,
		Shortname: uint32(c.inv.Shortname),
		Success:   err == nil,
		Spawned:   spawned,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	se.pendingLog = append(se.pendingLog, rec)
	se.metrics.Invocations.WithLabelValues(kind, outcomeLabel(err)).Inc()
}

func (se *StateEngine) Submit(ctx context.Context, tx Transaction) TxResult {
	se.mu.Lock()
	defer se.mu.Unlock()
	return se.submit(ctx, tx)
}

// Submits a call from sender with the next nonce
func (se *StateEngine) Call(ctx context.Context, sender, contract common.Address, payload []byte) TxResult {
	se.mu.Lock()
	defer se.mu.Unlock()
	return se.submit(ctx, Transaction{
		Sender:   sender,
		Nonce:    se.nonceOf(sender),
		Contract: contract,
		Payload:  payload,
	})
}

// Deploys code directly from an account, e.g. to bootstrap a factory
func (se *StateEngine) Deploy(ctx context.Context, sender common.Address, zkContract bool, req common.DeployRequest) TxResult {
	in := common.NewEventGroupBuilder().Deploy(zkContract, req).Build().Interactions[0]
	return se.Call(ctx, sender, in.Contract, in.Payload)
}

func (se *StateEngine) submit(ctx context.Context, tx Transaction) TxResult {
	id, err := tx.Hash()
	if err != nil {
		return errorToTxResult(id, tx.Contract, err)
	}
	if expected := se.nonceOf(tx.Sender); tx.Nonce != expected {
		return errorToTxResult(id, tx.Contract, fmt.Errorf("%w: expected %d, got %d", ErrInvalidNonce, expected, tx.Nonce))
	}
	se.setNonce(tx.Sender, tx.Nonce+1)

	c := call{contract: tx.Contract, sender: tx.Sender, original: id, current: id}
	if isDeployContract(tx.Contract) {
		return result.MapOrElse(
			se.deploy(ctx, c, common.Interaction{Contract: tx.Contract, Payload: tx.Payload}),
			func(err error) TxResult {
				return errorToTxResult(id, tx.Contract, err)
			},
			func(d deployment) TxResult {
				return TxResult{
					Id:       id.String(),
					Success:  true,
					Ret:      d.Address.String(),
					Contract: d.Address,
					Spawned:  len(d.Outcome.Events),
				}
			},
		)
	}

	sn, args, err := common.Interaction{Contract: tx.Contract, Payload: tx.Payload}.Split()
	if err != nil {
		return errorToTxResult(id, tx.Contract, err)
	}
	c.inv = invocation.Invocation{Kind: invocation.Action, Shortname: sn, Rpc: args}
	return se.txResult(id, tx.Contract, se.execute(c))
}

func (se *StateEngine) txResult(id common.Hash, contract common.Address, res result.Result[invocation.Outcome]) TxResult {
	return result.MapOrElse(
		res,
		func(err error) TxResult {
			return errorToTxResult(id, contract, err)
		},
		func(out invocation.Outcome) TxResult {
			return TxResult{
				Id:       id.String(),
				Success:  true,
				Ret:      fmt.Sprintf("%x", out.ReturnRpc),
				Contract: contract,
				Spawned:  len(out.Events),
			}
		},
	)
}

func (se *StateEngine) Step(ctx context.Context) bool {
	se.mu.Lock()
	defer se.mu.Unlock()
	return se.step(ctx)
}

func (se *StateEngine) step(ctx context.Context) bool {
	if len(se.queue) == 0 {
		return false
	}
	j := se.queue[0]
	se.queue[0] = nil
	se.queue = se.queue[1:]
	j.execute(ctx, se)
	se.metrics.QueueDepth.Set(float64(len(se.queue)))
	return true
}

// Runs queued jobs, including the ones they spawn, until none is left
func (se *StateEngine) ProcessQueue(ctx context.Context) (int, error) {
	se.mu.Lock()
	defer se.mu.Unlock()
	return se.processQueue(ctx)
}

func (se *StateEngine) processQueue(ctx context.Context) (int, error) {
	n := 0
	for len(se.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if n >= MAX_QUEUE_STEPS {
			return n, fmt.Errorf("%w: %d jobs left after %d steps", ErrQueueOverflow, len(se.queue), n)
		}
		se.step(ctx)
		n++
	}
	return n, nil
}

func (se *StateEngine) push(j job) {
	se.queue = append(se.queue, j)
	se.metrics.QueueDepth.Set(float64(len(se.queue)))
}

// Moves the clock to at (never backwards), drains the queue and persists
// what the block changed.
func (se *StateEngine) ProduceBlock(ctx context.Context, at time.Time) (BlockSummary, error) {
	se.mu.Lock()
	defer se.mu.Unlock()

	if t := at.Unix(); t > se.blockTime {
		se.blockTime = t
	}
	summary := BlockSummary{Height: se.height, BlockTime: se.blockTime}

	processed, err := se.processQueue(ctx)
	summary.Processed = processed
	if err != nil {
		return summary, err
	}
	summary.Events = len(se.pendingLog)
	saved, err := se.persist()
	summary.Saved = saved
	if err != nil {
		return summary, err
	}

	se.height++
	se.metrics.Blocks.Inc()
	se.log.Debug("block", summary.Height, "processed", processed, "saved", saved)
	return summary, nil
}

// Writes dirty contracts, the pending event log and changed nonces. What
// failed to persist stays pending for the next block.
func (se *StateEngine) persist() (int, error) {
	saved := 0
	for _, addr := range slices.SortedFunc(maps.Keys(se.contracts), common.Address.Compare) {
		rec := se.contracts[addr]
		if !rec.Dirty {
			continue
		}
		if se.contractStates != nil {
			err := se.contractStates.SaveState(contract_states.ContractStateRecord{
				Address:   rec.Address,
				Height:    se.height,
				BlockTime: se.blockTime,
				Kind:      rec.Kind,
				CodeId:    rec.CodeId,
				State:     rec.State,
			})
			if err != nil {
				return saved, fmt.Errorf("saving state of %s: %w", addr, err)
			}
		}
		rec.Dirty = false
		se.contracts[addr] = rec
		saved++
	}

	if se.eventLog != nil && len(se.pendingLog) > 0 {
		if err := se.eventLog.Append(se.pendingLog...); err != nil {
			return saved, fmt.Errorf("appending event log: %w", err)
		}
	}
	se.pendingLog = nil

	if se.nonceDb != nil {
		for addr := range se.dirtyNonces {
			if err := se.nonceDb.SetNonce(addr, se.nonces[addr]); err != nil {
				return saved, fmt.Errorf("saving nonce of %s: %w", addr, err)
			}
			delete(se.dirtyNonces, addr)
		}
	} else {
		clear(se.dirtyNonces)
	}
	return saved, nil
}

func unchanged(before contract_session.ContractRecord, out invocation.Outcome) bool {
	return bytes.Equal(before.State, out.State) && len(out.Events) == 0 && len(out.Zk) == 0
}

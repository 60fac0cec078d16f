package stateEngine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/thebeyondr/sekiva/lib/rpc"
	"github.com/thebeyondr/sekiva/modules/common"
	"github.com/thebeyondr/sekiva/modules/contract/invocation"
	"github.com/thebeyondr/sekiva/modules/zk"

	"github.com/JustinKnueppel/go-result"
	"github.com/moznion/go-optional"
)

// Action payload: shortname followed by the arguments
func CallPayload(sn common.Shortname, args ...rpc.Writable) []byte {
	w := rpc.NewWriter()
	sn.WriteRPC(w)
	for _, a := range args {
		a.WriteRPC(w)
	}
	return w.Bytes()
}

// Work the dispatch queue runs after the invocation that caused it
type job interface {
	execute(ctx context.Context, se *StateEngine)
}

// Collects the results of a group's interactions. The callback is queued
// once the last of them ran.
type groupTracker struct {
	sender    common.Address
	original  common.Hash
	callback  optional.Option[common.CallbackRequest]
	results   []common.ExecutionResult
	remaining int
}

func (se *StateEngine) enqueueGroup(sender common.Address, original common.Hash, group common.EventGroup) {
	g := &groupTracker{
		sender:    sender,
		original:  original,
		callback:  group.Callback,
		results:   make([]common.ExecutionResult, len(group.Interactions)),
		remaining: len(group.Interactions),
	}
	for i, in := range group.Interactions {
		se.push(interactionJob{group: g, index: i, interaction: in})
	}
	if g.remaining == 0 {
		g.settle(se)
	}
}

func (g *groupTracker) finish(se *StateEngine, index int, res common.ExecutionResult) {
	g.results[index] = res
	g.remaining--
	if g.remaining == 0 {
		g.settle(se)
	}
}

func (g *groupTracker) settle(se *StateEngine) {
	if cb, err := g.callback.Take(); err == nil {
		se.push(callbackJob{group: g, request: cb})
	}
}

func (g *groupTracker) success() bool {
	for _, r := range g.results {
		if !r.Succeeded {
			return false
		}
	}
	return true
}

type interactionJob struct {
	group       *groupTracker
	index       int
	interaction common.Interaction
}

func (j interactionJob) execute(ctx context.Context, se *StateEngine) {
	j.group.finish(se, j.index, se.dispatch(ctx, j.group.sender, j.group.original, j.interaction))
}

// Runs one interaction of an event group on behalf of sender
func (se *StateEngine) dispatch(ctx context.Context, sender common.Address, original common.Hash, in common.Interaction) common.ExecutionResult {
	failed := func(error) common.ExecutionResult {
		return common.ExecutionResult{Succeeded: false}
	}
	c := call{contract: in.Contract, sender: sender, original: original, current: se.derive(original)}

	if isDeployContract(in.Contract) {
		return result.MapOrElse(
			se.deploy(ctx, c, in),
			failed,
			func(d deployment) common.ExecutionResult {
				w := rpc.NewWriter()
				d.Address.WriteRPC(w)
				return common.ExecutionResult{Succeeded: true, ReturnData: w.Bytes()}
			},
		)
	}

	sn, args, err := in.Split()
	if err != nil {
		se.record(c, invocation.Action.String(), 0, err)
		return failed(err)
	}
	c.inv = invocation.Invocation{Kind: invocation.Action, Shortname: sn, Rpc: args}
	return result.MapOrElse(
		se.execute(c),
		failed,
		func(out invocation.Outcome) common.ExecutionResult {
			return common.ExecutionResult{Succeeded: true, ReturnData: out.ReturnRpc}
		},
	)
}

type callbackJob struct {
	group   *groupTracker
	request common.CallbackRequest
}

func (j callbackJob) execute(ctx context.Context, se *StateEngine) {
	g := j.group
	se.metrics.Callbacks.Inc()
	before := se.contracts[g.sender]
	res := se.execute(call{
		contract: g.sender,
		sender:   g.sender,
		inv: invocation.Invocation{
			Kind:      invocation.Callback,
			Shortname: j.request.Shortname,
			Rpc:       j.request.Args,
			Callback: common.CallbackContext{
				Success: g.success(),
				Results: g.results,
			},
		},
		original: g.original,
		current:  se.derive(g.original),
	})
	if res.IsOk() && unchanged(before, res.Unwrap()) {
		se.log.Debug("callback", fmt.Sprintf("0x%02x", uint32(j.request.Shortname)), "on", g.sender, "changed nothing")
	}
}

// Binds an accepted secret input through the contract's hook. A refused
// binding deletes the input.
type inputJob struct {
	contract common.Address
	owner    common.Address
	id       zk.SecretVarId
	hook     common.Shortname
	original common.Hash
}

func (j inputJob) execute(ctx context.Context, se *StateEngine) {
	if err := se.zk.Confirm(j.contract, j.id); err != nil {
		se.log.Error("confirming input", j.id, "of", j.contract, err)
		return
	}
	res := se.execute(call{
		contract: j.contract,
		sender:   j.owner,
		inv: invocation.Invocation{
			Kind:      invocation.InputConfirmed,
			Shortname: j.hook,
			Variables: []zk.SecretVarId{j.id},
		},
		original: j.original,
		current:  se.derive(j.original),
	})
	if res.IsErr() {
		if err := se.zk.Reject(ctx, j.contract, j.id); err != nil {
			se.log.Error("rejecting input", j.id, "of", j.contract, err)
		}
	}
}

type computeJob struct {
	contract common.Address
	original common.Hash
}

func (j computeJob) execute(ctx context.Context, se *StateEngine) {
	pending, ok := se.zk.Pending(j.contract)
	if !ok {
		se.log.Debug("no computation pending for", j.contract)
		return
	}
	c := call{
		contract: j.contract,
		sender:   j.contract,
		inv: invocation.Invocation{
			Kind:      invocation.ComputeComplete,
			Shortname: pending.OnComplete,
		},
		original: j.original,
		current:  se.derive(j.original),
	}
	ids, err := se.zk.Compute(ctx, j.contract)
	if err != nil {
		se.record(c, "compute", 0, err)
		se.log.Error("computation failed for", j.contract, err)
		return
	}
	c.inv.Variables = ids
	se.execute(c)
}

type openJob struct {
	contract common.Address
	ids      []zk.SecretVarId
	original common.Hash
}

func (j openJob) execute(ctx context.Context, se *StateEngine) {
	c := call{
		contract: j.contract,
		sender:   j.contract,
		inv: invocation.Invocation{
			Kind:      invocation.VariablesOpened,
			Variables: j.ids,
		},
		original: j.original,
		current:  se.derive(j.original),
	}
	if err := se.zk.Open(ctx, j.contract, j.ids); err != nil {
		se.record(c, "open", 0, err)
		se.log.Error("opening variables of", j.contract, err)
		return
	}
	se.execute(c)
}

// Sends a secret value to a zk contract. The contract's handler sees only
// publicArgs and answers with the input definition the engine checks the
// value against; the value itself goes straight to the engine nodes.
func (se *StateEngine) SubmitSecretInput(ctx context.Context, sender, contract common.Address, sn common.Shortname, publicArgs []byte, value int64) TxResult {
	se.mu.Lock()
	defer se.mu.Unlock()

	tx := Transaction{
		Sender:   sender,
		Nonce:    se.nonceOf(sender),
		Contract: contract,
		Payload:  CallPayload(sn, rpc.Raw(publicArgs)),
	}
	id, err := tx.Hash()
	if err != nil {
		return errorToTxResult(id, contract, err)
	}
	se.setNonce(sender, tx.Nonce+1)

	c := call{
		contract: contract,
		sender:   sender,
		inv:      invocation.Invocation{Kind: invocation.SecretInput, Shortname: sn, Rpc: publicArgs},
		original: id,
		current:  id,
	}
	return result.MapOrElse(
		se.secretInput(ctx, c, value),
		func(err error) TxResult {
			return errorToTxResult(id, contract, err)
		},
		func(v zk.SecretVarId) TxResult {
			return TxResult{
				Id:       id.String(),
				Success:  true,
				Ret:      strconv.FormatUint(uint64(v), 10),
				Contract: contract,
			}
		},
	)
}

func (se *StateEngine) secretInput(ctx context.Context, c call, value int64) result.Result[zk.SecretVarId] {
	kind := c.inv.Kind.String()
	fail := func(err error) result.Result[zk.SecretVarId] {
		se.record(c, kind, 0, err)
		se.log.Error("secret input failed", c.contract, fmt.Sprintf("0x%02x", uint32(c.inv.Shortname)), err)
		return result.Err[zk.SecretVarId](err)
	}

	sess, out, err := se.run(c)
	if err != nil {
		return fail(err)
	}
	def, err := out.Input.Take()
	if err != nil {
		return fail(ErrNoInputDef)
	}
	id, err := se.zk.Input(ctx, c.contract, c.sender, def, value)
	if err != nil {
		return fail(err)
	}
	hook, hookErr := def.OnInputted.Take()
	if hookErr != nil {
		if err := se.zk.Confirm(c.contract, id); err != nil {
			return fail(err)
		}
	}
	if err := se.commit(sess, c, out); err != nil {
		if rerr := se.zk.Reject(ctx, c.contract, id); rerr != nil {
			se.log.Error("rejecting input", id, "of", c.contract, rerr)
		}
		return fail(err)
	}
	if hookErr == nil {
		se.push(inputJob{contract: c.contract, owner: c.sender, id: id, hook: hook, original: c.original})
	}
	se.record(c, kind, len(out.Events), nil)
	return result.Ok(id)
}

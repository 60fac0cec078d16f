package ballot_test

import (
	"context"
	"testing"

	"github.com/thebeyondr/sekiva/lib/rpc"
	"github.com/thebeyondr/sekiva/modules/common"
	"github.com/thebeyondr/sekiva/modules/contract/ballot"
	"github.com/thebeyondr/sekiva/modules/contract/events"
	"github.com/thebeyondr/sekiva/modules/contract/invocation"
	processLedger "github.com/thebeyondr/sekiva/modules/process-ledger"
	"github.com/thebeyondr/sekiva/modules/zk"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin  = common.Address{Identifier: [20]byte{0xad}}
	org    = common.Address{Type: common.PublicContractAddress, Identifier: [20]byte{0x0f}}
	self   = common.Address{Type: common.ZkContractAddress, Identifier: [20]byte{0xba}}
	alice  = common.Address{Identifier: [20]byte{1}}
	bob    = common.Address{Identifier: [20]byte{2}}
	carol  = common.Address{Identifier: [20]byte{3}}
	mallet = common.Address{Identifier: [20]byte{9}}
)

func at(sender common.Address, t int64) common.ContractContext {
	return common.ContractContext{
		ContractAddress:     self,
		Sender:              sender,
		BlockTime:           t,
		BlockProductionTime: t * 1000,
		OriginalTransaction: common.Hash{byte(t), byte(t >> 8), 0xee},
	}
}

func initArgs() ballot.InitArgs {
	return ballot.InitArgs{
		Options:        []string{"Yes", "No"},
		Title:          "Lunch",
		Description:    "Pizza again?",
		Organization:   org,
		Administrator:  admin,
		EligibleVoters: []common.Address{carol, alice, bob},
	}
}

func newBallot(t *testing.T) ballot.State {
	s, err := ballot.Initialize(at(org, 10), initArgs())
	require.NoError(t, err)
	return s
}

func activeBallot(t *testing.T) ballot.State {
	s, _, err := ballot.SetVoteActive(at(admin, 100), newBallot(t), optional.None[uint64]())
	require.NoError(t, err)
	return s
}

func TestInitialize(t *testing.T) {
	s := newBallot(t)
	assert.Equal(t, ballot.Created, s.Status)
	assert.Equal(t, []common.Address{alice, bob, carol}, s.EligibleVoters)
	assert.Empty(t, s.AlreadyVoted)
	assert.True(t, s.Tally.IsNone())
}

func TestInitializeValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *ballot.InitArgs)
	}{
		{"one option", func(a *ballot.InitArgs) { a.Options = []string{"Yes"} }},
		{"six options", func(a *ballot.InitArgs) { a.Options = []string{"a", "b", "c", "d", "e", "f"} }},
		{"empty option", func(a *ballot.InitArgs) { a.Options = []string{"Yes", ""} }},
		{"empty title", func(a *ballot.InitArgs) { a.Title = "" }},
		{"empty description", func(a *ballot.InitArgs) { a.Description = "" }},
		{"no administrator", func(a *ballot.InitArgs) { a.Administrator = common.Address{} }},
		{"administrator is the organization", func(a *ballot.InitArgs) { a.Administrator = a.Organization }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := initArgs()
			tt.mutate(&args)
			_, err := ballot.Initialize(at(org, 10), args)
			assert.ErrorIs(t, err, common.ErrInvalidArgument)
		})
	}
}

func TestInitArgsRoundTrip(t *testing.T) {
	args := initArgs()
	b := args.Encode()
	assert.Equal(t, rpc.RawInvocationHeader, b[:5])

	got, err := ballot.DecodeInitArgs(b)
	require.NoError(t, err)
	assert.Equal(t, args, got)

	_, err = ballot.DecodeInitArgs(b[5:])
	assert.ErrorIs(t, err, rpc.ErrMissingHeader)
}

func TestSetVoteActive(t *testing.T) {
	s := newBallot(t)

	_, _, err := ballot.SetVoteActive(at(alice, 100), s, optional.None[uint64]())
	assert.ErrorIs(t, err, ballot.ErrUnauthorized)

	_, _, err = ballot.SetVoteActive(at(admin, 100), s, optional.Some[uint64](common.MAX_VOTING_DURATION+1))
	assert.ErrorContains(t, err, "Voting duration cannot exceed 30 days")

	next, evs, err := ballot.SetVoteActive(at(admin, 100), s, optional.None[uint64]())
	require.NoError(t, err)
	assert.Equal(t, ballot.Active, next.Status)
	assert.EqualValues(t, 100, next.StartTime)
	assert.EqualValues(t, 100+common.DEFAULT_VOTING_DURATION, next.EndTime)
	assert.Equal(t, ballot.Created, s.Status, "input state is left alone")

	require.Len(t, evs, 1)
	require.Len(t, evs[0].Interactions, 2)
	assert.Equal(t, self, evs[0].Interactions[0].Contract)
	assert.Equal(t, org, evs[0].Interactions[1].Contract)
	sn, payload, err := evs[0].Interactions[1].Split()
	require.NoError(t, err)
	assert.Equal(t, events.ORGANIZATION_HANDLE_BALLOT_EVENT, sn)
	ev, err := ballot.DecodeBallotEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, ballot.StatusChanged{Status: ballot.Active, Timestamp: 100, ProcessId: processLedger.NewProcessId(at(admin, 100))}, ev)

	_, _, err = ballot.SetVoteActive(at(admin, 101), next, optional.None[uint64]())
	assert.ErrorIs(t, err, ballot.ErrInvalidStatus)
}

func TestCastVoteRules(t *testing.T) {
	s := activeBallot(t)

	next, def, err := ballot.CastVote(at(alice, 200), s)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{alice}, next.AlreadyVoted)
	assert.Equal(t, []byte{ballot.SecretVote}, def.Metadata)
	assert.EqualValues(t, 8, def.BitLength)
	assert.EqualValues(t, 0, def.Min)
	assert.EqualValues(t, 1, def.Max)
	assert.Equal(t, optional.Some(ballot.VOTE_INPUTTED), def.OnInputted)

	_, _, err = ballot.CastVote(at(alice, 201), next)
	assert.ErrorIs(t, err, ballot.ErrAlreadyVoted)

	unchanged, _, err := ballot.CastVote(at(mallet, 201), next)
	assert.ErrorIs(t, err, ballot.ErrNotEligible)
	assert.Equal(t, next.AlreadyVoted, unchanged.AlreadyVoted)

	_, _, err = ballot.CastVote(at(bob, s.EndTime+1), next)
	assert.ErrorIs(t, err, ballot.ErrVotingClosed)

	_, _, err = ballot.CastVote(at(bob, 200), newBallot(t))
	assert.ErrorIs(t, err, ballot.ErrInvalidStatus)
}

func TestTerminalBallotIsFrozen(t *testing.T) {
	s := activeBallot(t)
	s, _, err := ballot.CancelBallot(at(admin, 150), s)
	require.NoError(t, err)
	assert.Equal(t, ballot.Cancelled, s.Status)

	_, _, err = ballot.CancelBallot(at(admin, 151), s)
	assert.ErrorIs(t, err, ballot.ErrInvalidStatus)
	_, _, err = ballot.SetVoteActive(at(admin, 151), s, optional.None[uint64]())
	assert.ErrorIs(t, err, ballot.ErrInvalidStatus)
	_, _, _, err = ballot.ComputeTally(at(admin, 151), zk.State{}, s)
	assert.ErrorIs(t, err, ballot.ErrInvalidStatus)
	_, _, err = ballot.CastVote(at(alice, 151), s)
	assert.ErrorIs(t, err, ballot.ErrInvalidStatus)

	added := events.MembersAdded{Members: []common.Address{mallet}, Organization: org, Timestamp: 152, ProcessId: "152-aa", Nonce: 5}
	next, evs, err := ballot.HandleOrgEvent(at(org, 152), s, added)
	require.NoError(t, err)
	assert.Empty(t, evs)
	assert.Equal(t, s.EligibleVoters, next.EligibleVoters)
	state, _ := next.EventProcesses.Get("152-aa")
	assert.Equal(t, processLedger.Ignored, state)

	changes := []zk.StateChange{}
	next, changes = ballot.OnComputeComplete(next, []zk.SecretVarId{7})
	assert.Equal(t, []zk.StateChange{zk.ContractDone{}}, changes)
	assert.Equal(t, ballot.Cancelled, next.Status)
}

func TestOrgEvents(t *testing.T) {
	s := activeBallot(t)
	added := events.MembersAdded{Members: []common.Address{mallet}, Organization: org, Timestamp: 120, ProcessId: "120-aa", Nonce: 2}

	_, _, err := ballot.HandleOrgEvent(at(mallet, 120), s, added)
	assert.ErrorIs(t, err, ballot.ErrUnauthorized)

	next, evs, err := ballot.HandleOrgEvent(at(org, 120), s, added)
	require.NoError(t, err)
	assert.True(t, common.ContainsAddress(next.EligibleVoters, mallet))
	state, _ := next.EventProcesses.Get("120-aa")
	assert.Equal(t, processLedger.Complete, state)
	require.Len(t, evs, 1)
	_, payload, err := evs[0].Interactions[0].Split()
	require.NoError(t, err)
	update, err := ballot.DecodeBallotEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{mallet}, update.(ballot.MembersUpdated).Added)

	again, evs, err := ballot.HandleOrgEvent(at(org, 121), next, added)
	require.NoError(t, err)
	assert.Empty(t, evs)
	assert.Equal(t, next, again)

	ignored, evs, err := ballot.HandleOrgEvent(at(org, 122), next, events.BallotDeployed{Organization: org, Ballot: self, Title: "x", Timestamp: 122, ProcessId: "122-aa"})
	require.NoError(t, err)
	assert.Empty(t, evs)
	state, _ = ignored.EventProcesses.Get("122-aa")
	assert.Equal(t, processLedger.Ignored, state)
}

func TestOrgEventsOutOfOrder(t *testing.T) {
	s := activeBallot(t)
	removed := events.MembersRemoved{Members: []common.Address{bob}, Organization: org, Timestamp: 130, ProcessId: "130-aa", Nonce: 3}
	staleAdd := events.MembersAdded{Members: []common.Address{bob}, Organization: org, Timestamp: 120, ProcessId: "120-aa", Nonce: 2}

	s, _, err := ballot.HandleOrgEvent(at(org, 131), s, removed)
	require.NoError(t, err)
	assert.False(t, common.ContainsAddress(s.EligibleVoters, bob))

	s, _, err = ballot.HandleOrgEvent(at(org, 132), s, staleAdd)
	require.NoError(t, err)
	assert.False(t, common.ContainsAddress(s.EligibleVoters, bob), "older add must not undo the newer removal")
	assert.EqualValues(t, 3, s.MemberNonces[bob.String()])
}

func TestSyncEligibleVoters(t *testing.T) {
	created := newBallot(t)
	_, _, err := ballot.SyncEligibleVoters(at(admin, 110), created, []common.Address{alice})
	assert.ErrorIs(t, err, ballot.ErrInvalidStatus)

	s := activeBallot(t)
	_, _, err = ballot.SyncEligibleVoters(at(alice, 110), s, []common.Address{alice})
	assert.ErrorIs(t, err, ballot.ErrUnauthorized)

	next, evs, err := ballot.SyncEligibleVoters(at(org, 110), s, []common.Address{mallet, alice, alice})
	require.NoError(t, err)
	assert.Equal(t, []common.Address{alice, mallet}, next.EligibleVoters)
	require.Len(t, evs, 1)
	_, payload, err := evs[0].Interactions[0].Split()
	require.NoError(t, err)
	ev, err := ballot.DecodeBallotEvent(payload)
	require.NoError(t, err)
	update := ev.(ballot.MembersUpdated)
	assert.Equal(t, []common.Address{mallet}, update.Added)
	assert.Equal(t, []common.Address{bob, carol}, update.Removed)
}

func TestStatusChangedSinkIsSelfOnly(t *testing.T) {
	s := activeBallot(t)
	_, err := ballot.StatusChangedSink(at(org, 1), s, ballot.TallyStarted{})
	assert.ErrorIs(t, err, ballot.ErrUnauthorized)
	_, err = ballot.StatusChangedSink(at(self, 1), s, ballot.TallyStarted{})
	assert.NoError(t, err)
}

func newEngine(t *testing.T) *zk.Engine {
	engine, err := zk.New(zk.MemoryNodes(3), nil, nil)
	require.NoError(t, err)
	engine.Attach(self, ballot.Programs())
	return engine
}

func vote(t *testing.T, engine *zk.Engine, s ballot.State, voter common.Address, option int64) ballot.State {
	ctx := context.Background()
	s, def, err := ballot.CastVote(at(voter, 200), s)
	require.NoError(t, err)
	id, err := engine.Input(ctx, self, voter, def, option)
	require.NoError(t, err)
	require.NoError(t, engine.Confirm(self, id))
	s, evs, err := ballot.VoteInputted(at(self, 201), engine.State(self), s, id)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	return s
}

func TestTallyScenario(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t)
	s := activeBallot(t)

	s = vote(t, engine, s, alice, 0)
	s = vote(t, engine, s, bob, 0)
	s = vote(t, engine, s, carol, 1)
	assert.Len(t, s.AlreadyVoted, 3)

	s, _, changes, err := ballot.ComputeTally(at(admin, 300), engine.State(self), s)
	require.NoError(t, err)
	assert.Equal(t, ballot.Tallying, s.Status)
	require.NoError(t, engine.Apply(self, changes))

	_, _, _, err = ballot.ComputeTally(at(admin, 301), engine.State(self), s)
	assert.ErrorIs(t, err, ballot.ErrTallyInProgress)

	outputs, err := engine.Compute(ctx, self)
	require.NoError(t, err)
	require.Len(t, outputs, 1)

	s, changes = ballot.OnComputeComplete(s, outputs)
	assert.Equal(t, []zk.StateChange{zk.OpenVariables{Ids: outputs}}, changes)
	require.NoError(t, engine.Open(ctx, self, outputs))

	s, evs, changes, err := ballot.OnVariablesOpened(at(self, 302), engine.State(self), s, outputs)
	require.NoError(t, err)
	assert.Equal(t, []zk.StateChange{zk.ContractDone{}}, changes)
	assert.Len(t, evs, 2)
	assert.Equal(t, ballot.Completed, s.Status)
	assert.Equal(t, optional.Some(ballot.Tally{Option0: 2, Option1: 1, Total: 3}), s.Tally)
	assert.Empty(t, s.EligibleVoters)
	assert.Empty(t, s.AlreadyVoted)

	view := s.View()
	assert.Equal(t, 0, view.EligibleVoterCount)
	assert.Equal(t, []string{"Yes", "No"}, view.Options)
}

func TestOpenedVariableChecks(t *testing.T) {
	s := activeBallot(t)
	s.Status = ballot.Tallying

	_, _, _, err := ballot.OnVariablesOpened(at(self, 1), zk.State{}, s, []zk.SecretVarId{1, 2})
	assert.ErrorIs(t, err, ballot.ErrProtocolViolation)

	stray := zk.State{Variables: []zk.Variable{{Id: 1, Metadata: []byte{ballot.SecretVote}, Opened: true, Data: []byte{1}}}}
	next, evs, changes, err := ballot.OnVariablesOpened(at(self, 1), stray, s, []zk.SecretVarId{1})
	require.NoError(t, err)
	assert.Empty(t, evs)
	assert.Empty(t, changes)
	assert.Equal(t, s, next)

	short := zk.State{Variables: []zk.Variable{{Id: 1, Metadata: []byte{ballot.SecretTallyResult}, Opened: true, Data: []byte{1, 0, 0, 0}}}}
	_, _, _, err = ballot.OnVariablesOpened(at(self, 1), short, s, []zk.SecretVarId{1})
	assert.ErrorIs(t, err, ballot.ErrProtocolViolation)
}

func TestDecodeTally(t *testing.T) {
	b := []byte{2, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 4, 0, 0, 0}
	tally, err := ballot.DecodeTally(b)
	require.NoError(t, err)
	assert.Equal(t, ballot.Tally{Option0: 2, Option1: 1, Option4: 4, Total: 7}, tally)
	assert.Equal(t, [ballot.MAX_OPTIONS]uint32{2, 1, 0, 0, 4}, tally.Counts())
}

func TestDispatch(t *testing.T) {
	c := ballot.Contract{}
	out, err := c.Invoke(at(org, 10), zk.State{}, nil, invocation.Invocation{Kind: invocation.Init, Rpc: initArgs().Encode()})
	require.NoError(t, err)

	w := rpc.NewWriter()
	w.WriteBool(false)
	out, err = c.Invoke(at(admin, 100), zk.State{}, out.State, invocation.Invocation{
		Kind:      invocation.Action,
		Shortname: ballot.SET_VOTE_ACTIVE,
		Rpc:       w.Bytes(),
	})
	require.NoError(t, err)
	s, err := ballot.DecodeState(out.State)
	require.NoError(t, err)
	assert.Equal(t, ballot.Active, s.Status)
	assert.Len(t, out.Events, 1)

	vote, err := c.Invoke(at(alice, 200), zk.State{}, out.State, invocation.Invocation{Kind: invocation.SecretInput, Shortname: ballot.CAST_VOTE})
	require.NoError(t, err)
	assert.True(t, vote.Input.IsSome())

	_, err = c.Invoke(at(admin, 100), zk.State{}, out.State, invocation.Invocation{Kind: invocation.Action, Shortname: 0x7f})
	assert.ErrorIs(t, err, invocation.ErrUnknownShortname)

	_, err = c.Invoke(at(admin, 100), zk.State{}, out.State, invocation.Invocation{Kind: invocation.Callback})
	assert.ErrorIs(t, err, invocation.ErrUnsupported)
}

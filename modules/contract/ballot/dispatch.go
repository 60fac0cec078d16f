package ballot

import (
	"github.com/thebeyondr/sekiva/lib/rpc"
	"github.com/thebeyondr/sekiva/modules/common"
	"github.com/thebeyondr/sekiva/modules/contract/events"
	"github.com/thebeyondr/sekiva/modules/contract/invocation"
	"github.com/thebeyondr/sekiva/modules/zk"

	"github.com/moznion/go-optional"
)

type Contract struct{}

var _ invocation.ZkContract = Contract{}

func (Contract) Name() string {
	return "ballot"
}

func (Contract) Programs() map[common.Shortname]zk.Program {
	return Programs()
}

func (Contract) Invoke(ctx common.ContractContext, zkState zk.State, raw []byte, inv invocation.Invocation) (invocation.Outcome, error) {
	if inv.Kind == invocation.Init {
		args, err := DecodeInitArgs(inv.Rpc)
		if err != nil {
			return invocation.Outcome{}, err
		}
		s, err := Initialize(ctx, args)
		if err != nil {
			return invocation.Outcome{}, err
		}
		return outcome(s, nil, nil)
	}

	s, err := DecodeState(raw)
	if err != nil {
		return invocation.Outcome{}, err
	}

	switch inv.Kind {
	case invocation.Action:
		return invokeAction(ctx, zkState, s, inv)
	case invocation.SecretInput:
		if inv.Shortname != CAST_VOTE {
			return invocation.Outcome{}, invocation.Unknown(inv)
		}
		if err := rpc.NewReader(inv.Rpc).Finish(); err != nil {
			return invocation.Outcome{}, err
		}
		s, def, err := CastVote(ctx, s)
		if err != nil {
			return invocation.Outcome{}, err
		}
		out, err := outcome(s, nil, nil)
		out.Input = optional.Some(def)
		return out, err
	case invocation.InputConfirmed:
		if inv.Shortname != VOTE_INPUTTED || len(inv.Variables) != 1 {
			return invocation.Outcome{}, invocation.Unknown(inv)
		}
		s, evs, err := VoteInputted(ctx, zkState, s, inv.Variables[0])
		if err != nil {
			return invocation.Outcome{}, err
		}
		return outcome(s, evs, nil)
	case invocation.ComputeComplete:
		if inv.Shortname != ON_COMPUTE_COMPLETE {
			return invocation.Outcome{}, invocation.Unknown(inv)
		}
		s, changes := OnComputeComplete(s, inv.Variables)
		return outcome(s, nil, changes)
	case invocation.VariablesOpened:
		s, evs, changes, err := OnVariablesOpened(ctx, zkState, s, inv.Variables)
		if err != nil {
			return invocation.Outcome{}, err
		}
		return outcome(s, evs, changes)
	}
	return invocation.Outcome{}, invocation.ErrUnsupported
}

func invokeAction(ctx common.ContractContext, zkState zk.State, s State, inv invocation.Invocation) (invocation.Outcome, error) {
	r := rpc.NewReader(inv.Rpc)
	var (
		evs     []common.EventGroup
		changes []zk.StateChange
		err     error
	)
	switch inv.Shortname {
	case SET_VOTE_ACTIVE:
		duration := readDuration(r)
		if err := r.Finish(); err != nil {
			return invocation.Outcome{}, err
		}
		s, evs, err = SetVoteActive(ctx, s, duration)
	case CANCEL_BALLOT:
		if err := r.Finish(); err != nil {
			return invocation.Outcome{}, err
		}
		s, evs, err = CancelBallot(ctx, s)
	case COMPUTE_TALLY:
		if err := r.Finish(); err != nil {
			return invocation.Outcome{}, err
		}
		s, evs, changes, err = ComputeTally(ctx, zkState, s)
	case HANDLE_ORG_EVENT:
		ev := events.ReadOrganizationEvent(r)
		if err := r.Finish(); err != nil {
			return invocation.Outcome{}, err
		}
		s, evs, err = HandleOrgEvent(ctx, s, ev)
	case SYNC_ELIGIBLE_VOTERS:
		voters := common.ReadAddresses(r)
		if err := r.Finish(); err != nil {
			return invocation.Outcome{}, err
		}
		s, evs, err = SyncEligibleVoters(ctx, s, voters)
	case STATUS_CHANGED_SINK:
		ev := ReadBallotEvent(r)
		if err := r.Finish(); err != nil {
			return invocation.Outcome{}, err
		}
		s, err = StatusChangedSink(ctx, s, ev)
	default:
		return invocation.Outcome{}, invocation.Unknown(inv)
	}
	if err != nil {
		return invocation.Outcome{}, err
	}
	return outcome(s, evs, changes)
}

func outcome(s State, evs []common.EventGroup, changes []zk.StateChange) (invocation.Outcome, error) {
	b, err := s.Encode()
	if err != nil {
		return invocation.Outcome{}, err
	}
	return invocation.Outcome{State: b, Events: evs, Zk: changes}, nil
}

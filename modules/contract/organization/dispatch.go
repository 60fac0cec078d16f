package organization

import (
	"github.com/thebeyondr/sekiva/lib/rpc"
	"github.com/thebeyondr/sekiva/modules/common"
	"github.com/thebeyondr/sekiva/modules/contract/ballot"
	"github.com/thebeyondr/sekiva/modules/contract/events"
	"github.com/thebeyondr/sekiva/modules/contract/invocation"
	"github.com/thebeyondr/sekiva/modules/zk"
)

type Contract struct{}

var _ invocation.Contract = Contract{}

func (Contract) Name() string {
	return "organization"
}

func (Contract) Invoke(ctx common.ContractContext, _ zk.State, raw []byte, inv invocation.Invocation) (invocation.Outcome, error) {
	if inv.Kind == invocation.Init {
		args, err := DecodeInitArgs(inv.Rpc)
		if err != nil {
			return invocation.Outcome{}, err
		}
		s, err := Initialize(ctx, args)
		if err != nil {
			return invocation.Outcome{}, err
		}
		return outcome(s, nil)
	}

	s, err := DecodeState(raw)
	if err != nil {
		return invocation.Outcome{}, err
	}
	r := rpc.NewReader(inv.Rpc)

	switch inv.Kind {
	case invocation.Callback:
		if inv.Shortname != DEPLOY_BALLOT_CALLBACK {
			return invocation.Outcome{}, invocation.Unknown(inv)
		}
		addr := common.ReadAddress(r)
		title := r.ReadString()
		pid := r.ReadString()
		if err := r.Finish(); err != nil {
			return invocation.Outcome{}, err
		}
		s, evs, err := DeployBallotCallback(ctx, inv.Callback, s, addr, title, pid)
		if err != nil {
			return invocation.Outcome{}, err
		}
		return outcome(s, evs)
	case invocation.Action:
	default:
		return invocation.Outcome{}, invocation.ErrUnsupported
	}

	var evs []common.EventGroup
	switch inv.Shortname {
	case ADD_ADMINISTRATOR, REMOVE_ADMINISTRATOR, ADD_BALLOT:
		a := common.ReadAddress(r)
		if err := r.Finish(); err != nil {
			return invocation.Outcome{}, err
		}
		switch inv.Shortname {
		case ADD_ADMINISTRATOR:
			s, err = AddAdministrator(ctx, s, a)
		case REMOVE_ADMINISTRATOR:
			s, err = RemoveAdministrator(ctx, s, a)
		default:
			s, err = AddBallot(ctx, s, a)
		}
	case ADD_MEMBER, REMOVE_MEMBER, SYNC_BALLOT_VOTERS:
		a := common.ReadAddress(r)
		if err := r.Finish(); err != nil {
			return invocation.Outcome{}, err
		}
		switch inv.Shortname {
		case ADD_MEMBER:
			s, evs, err = AddMember(ctx, s, a)
		case REMOVE_MEMBER:
			s, evs, err = RemoveMember(ctx, s, a)
		default:
			s, evs, err = SyncBallotVoters(ctx, s, a)
		}
	case ADD_MEMBERS, REMOVE_MEMBERS:
		addrs := common.ReadAddresses(r)
		if err := r.Finish(); err != nil {
			return invocation.Outcome{}, err
		}
		if inv.Shortname == ADD_MEMBERS {
			s, evs, err = AddMembers(ctx, s, addrs)
		} else {
			s, evs, err = RemoveMembers(ctx, s, addrs)
		}
	case DEPLOY_BALLOT:
		req := ReadBallotInit(r)
		if err := r.Finish(); err != nil {
			return invocation.Outcome{}, err
		}
		s, evs, err = DeployBallot(ctx, s, req)
	case HANDLE_BALLOT_DEPLOYED, HANDLE_BALLOT_DEPLOY_FAILED:
		ev := events.ReadOrganizationEvent(r)
		if err := r.Finish(); err != nil {
			return invocation.Outcome{}, err
		}
		if inv.Shortname == HANDLE_BALLOT_DEPLOYED {
			s, err = HandleBallotDeployed(ctx, s, ev)
		} else {
			s, err = HandleBallotDeployFailed(ctx, s, ev)
		}
	case HANDLE_BALLOT_EVENT:
		ev := ballot.ReadBallotEvent(r)
		if err := r.Finish(); err != nil {
			return invocation.Outcome{}, err
		}
		s, err = HandleBallotEvent(ctx, s, ev)
	default:
		return invocation.Outcome{}, invocation.Unknown(inv)
	}
	if err != nil {
		return invocation.Outcome{}, err
	}
	return outcome(s, evs)
}

func outcome(s State, evs []common.EventGroup) (invocation.Outcome, error) {
	b, err := s.Encode()
	if err != nil {
		return invocation.Outcome{}, err
	}
	return invocation.Outcome{State: b, Events: evs}, nil
}

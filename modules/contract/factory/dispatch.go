package factory

import (
	"github.com/thebeyondr/sekiva/lib/rpc"
	"github.com/thebeyondr/sekiva/modules/common"
	"github.com/thebeyondr/sekiva/modules/contract/events"
	"github.com/thebeyondr/sekiva/modules/contract/invocation"
	"github.com/thebeyondr/sekiva/modules/zk"
)

type Contract struct{}

var _ invocation.Contract = Contract{}

func (Contract) Name() string {
	return "factory"
}

func (Contract) Invoke(ctx common.ContractContext, _ zk.State, raw []byte, inv invocation.Invocation) (invocation.Outcome, error) {
	if inv.Kind == invocation.Init {
		code, err := DecodeInitArgs(inv.Rpc)
		if err != nil {
			return invocation.Outcome{}, err
		}
		s, err := Initialize(ctx, code)
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
		if inv.Shortname != DEPLOY_ORGANIZATION_CALLBACK {
			return invocation.Outcome{}, invocation.Unknown(inv)
		}
		addr := common.ReadAddress(r)
		pid := r.ReadString()
		admin := common.ReadAddress(r)
		if err := r.Finish(); err != nil {
			return invocation.Outcome{}, err
		}
		s, evs, err := DeployOrganizationCallback(ctx, inv.Callback, s, addr, pid, admin)
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
	case DEPLOY_ORGANIZATION:
		req := ReadOrganizationInit(r)
		if err := r.Finish(); err != nil {
			return invocation.Outcome{}, err
		}
		s, evs, err = DeployOrganization(ctx, s, req)
	case UPDATE_CONTRACT_CODE:
		code := ReadContractCode(r)
		if err := r.Finish(); err != nil {
			return invocation.Outcome{}, err
		}
		s, err = UpdateContractCode(ctx, s, code)
	case HANDLE_ORGANIZATION_EVENT, HANDLE_ORGANIZATION_DEPLOYED_EVENT, HANDLE_ORGANIZATION_DEPLOY_FAILED:
		ev := events.ReadOrganizationEvent(r)
		if err := r.Finish(); err != nil {
			return invocation.Outcome{}, err
		}
		switch inv.Shortname {
		case HANDLE_ORGANIZATION_EVENT:
			s, err = HandleOrganizationEvent(ctx, s, ev)
		case HANDLE_ORGANIZATION_DEPLOYED_EVENT:
			s, err = HandleOrganizationDeployed(ctx, s, ev)
		default:
			s, err = HandleOrganizationDeployFailed(ctx, s, ev)
		}
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

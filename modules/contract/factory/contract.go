package factory

import (
	"fmt"
	"maps"

	"github.com/thebeyondr/sekiva/lib/rpc"
	"github.com/thebeyondr/sekiva/modules/common"
	"github.com/thebeyondr/sekiva/modules/contract/events"
	"github.com/thebeyondr/sekiva/modules/contract/organization"
	processLedger "github.com/thebeyondr/sekiva/modules/process-ledger"
)

const (
	DEPLOY_ORGANIZATION                common.Shortname = 0x01
	UPDATE_CONTRACT_CODE               common.Shortname = 0x02
	DEPLOY_ORGANIZATION_CALLBACK       common.Shortname = 0x10
	HANDLE_ORGANIZATION_EVENT                           = events.FACTORY_HANDLE_ORGANIZATION_EVENT
	HANDLE_ORGANIZATION_DEPLOYED_EVENT common.Shortname = 0x45
	HANDLE_ORGANIZATION_DEPLOY_FAILED  common.Shortname = 0x46
)

const DEPLOY_FAILED_REASON = "Deployment callback failed"


// The deployer becomes the factory admin
func Initialize(ctx common.ContractContext, code ContractCode) (State, error) {
	if err := common.Validate(code); err != nil {
		return State{}, err
	}
	return State{
		Admin:                 ctx.Sender,
		Organizations:         []common.Address{},
		Ballots:               []common.Address{},
		UserOrgMemberships:    map[string][]common.Address{},
		Code:                  code,
		OrganizationProcesses: processLedger.Ledger[processLedger.OrganizationProcessState]{},
		EventProcesses:        processLedger.Ledger[processLedger.ProcessState]{},
	}, nil
}

func DeployOrganization(ctx common.ContractContext, s State, req OrganizationInit) (State, []common.EventGroup, error) {
	args := organization.InitArgs{
		Name:          req.Name,
		Description:   req.Description,
		ProfileImage:  req.ProfileImage,
		BannerImage:   req.BannerImage,
		XUrl:          req.XUrl,
		DiscordUrl:    req.DiscordUrl,
		WebsiteUrl:    req.WebsiteUrl,
		Administrator: req.Administrator,
		BallotCode:    s.Code.BallotCode,
		BallotAbi:     s.Code.BallotAbi,
		Factory:       ctx.ContractAddress,
	}
	if err := common.Validate(args); err != nil {
		return s, nil, err
	}
	if req.Administrator == ctx.ContractAddress {
		return s, nil, fmt.Errorf("%w: Administrator cannot be the factory.", common.ErrInvalidArgument)
	}

	pid := processLedger.NewProcessId(ctx)
	processes, err := s.OrganizationProcesses.Begin(pid, processLedger.OrganizationCreated)
	if err != nil {
		return s, nil, err
	}
	s.OrganizationProcesses = processes
	s.EventNonce++

	predicted := common.PredictedAddress(ctx, common.PublicContractAddress)
	group := common.NewEventGroupBuilder().
		Deploy(false, common.DeployRequest{
			Code:     s.Code.OrganizationCode,
			Abi:      s.Code.OrganizationAbi,
			InitData: args.Encode(),
			BinderId: common.PUBLIC_BINDER_ID,
		}).
		WithCallback(DEPLOY_ORGANIZATION_CALLBACK).
		WithCost(common.CALLBACK_COST).
		Argument(predicted).
		Argument(rpc.String(pid)).
		Argument(req.Administrator).
		Done().
		Build()
	return s, []common.EventGroup{group}, nil
}

func UpdateContractCode(ctx common.ContractContext, s State, code ContractCode) (State, error) {
	if ctx.Sender != s.Admin {
		return s, fmt.Errorf("%w: Only the factory admin can update contract code.", ErrUnauthorized)
	}
	if err := common.Validate(code); err != nil {
		return s, err
	}
	s.Code = code
	return s, nil
}

// Settles an organization deployment. A process no longer in Created was
// already settled and is left alone.
func DeployOrganizationCallback(ctx common.ContractContext, cb common.CallbackContext, s State, addr common.Address, pid string, administrator common.Address) (State, []common.EventGroup, error) {
	current, ok := s.OrganizationProcesses.Get(pid)
	if !ok {
		return s, nil, fmt.Errorf("%w: %s", ErrUnknownProcess, pid)
	}
	if current != processLedger.OrganizationCreated {
		return s, nil, nil
	}

	if !cb.Success {
		processes, _, err := s.OrganizationProcesses.Advance(pid, processLedger.OrganizationDeleted)
		if err != nil {
			return s, nil, err
		}
		s.OrganizationProcesses = processes
		s.EventNonce++
		failed := events.OrganizationDeployFailed{
			Factory:       ctx.ContractAddress,
			Administrator: administrator,
			Reason:        DEPLOY_FAILED_REASON,
			Timestamp:     ctx.BlockTime,
			ProcessId:     pid,
		}
		group := common.NewEventGroupBuilder().
			Call(ctx.ContractAddress, HANDLE_ORGANIZATION_DEPLOY_FAILED).
			Argument(failed).
			Done().
			Build()
		return s, []common.EventGroup{group}, nil
	}

	processes, _, err := s.OrganizationProcesses.Advance(pid, processLedger.OrganizationDeployed)
	if err != nil {
		return s, nil, err
	}
	s.OrganizationProcesses = processes
	s.Organizations = common.InsertAddress(s.Organizations, addr)
	s = s.index(administrator, addr)
	s.EventNonce++

	deployed := events.OrganizationDeployed{
		Factory:      ctx.ContractAddress,
		Organization: addr,
		Timestamp:    ctx.BlockTime,
		ProcessId:    pid,
	}
	group := common.NewEventGroupBuilder().
		Call(ctx.ContractAddress, HANDLE_ORGANIZATION_DEPLOYED_EVENT).
		Argument(deployed).
		Done().
		Build()
	return s, []common.EventGroup{group}, nil
}

func HandleOrganizationDeployed(ctx common.ContractContext, s State, ev events.OrganizationEvent) (State, error) {
	if !ctx.SentBySelf() {
		return s, fmt.Errorf("%w: only the factory itself reports deployments", ErrUnauthorized)
	}
	deployed, ok := ev.(events.OrganizationDeployed)
	if !ok {
		return s, fmt.Errorf("%w: unexpected event %T", common.ErrInvalidArgument, ev)
	}
	processes, changed, err := s.OrganizationProcesses.Advance(deployed.ProcessId, processLedger.OrganizationActive)
	if err != nil {
		return s, err
	}
	if changed {
		s.OrganizationProcesses = processes
	}
	return s, nil
}

// Sink for the failure notice; the process must already be Deleted
func HandleOrganizationDeployFailed(ctx common.ContractContext, s State, ev events.OrganizationEvent) (State, error) {
	if !ctx.SentBySelf() {
		return s, fmt.Errorf("%w: only the factory itself reports deployments", ErrUnauthorized)
	}
	failed, ok := ev.(events.OrganizationDeployFailed)
	if !ok {
		return s, fmt.Errorf("%w: unexpected event %T", common.ErrInvalidArgument, ev)
	}
	if state, ok := s.OrganizationProcesses.Get(failed.ProcessId); !ok || state != processLedger.OrganizationDeleted {
		return s, fmt.Errorf("%w: %s was not deleted", ErrUnknownProcess, failed.ProcessId)
	}
	return s, nil
}

func eventOrganization(ev events.OrganizationEvent) common.Address {
	switch e := ev.(type) {
	case events.BallotDeployed:
		return e.Organization
	case events.MembersAdded:
		return e.Organization
	case events.MembersRemoved:
		return e.Organization
	case events.BallotDeployFailed:
		return e.Organization
	case events.OrganizationDeployed:
		return e.Organization
	}
	return common.Address{}
}

// Applies an event reported by one of the factory's organizations. Each
// process id is handled once.
func HandleOrganizationEvent(ctx common.ContractContext, s State, ev events.OrganizationEvent) (State, error) {
	org := eventOrganization(ev)
	if ctx.Sender != org {
		return s, fmt.Errorf("%w: event for %s sent by %s", ErrUnauthorized, org, ctx.Sender)
	}
	if !common.ContainsAddress(s.Organizations, org) {
		return s, fmt.Errorf("%w: %s", ErrUnknownOrganization, org)
	}
	pid := ev.GetProcessId()
	if s.EventProcesses.Has(pid) {
		return s, nil
	}
	processes, err := s.EventProcesses.Begin(pid, processLedger.Received)
	if err != nil {
		return s, err
	}

	outcome := processLedger.Complete
	switch e := ev.(type) {
	case events.BallotDeployed:
		s.Ballots = common.InsertAddress(s.Ballots, e.Ballot)
	case events.MembersAdded:
		for _, m := range e.Members {
			s = s.index(m, org)
		}
	case events.MembersRemoved:
		for _, m := range e.Members {
			s = s.unindex(m, org)
		}
	case events.BallotDeployFailed:
	default:
		outcome = processLedger.Ignored
	}

	processes, _, err = processes.Advance(pid, outcome)
	if err != nil {
		return s, err
	}
	s.EventProcesses = processes
	s.EventNonce++
	return s, nil
}

func (s State) index(user, org common.Address) State {
	memberships := maps.Clone(s.UserOrgMemberships)
	if memberships == nil {
		memberships = map[string][]common.Address{}
	}
	memberships[user.String()] = common.InsertAddress(memberships[user.String()], org)
	s.UserOrgMemberships = memberships
	return s
}

func (s State) unindex(user, org common.Address) State {
	orgs, ok := s.UserOrgMemberships[user.String()]
	if !ok {
		return s
	}
	memberships := maps.Clone(s.UserOrgMemberships)
	remaining := common.RemoveAddress(orgs, org)
	if len(remaining) == 0 {
		delete(memberships, user.String())
	} else {
		memberships[user.String()] = remaining
	}
	s.UserOrgMemberships = memberships
	return s
}

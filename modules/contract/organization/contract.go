package organization

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/thebeyondr/sekiva/lib/rpc"
	"github.com/thebeyondr/sekiva/modules/common"
	"github.com/thebeyondr/sekiva/modules/contract/ballot"
	"github.com/thebeyondr/sekiva/modules/contract/events"
	processLedger "github.com/thebeyondr/sekiva/modules/process-ledger"
)

const (
	ADD_ADMINISTRATOR           common.Shortname = 0x00
	REMOVE_ADMINISTRATOR        common.Shortname = 0x01
	ADD_MEMBER                  common.Shortname = 0x02
	REMOVE_MEMBER               common.Shortname = 0x03
	ADD_BALLOT                  common.Shortname = 0x04
	ADD_MEMBERS                 common.Shortname = 0x05
	REMOVE_MEMBERS              common.Shortname = 0x06
	DEPLOY_BALLOT               common.Shortname = 0x07
	SYNC_BALLOT_VOTERS          common.Shortname = 0x0A
	DEPLOY_BALLOT_CALLBACK      common.Shortname = 0x20
	HANDLE_BALLOT_DEPLOYED      common.Shortname = 0x40
	HANDLE_BALLOT_EVENT                          = events.ORGANIZATION_HANDLE_BALLOT_EVENT
	HANDLE_BALLOT_DEPLOY_FAILED common.Shortname = 0x43
)

const DEPLOY_FAILED_REASON = "Deployment callback failed"

func Initialize(ctx common.ContractContext, args InitArgs) (State, error) {
	if err := common.Validate(args); err != nil {
		return State{}, err
	}
	if args.Administrator == ctx.Sender {
		return State{}, fmt.Errorf("%w: Administrator cannot be the factory.", common.ErrInvalidArgument)
	}
	founders := []common.Address{args.Administrator}
	return State{
		Owner:           args.Administrator,
		Administrators:  founders,
		Members:         slices.Clone(founders),
		Ballots:         []common.Address{},
		Name:            args.Name,
		Description:     args.Description,
		ProfileImage:    args.ProfileImage,
		BannerImage:     args.BannerImage,
		XUrl:            args.XUrl,
		DiscordUrl:      args.DiscordUrl,
		WebsiteUrl:      args.WebsiteUrl,
		Factory:         args.Factory,
		BallotCode:      args.BallotCode,
		BallotAbi:       args.BallotAbi,
		BallotProcesses: processLedger.Ledger[processLedger.BallotProcessState]{},
		BallotOrigins:   map[string]string{},
	}, nil
}

func (s State) requireOwner(ctx common.ContractContext, msg string) error {
	if ctx.Sender != s.Owner {
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	}
	return nil
}

func (s State) requireAdmin(ctx common.ContractContext, msg string) error {
	if !s.IsAdministrator(ctx.Sender) {
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	}
	return nil
}

func AddAdministrator(ctx common.ContractContext, s State, a common.Address) (State, error) {
	if err := s.requireOwner(ctx, "Only the owner can add an administrator."); err != nil {
		return s, err
	}
	if s.IsAdministrator(a) {
		return s, fmt.Errorf("%w: Already an administrator.", ErrMembership)
	}
	if !s.IsMember(a) {
		return s, fmt.Errorf("%w: Please add the address as a member first.", ErrMembership)
	}
	s.Administrators = common.InsertAddress(s.Administrators, a)
	return s, nil
}

func RemoveAdministrator(ctx common.ContractContext, s State, a common.Address) (State, error) {
	if err := s.requireOwner(ctx, "Only the owner can remove an administrator."); err != nil {
		return s, err
	}
	if a == s.Owner {
		return s, fmt.Errorf("%w: Cannot remove the owner.", ErrMembership)
	}
	if !s.IsAdministrator(a) {
		return s, fmt.Errorf("%w: Could not remove non-administrator.", ErrMembership)
	}
	s.Administrators = common.RemoveAddress(s.Administrators, a)
	return s, nil
}

// One group carrying the delta to the factory and every ballot
func (s State) fanOut(ev events.OrganizationEvent) []common.EventGroup {
	b := common.NewEventGroupBuilder().
		Call(s.Factory, events.FACTORY_HANDLE_ORGANIZATION_EVENT).Argument(ev).Done()
	for _, addr := range s.Ballots {
		b.Call(addr, events.BALLOT_HANDLE_ORG_EVENT).Argument(ev).Done()
	}
	return []common.EventGroup{b.Build()}
}

func (s State) membersAdded(ctx common.ContractContext, added []common.Address) (State, []common.EventGroup) {
	s.Members = common.MergeAddresses(s.Members, added)
	s.EventNonce++
	return s, s.fanOut(events.MembersAdded{
		Members:      added,
		Organization: ctx.ContractAddress,
		Timestamp:    ctx.BlockTime,
		ProcessId:    processLedger.NewProcessId(ctx),
		Nonce:        s.EventNonce,
	})
}

func (s State) membersRemoved(ctx common.ContractContext, removed []common.Address) (State, []common.EventGroup) {
	s.Members = common.FilterAddresses(s.Members, removed)
	s.Administrators = common.FilterAddresses(s.Administrators, removed)
	s.EventNonce++
	return s, s.fanOut(events.MembersRemoved{
		Members:      removed,
		Organization: ctx.ContractAddress,
		Timestamp:    ctx.BlockTime,
		ProcessId:    processLedger.NewProcessId(ctx),
		Nonce:        s.EventNonce,
	})
}

func AddMember(ctx common.ContractContext, s State, a common.Address) (State, []common.EventGroup, error) {
	if err := s.requireAdmin(ctx, "Only admins can add a member."); err != nil {
		return s, nil, err
	}
	if s.IsMember(a) {
		return s, nil, fmt.Errorf("%w: Already a member.", ErrMembership)
	}
	s, evs := s.membersAdded(ctx, []common.Address{a})
	return s, evs, nil
}

// Adds whichever of addrs are not members yet. Nothing is emitted when all are.
func AddMembers(ctx common.ContractContext, s State, addrs []common.Address) (State, []common.EventGroup, error) {
	if err := s.requireAdmin(ctx, "Only admins can add members."); err != nil {
		return s, nil, err
	}
	fresh := common.FilterAddresses(common.AddressSet(addrs...), s.Members)
	if len(fresh) == 0 {
		return s, nil, nil
	}
	s, evs := s.membersAdded(ctx, fresh)
	return s, evs, nil
}

// Removing an administrator through here also takes away the role, so only
// the owner may do it.
func RemoveMember(ctx common.ContractContext, s State, a common.Address) (State, []common.EventGroup, error) {
	if err := s.requireAdmin(ctx, "Only admins can remove a member."); err != nil {
		return s, nil, err
	}
	if !s.IsMember(a) {
		return s, nil, fmt.Errorf("%w: Could not remove non-member.", ErrMembership)
	}
	if a == s.Owner {
		return s, nil, fmt.Errorf("%w: Cannot remove the owner.", ErrMembership)
	}
	if s.IsAdministrator(a) {
		if err := s.requireOwner(ctx, "Only the owner can remove an administrator."); err != nil {
			return s, nil, err
		}
	}
	s, evs := s.membersRemoved(ctx, []common.Address{a})
	return s, evs, nil
}

func RemoveMembers(ctx common.ContractContext, s State, addrs []common.Address) (State, []common.EventGroup, error) {
	if err := s.requireAdmin(ctx, "Only admins can remove members."); err != nil {
		return s, nil, err
	}
	set := common.AddressSet(addrs...)
	if len(set) == 0 {
		return s, nil, nil
	}
	var errs []error
	for _, a := range set {
		switch {
		case !s.IsMember(a):
			errs = append(errs, fmt.Errorf("%w: %s is not a member", ErrMembership, a))
		case a == s.Owner:
			errs = append(errs, fmt.Errorf("%w: Cannot remove owner address", ErrMembership))
		case s.IsAdministrator(a):
			errs = append(errs, fmt.Errorf("%w: %s is an administrator and cannot be removed like this", ErrMembership, a))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return s, nil, err
	}
	s, evs := s.membersRemoved(ctx, set)
	return s, evs, nil
}

// Tracks a ballot deployed outside of deploy_ballot
func AddBallot(ctx common.ContractContext, s State, a common.Address) (State, error) {
	if err := s.requireAdmin(ctx, "Only admins can add a ballot."); err != nil {
		return s, err
	}
	if common.ContainsAddress(s.Ballots, a) {
		return s, fmt.Errorf("%w: Already a ballot.", common.ErrInvalidArgument)
	}
	s.Ballots = common.InsertAddress(s.Ballots, a)
	return s, nil
}

// Starts a ballot deployment. The ballot gets the current members as its
// eligible voters and lands at the address predicted from this transaction.
func DeployBallot(ctx common.ContractContext, s State, req BallotInit) (State, []common.EventGroup, error) {
	if err := s.requireAdmin(ctx, "Only admins can deploy a ballot."); err != nil {
		return s, nil, err
	}
	if !s.IsAdministrator(req.Administrator) {
		return s, nil, fmt.Errorf("%w: Administrator must be one of the organization administrators.", ErrMembership)
	}
	args := ballot.InitArgs{
		Options:        req.Options,
		Title:          req.Title,
		Description:    req.Description,
		Organization:   ctx.ContractAddress,
		Administrator:  req.Administrator,
		EligibleVoters: slices.Clone(s.Members),
	}
	if err := common.Validate(args); err != nil {
		return s, nil, err
	}

	pid := processLedger.NewProcessId(ctx)
	processes, err := s.BallotProcesses.Begin(pid, processLedger.BallotCreated)
	if err != nil {
		return s, nil, err
	}
	s.BallotProcesses = processes
	s.EventNonce++

	predicted := common.PredictedAddress(ctx, common.ZkContractAddress)
	group := common.NewEventGroupBuilder().
		Deploy(true, common.DeployRequest{
			Code:                 s.BallotCode,
			Abi:                  s.BallotAbi,
			InitData:             args.Encode(),
			BinderId:             common.ZK_BINDER_ID,
			RequiredStakes:       common.ZK_REQUIRED_STAKES,
			AllowedJurisdictions: [][]uint32{},
		}).
		WithCallback(DEPLOY_BALLOT_CALLBACK).
		WithCost(common.CALLBACK_COST).
		Argument(predicted).
		Argument(rpc.String(req.Title)).
		Argument(rpc.String(pid)).
		Done().
		Build()
	return s, []common.EventGroup{group}, nil
}

// Settles a deployment. Only a process still in Created is acted on, so a
// repeated delivery changes nothing.
func DeployBallotCallback(ctx common.ContractContext, cb common.CallbackContext, s State, addr common.Address, title, pid string) (State, []common.EventGroup, error) {
	current, ok := s.BallotProcesses.Get(pid)
	if !ok {
		return s, nil, fmt.Errorf("%w: %s", ErrUnknownProcess, pid)
	}
	if current != processLedger.BallotCreated {
		return s, nil, nil
	}

	if !cb.Success {
		processes, _, err := s.BallotProcesses.Advance(pid, processLedger.BallotCancelled)
		if err != nil {
			return s, nil, err
		}
		s.BallotProcesses = processes
		s.EventNonce++
		failed := events.BallotDeployFailed{
			Organization: ctx.ContractAddress,
			Reason:       DEPLOY_FAILED_REASON,
			Timestamp:    ctx.BlockTime,
			ProcessId:    pid,
		}
		return s, s.notify(ctx, HANDLE_BALLOT_DEPLOY_FAILED, failed), nil
	}

	processes, _, err := s.BallotProcesses.Advance(pid, processLedger.BallotDeployed)
	if err != nil {
		return s, nil, err
	}
	s.BallotProcesses = processes
	s.Ballots = common.InsertAddress(s.Ballots, addr)
	origins := maps.Clone(s.BallotOrigins)
	if origins == nil {
		origins = map[string]string{}
	}
	origins[addr.String()] = pid
	s.BallotOrigins = origins
	s.EventNonce++
	deployed := events.BallotDeployed{
		Organization: ctx.ContractAddress,
		Ballot:       addr,
		Title:        title,
		Timestamp:    ctx.BlockTime,
		ProcessId:    pid,
	}
	return s, s.notify(ctx, HANDLE_BALLOT_DEPLOYED, deployed), nil
}

// The event to this organization first, then to the factory
func (s State) notify(ctx common.ContractContext, selfSn common.Shortname, ev events.OrganizationEvent) []common.EventGroup {
	return []common.EventGroup{
		common.NewEventGroupBuilder().Call(ctx.ContractAddress, selfSn).Argument(ev).Done().Build(),
		common.NewEventGroupBuilder().Call(s.Factory, events.FACTORY_HANDLE_ORGANIZATION_EVENT).Argument(ev).Done().Build(),
	}
}

// Moves a deployment entry forward. Stale or unknown moves are dropped:
// status reports of a ballot may arrive in any order.
func (s State) advanceBallot(pid string, to processLedger.BallotProcessState) State {
	processes, changed, err := s.BallotProcesses.Advance(pid, to)
	if err != nil || !changed {
		return s
	}
	s.BallotProcesses = processes
	return s
}

func HandleBallotDeployed(ctx common.ContractContext, s State, ev events.OrganizationEvent) (State, error) {
	if !ctx.SentBySelf() {
		return s, fmt.Errorf("%w: only the organization itself reports deployments", ErrUnauthorized)
	}
	deployed, ok := ev.(events.BallotDeployed)
	if !ok {
		return s, fmt.Errorf("%w: unexpected event %T", common.ErrInvalidArgument, ev)
	}
	s.Ballots = common.InsertAddress(s.Ballots, deployed.Ballot)
	return s.advanceBallot(deployed.ProcessId, processLedger.BallotActive), nil
}

func HandleBallotDeployFailed(ctx common.ContractContext, s State, ev events.OrganizationEvent) (State, error) {
	if !ctx.SentBySelf() {
		return s, fmt.Errorf("%w: only the organization itself reports deployments", ErrUnauthorized)
	}
	failed, ok := ev.(events.BallotDeployFailed)
	if !ok {
		return s, fmt.Errorf("%w: unexpected event %T", common.ErrInvalidArgument, ev)
	}
	if state, ok := s.BallotProcesses.Get(failed.ProcessId); !ok || state != processLedger.BallotCancelled {
		return s, fmt.Errorf("%w: %s was not cancelled", ErrUnknownProcess, failed.ProcessId)
	}
	return s, nil
}

var ballotProgress = map[ballot.Status]processLedger.BallotProcessState{
	ballot.Active:    processLedger.BallotActive,
	ballot.Tallying:  processLedger.BallotTallying,
	ballot.Completed: processLedger.BallotCompleted,
	ballot.Cancelled: processLedger.BallotCancelled,
}

func HandleBallotEvent(ctx common.ContractContext, s State, ev ballot.BallotEvent) (State, error) {
	if !common.ContainsAddress(s.Ballots, ctx.Sender) {
		return s, fmt.Errorf("%w: %s", ErrUnknownBallot, ctx.Sender)
	}
	changed, ok := ev.(ballot.StatusChanged)
	if !ok {
		return s, nil
	}
	pid, ok := s.BallotOrigins[ctx.Sender.String()]
	to, known := ballotProgress[changed.Status]
	if !ok || !known {
		return s, nil
	}
	return s.advanceBallot(pid, to), nil
}

// Pushes the full member list to a ballot that may have missed events
func SyncBallotVoters(ctx common.ContractContext, s State, target common.Address) (State, []common.EventGroup, error) {
	if err := s.requireAdmin(ctx, "Only admins can sync ballot voters."); err != nil {
		return s, nil, err
	}
	if !common.ContainsAddress(s.Ballots, target) {
		return s, nil, fmt.Errorf("%w: %s", ErrUnknownBallot, target)
	}
	group := common.NewEventGroupBuilder().
		Call(target, events.BALLOT_SYNC_ELIGIBLE_VOTERS).
		Argument(addressList(s.Members)).
		Done().
		Build()
	return s, []common.EventGroup{group}, nil
}

type addressList []common.Address

func (l addressList) WriteRPC(w *rpc.Writer) {
	common.WriteAddresses(w, l)
}

package ballot

import (
	"fmt"
	"maps"

	"github.com/thebeyondr/sekiva/lib/rpc"
	"github.com/thebeyondr/sekiva/modules/common"
	"github.com/thebeyondr/sekiva/modules/contract/events"
	processLedger "github.com/thebeyondr/sekiva/modules/process-ledger"
	"github.com/thebeyondr/sekiva/modules/zk"

	"github.com/moznion/go-optional"
)

const (
	SET_VOTE_ACTIVE      common.Shortname = 0x09
	CANCEL_BALLOT        common.Shortname = 0x11
	COMPUTE_TALLY        common.Shortname = 0x01
	HANDLE_ORG_EVENT                      = events.BALLOT_HANDLE_ORG_EVENT
	SYNC_ELIGIBLE_VOTERS                  = events.BALLOT_SYNC_ELIGIBLE_VOTERS
	STATUS_CHANGED_SINK  common.Shortname = 0x50

	CAST_VOTE           common.Shortname = 0x60
	VOTE_INPUTTED       common.Shortname = 0x61
	ON_COMPUTE_COMPLETE common.Shortname = 0x62

	// Program id of the tally computation
	TALLY_PROGRAM common.Shortname = 0x61
)

// Kind byte in the metadata of every secret variable
const (
	SecretVote        byte = 0
	SecretTallyResult byte = 1
)

func Initialize(ctx common.ContractContext, args InitArgs) (State, error) {
	if err := common.Validate(args); err != nil {
		return State{}, err
	}
	if args.Administrator == args.Organization {
		return State{}, fmt.Errorf("%w: Administrator cannot be the organization.", common.ErrInvalidArgument)
	}
	return State{
		Administrator:  args.Administrator,
		Organization:   args.Organization,
		Title:          args.Title,
		Description:    args.Description,
		Options:        args.Options,
		Status:         Created,
		EligibleVoters: common.AddressSet(args.EligibleVoters...),
		AlreadyVoted:   []common.Address{},
		EventProcesses: processLedger.Ledger[processLedger.ProcessState]{},
		MemberNonces:   map[string]uint64{},
	}, nil
}

func (s State) requireAdmin(ctx common.ContractContext, action string) error {
	if ctx.Sender != s.Administrator {
		return fmt.Errorf("%w: only the administrator can %s", ErrUnauthorized, action)
	}
	return nil
}

// StatusChanged to the ballot itself and to its organization
func (s State) statusEvents(ctx common.ContractContext) []common.EventGroup {
	ev := StatusChanged{
		Status:    s.Status,
		Timestamp: ctx.BlockTime,
		ProcessId: processLedger.NewProcessId(ctx),
	}
	return []common.EventGroup{
		common.NewEventGroupBuilder().
			Call(ctx.ContractAddress, STATUS_CHANGED_SINK).Argument(ev).Done().
			Call(s.Organization, events.ORGANIZATION_HANDLE_BALLOT_EVENT).Argument(ev).Done().
			Build(),
	}
}

func (s State) notifySelf(ctx common.ContractContext, ev BallotEvent) []common.EventGroup {
	return []common.EventGroup{
		common.NewEventGroupBuilder().Call(ctx.ContractAddress, STATUS_CHANGED_SINK).Argument(ev).Done().Build(),
	}
}

// Opens voting for duration seconds (a week when absent)
func SetVoteActive(ctx common.ContractContext, s State, duration optional.Option[uint64]) (State, []common.EventGroup, error) {
	if err := s.requireAdmin(ctx, "set the vote active"); err != nil {
		return s, nil, err
	}
	if s.Status != Created {
		return s, nil, fmt.Errorf("%w: ballot is %s, must be Created", ErrInvalidStatus, s.Status)
	}
	d := duration.TakeOr(common.DEFAULT_VOTING_DURATION)
	if d == 0 {
		return s, nil, fmt.Errorf("%w: voting duration must be positive", common.ErrInvalidArgument)
	}
	if d > common.MAX_VOTING_DURATION {
		return s, nil, fmt.Errorf("%w: Voting duration cannot exceed 30 days", common.ErrInvalidArgument)
	}
	status, err := s.Status.transition(Active)
	if err != nil {
		return s, nil, err
	}
	s.Status = status
	s.StartTime = ctx.BlockTime
	s.EndTime = ctx.BlockTime + int64(d)
	return s, s.statusEvents(ctx), nil
}

func CancelBallot(ctx common.ContractContext, s State) (State, []common.EventGroup, error) {
	if err := s.requireAdmin(ctx, "cancel the ballot"); err != nil {
		return s, nil, err
	}
	status, err := s.Status.transition(Cancelled)
	if err != nil {
		return s, nil, err
	}
	s.Status = status
	return s, s.statusEvents(ctx), nil
}

func ComputeTally(ctx common.ContractContext, zkState zk.State, s State) (State, []common.EventGroup, []zk.StateChange, error) {
	if err := s.requireAdmin(ctx, "start the tally"); err != nil {
		return s, nil, nil, err
	}
	if zkState.CalculationState != zk.Waiting {
		return s, nil, nil, fmt.Errorf("%w: computation must start from Waiting, but was %s", ErrTallyInProgress, zkState.CalculationState)
	}
	if s.Status != Active {
		return s, nil, nil, fmt.Errorf("%w: ballot is %s, must be Active", ErrInvalidStatus, s.Status)
	}
	status, err := s.Status.transition(Tallying)
	if err != nil {
		return s, nil, nil, err
	}
	s.Status = status

	started := TallyStarted{Timestamp: ctx.BlockTime, ProcessId: processLedger.NewProcessId(ctx)}
	evs := append(s.notifySelf(ctx, started), s.statusEvents(ctx)...)
	return s, evs, []zk.StateChange{zk.StartComputation{
		Program:        TALLY_PROGRAM,
		OutputMetadata: [][]byte{{SecretTallyResult}},
		OnComplete:     ON_COMPUTE_COMPLETE,
	}}, nil
}

// Applies a membership delta of the owning organization. Each address keeps
// the nonce of the last event applied to it, so a delta that was overtaken by
// a newer one for the same address changes nothing.
func HandleOrgEvent(ctx common.ContractContext, s State, ev events.OrganizationEvent) (State, []common.EventGroup, error) {
	if ctx.Sender != s.Organization {
		return s, nil, fmt.Errorf("%w: only the parent organization can emit events", ErrUnauthorized)
	}
	pid := ev.GetProcessId()
	if s.EventProcesses.Has(pid) {
		return s, nil, nil
	}
	processes, err := s.EventProcesses.Begin(pid, processLedger.Received)
	if err != nil {
		return s, nil, err
	}

	outcome := processLedger.Ignored
	var update *MembersUpdated
	if s.Status == Created || s.Status == Active {
		switch ev := ev.(type) {
		case events.MembersAdded:
			applied := s.admitNonce(ev.Members, ev.Nonce)
			s.EligibleVoters = common.MergeAddresses(s.EligibleVoters, applied)
			update = &MembersUpdated{Added: applied, Removed: []common.Address{}}
			outcome = processLedger.Complete
		case events.MembersRemoved:
			applied := s.admitNonce(ev.Members, ev.Nonce)
			s.EligibleVoters = common.FilterAddresses(s.EligibleVoters, applied)
			update = &MembersUpdated{Added: []common.Address{}, Removed: applied}
			outcome = processLedger.Complete
		}
	}

	processes, _, err = processes.Advance(pid, outcome)
	if err != nil {
		return s, nil, err
	}
	s.EventProcesses = processes
	if update == nil {
		return s, nil, nil
	}
	update.Timestamp = ctx.BlockTime
	update.ProcessId = pid
	return s, s.notifySelf(ctx, *update), nil
}

// Addresses whose recorded nonce is older than nonce; their watermark moves up.
func (s *State) admitNonce(members []common.Address, nonce uint64) []common.Address {
	nonces := maps.Clone(s.MemberNonces)
	if nonces == nil {
		nonces = map[string]uint64{}
	}
	applied := []common.Address{}
	for _, m := range common.AddressSet(members...) {
		if last, ok := nonces[m.String()]; ok && last >= nonce {
			continue
		}
		nonces[m.String()] = nonce
		applied = append(applied, m)
	}
	s.MemberNonces = nonces
	return applied
}

// Replaces the eligible set outright, for when membership events were lost.
func SyncEligibleVoters(ctx common.ContractContext, s State, voters []common.Address) (State, []common.EventGroup, error) {
	if ctx.Sender != s.Administrator && ctx.Sender != s.Organization {
		return s, nil, fmt.Errorf("%w: only the administrator or the organization can sync voters", ErrUnauthorized)
	}
	if s.Status != Active {
		return s, nil, fmt.Errorf("%w: ballot is %s, must be Active", ErrInvalidStatus, s.Status)
	}
	next := common.AddressSet(voters...)
	update := MembersUpdated{
		Added:     common.FilterAddresses(next, s.EligibleVoters),
		Removed:   common.FilterAddresses(s.EligibleVoters, next),
		Timestamp: ctx.BlockTime,
		ProcessId: processLedger.NewProcessId(ctx),
	}
	s.EligibleVoters = next
	return s, s.notifySelf(ctx, update), nil
}

// Sink for the ballot's own notifications. Other callers are refused.
func StatusChangedSink(ctx common.ContractContext, s State, _ BallotEvent) (State, error) {
	if !ctx.SentBySelf() {
		return s, fmt.Errorf("%w: notifications are only accepted from the ballot itself", ErrUnauthorized)
	}
	return s, nil
}

// Phase one of a vote: checks the voter and declares the secret slot.
func CastVote(ctx common.ContractContext, s State) (State, zk.InputDef, error) {
	if s.Status != Active {
		return s, zk.InputDef{}, fmt.Errorf("%w: Ballot is not active", ErrInvalidStatus)
	}
	if ctx.BlockTime < s.StartTime || ctx.BlockTime > s.EndTime {
		return s, zk.InputDef{}, fmt.Errorf("%w: voting runs from %d to %d", ErrVotingClosed, s.StartTime, s.EndTime)
	}
	if !common.ContainsAddress(s.EligibleVoters, ctx.Sender) {
		return s, zk.InputDef{}, fmt.Errorf("%w: %s", ErrNotEligible, ctx.Sender)
	}
	if common.ContainsAddress(s.AlreadyVoted, ctx.Sender) {
		return s, zk.InputDef{}, fmt.Errorf("%w: %s", ErrAlreadyVoted, ctx.Sender)
	}
	s.AlreadyVoted = common.InsertAddress(s.AlreadyVoted, ctx.Sender)
	return s, zk.InputDef{
		Metadata:   []byte{SecretVote},
		BitLength:  8,
		Min:        0,
		Max:        int64(len(s.Options) - 1),
		OnInputted: optional.Some(VOTE_INPUTTED),
	}, nil
}

// Phase two: the engine bound the value. Only the status is checked again.
func VoteInputted(ctx common.ContractContext, zkState zk.State, s State, id zk.SecretVarId) (State, []common.EventGroup, error) {
	if s.Status != Active {
		return s, nil, fmt.Errorf("%w: Ballot is not active", ErrInvalidStatus)
	}
	v, ok := zkState.Variable(id)
	if !ok {
		return s, nil, fmt.Errorf("%w: %d", zk.ErrUnknownVariable, id)
	}
	cast := VoteCast{Voter: v.Owner, Timestamp: ctx.BlockTime, ProcessId: processLedger.NewProcessId(ctx)}
	return s, s.notifySelf(ctx, cast), nil
}

func OnComputeComplete(s State, outputs []zk.SecretVarId) (State, []zk.StateChange) {
	if s.Status != Tallying {
		// cancelled while computing; the result is never opened
		return s, []zk.StateChange{zk.ContractDone{}}
	}
	return s, []zk.StateChange{zk.OpenVariables{Ids: outputs}}
}

func OnVariablesOpened(ctx common.ContractContext, zkState zk.State, s State, opened []zk.SecretVarId) (State, []common.EventGroup, []zk.StateChange, error) {
	if len(opened) != 1 {
		return s, nil, nil, fmt.Errorf("%w: unexpected number of opened variables: %d", ErrProtocolViolation, len(opened))
	}
	v, ok := zkState.Variable(opened[0])
	if !ok || !v.Opened {
		return s, nil, nil, fmt.Errorf("%w: variable %d is not open", ErrProtocolViolation, opened[0])
	}
	if len(v.Metadata) != 1 || v.Metadata[0] != SecretTallyResult || s.Status != Tallying {
		return s, nil, nil, nil
	}
	tally, err := DecodeTally(v.Data)
	if err != nil {
		return s, nil, nil, err
	}
	status, err := s.Status.transition(Completed)
	if err != nil {
		return s, nil, nil, err
	}
	s.Status = status
	s.Tally = optional.Some(tally)
	s.EligibleVoters = []common.Address{}
	s.AlreadyVoted = []common.Address{}
	s.MemberNonces = map[string]uint64{}

	completed := TallyCompleted{Timestamp: ctx.BlockTime, ProcessId: processLedger.NewProcessId(ctx)}
	evs := append(s.notifySelf(ctx, completed), s.statusEvents(ctx)...)
	return s, evs, []zk.StateChange{zk.ContractDone{}}, nil
}

func readDuration(r *rpc.Reader) optional.Option[uint64] {
	return optional.FromNillable(rpc.ReadOption(r, (*rpc.Reader).ReadU64))
}

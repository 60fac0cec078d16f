package factory_test

import (
	"testing"

	"github.com/thebeyondr/sekiva/lib/rpc"
	"github.com/thebeyondr/sekiva/modules/common"
	"github.com/thebeyondr/sekiva/modules/contract/events"
	"github.com/thebeyondr/sekiva/modules/contract/factory"
	"github.com/thebeyondr/sekiva/modules/contract/invocation"
	"github.com/thebeyondr/sekiva/modules/contract/organization"
	processLedger "github.com/thebeyondr/sekiva/modules/process-ledger"
	"github.com/thebeyondr/sekiva/modules/zk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	self     = common.Address{Type: common.PublicContractAddress, Identifier: [20]byte{0xfa}}
	deployer = common.Address{Identifier: [20]byte{0xd}}
	alice    = common.Address{Identifier: [20]byte{0xa}}
	bob      = common.Address{Identifier: [20]byte{0xb}}
	stranger = common.Address{Type: common.PublicContractAddress, Identifier: [20]byte{0xee}}
)

func at(sender common.Address, t int64) common.ContractContext {
	tx := common.Hash{}
	for i := range tx {
		tx[i] = byte(t) * byte(i+1)
	}
	return common.ContractContext{
		ContractAddress:     self,
		Sender:              sender,
		BlockTime:           t,
		OriginalTransaction: tx,
		CurrentTransaction:  tx,
	}
}

func code() factory.ContractCode {
	return factory.ContractCode{
		OrganizationCode: []byte("org-wasm"),
		OrganizationAbi:  []byte("org-abi"),
		BallotCode:       []byte("ballot-zkwa"),
		BallotAbi:        []byte("ballot-abi"),
	}
}

func orgInit() factory.OrganizationInit {
	return factory.OrganizationInit{
		Name:          "Lunch club",
		Description:   "We vote on lunch",
		DiscordUrl:    "https://discord.example.org",
		Administrator: alice,
	}
}

func newFactory(t *testing.T) factory.State {
	s, err := factory.Initialize(at(deployer, 1), code())
	require.NoError(t, err)
	return s
}

func TestInitialize(t *testing.T) {
	s := newFactory(t)
	assert.Equal(t, deployer, s.Admin)
	assert.Empty(t, s.Organizations)
	assert.Equal(t, code(), s.Code)

	c := code()
	c.BallotAbi = []byte{}
	_, err := factory.Initialize(at(deployer, 1), c)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	got, err := factory.DecodeInitArgs(code().Encode())
	require.NoError(t, err)
	assert.Equal(t, code(), got)
}

func deployOrg(t *testing.T, s factory.State, ctx common.ContractContext) (factory.State, common.Address, string) {
	s, evs, err := factory.DeployOrganization(ctx, s, orgInit())
	require.NoError(t, err)
	require.Len(t, evs, 1)

	group := evs[0]
	require.Len(t, group.Interactions, 1)
	assert.Equal(t, common.DeployPublicContractAddress, group.Interactions[0].Contract)
	req, err := common.ReadDeployRequest(group.Interactions[0].Contract, group.Interactions[0].Payload)
	require.NoError(t, err)
	assert.EqualValues(t, common.PUBLIC_BINDER_ID, req.BinderId)
	assert.Equal(t, s.Code.OrganizationCode, req.Code)

	args, err := organization.DecodeInitArgs(req.InitData)
	require.NoError(t, err)
	assert.Equal(t, self, args.Factory)
	assert.Equal(t, alice, args.Administrator)
	assert.Equal(t, s.Code.BallotCode, args.BallotCode)
	assert.Equal(t, "https://discord.example.org", args.DiscordUrl)

	cb, err := group.Callback.Take()
	require.NoError(t, err)
	assert.Equal(t, factory.DEPLOY_ORGANIZATION_CALLBACK, cb.Shortname)
	r := rpc.NewReader(cb.Args)
	addr := common.ReadAddress(r)
	pid := r.ReadString()
	assert.Equal(t, alice, common.ReadAddress(r))
	require.NoError(t, r.Finish())

	assert.Equal(t, common.PredictedAddress(ctx, common.PublicContractAddress), addr)
	assert.Equal(t, processLedger.NewProcessId(ctx), pid)
	state, _ := s.OrganizationProcesses.Get(pid)
	assert.Equal(t, processLedger.OrganizationCreated, state)
	return s, addr, pid
}

func TestDeployOrganizationRules(t *testing.T) {
	s := newFactory(t)

	req := orgInit()
	req.Name = ""
	_, _, err := factory.DeployOrganization(at(alice, 2), s, req)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	req = orgInit()
	req.Administrator = self
	_, _, err = factory.DeployOrganization(at(alice, 2), s, req)
	assert.ErrorContains(t, err, "Administrator cannot be the factory.")

	s, _, _ = deployOrg(t, s, at(alice, 2))
	assert.EqualValues(t, 1, s.EventNonce)
	_, _, err = factory.DeployOrganization(at(alice, 2), s, orgInit())
	assert.ErrorIs(t, err, processLedger.ErrProcessExists)
}

func TestDeployCallback(t *testing.T) {
	s := newFactory(t)
	s, addr, pid := deployOrg(t, s, at(alice, 10))

	success := common.CallbackContext{Success: true, Results: []common.ExecutionResult{{Succeeded: true}}}
	once, evs, err := factory.DeployOrganizationCallback(at(self, 11), success, s, addr, pid, alice)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{addr}, once.Organizations)
	assert.Equal(t, []common.Address{addr}, once.OrganizationsOf(alice))
	state, _ := once.OrganizationProcesses.Get(pid)
	assert.Equal(t, processLedger.OrganizationDeployed, state)

	require.Len(t, evs, 1)
	sn, payload, err := evs[0].Interactions[0].Split()
	require.NoError(t, err)
	assert.Equal(t, self, evs[0].Interactions[0].Contract)
	assert.Equal(t, factory.HANDLE_ORGANIZATION_DEPLOYED_EVENT, sn)
	ev, err := events.DecodeOrganizationEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, events.OrganizationDeployed{Factory: self, Organization: addr, Timestamp: 11, ProcessId: pid}, ev)

	twice, evs, err := factory.DeployOrganizationCallback(at(self, 12), success, once, addr, pid, alice)
	require.NoError(t, err)
	assert.Empty(t, evs)
	assert.Equal(t, once, twice)

	_, err = factory.HandleOrganizationDeployed(at(stranger, 12), twice, ev)
	assert.ErrorIs(t, err, factory.ErrUnauthorized)
	active, err := factory.HandleOrganizationDeployed(at(self, 12), twice, ev)
	require.NoError(t, err)
	state, _ = active.OrganizationProcesses.Get(pid)
	assert.Equal(t, processLedger.OrganizationActive, state)

	_, _, err = factory.DeployOrganizationCallback(at(self, 13), success, s, addr, "0-unknown", alice)
	assert.ErrorIs(t, err, factory.ErrUnknownProcess)
}

func TestDeployCallbackFailure(t *testing.T) {
	s := newFactory(t)
	s, addr, pid := deployOrg(t, s, at(alice, 10))

	failed, evs, err := factory.DeployOrganizationCallback(at(self, 11), common.CallbackContext{Success: false}, s, addr, pid, alice)
	require.NoError(t, err)
	assert.Empty(t, failed.Organizations)
	assert.Empty(t, failed.OrganizationsOf(alice))
	state, _ := failed.OrganizationProcesses.Get(pid)
	assert.Equal(t, processLedger.OrganizationDeleted, state)

	require.Len(t, evs, 1)
	require.Len(t, evs[0].Interactions, 1)
	assert.Equal(t, self, evs[0].Interactions[0].Contract)
	sn, payload, err := evs[0].Interactions[0].Split()
	require.NoError(t, err)
	assert.Equal(t, factory.HANDLE_ORGANIZATION_DEPLOY_FAILED, sn)
	ev, err := events.DecodeOrganizationEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, events.OrganizationDeployFailed{
		Factory:       self,
		Administrator: alice,
		Reason:        factory.DEPLOY_FAILED_REASON,
		Timestamp:     11,
		ProcessId:     pid,
	}, ev)

	_, err = factory.HandleOrganizationDeployFailed(at(stranger, 12), failed, ev)
	assert.ErrorIs(t, err, factory.ErrUnauthorized)
	_, err = factory.HandleOrganizationDeployFailed(at(self, 12), s, ev)
	assert.ErrorIs(t, err, factory.ErrUnknownProcess)
	settled, err := factory.HandleOrganizationDeployFailed(at(self, 12), failed, ev)
	require.NoError(t, err)
	assert.Equal(t, failed, settled)

	late, _, err := factory.DeployOrganizationCallback(at(self, 12), common.CallbackContext{Success: true}, failed, addr, pid, alice)
	require.NoError(t, err)
	assert.Equal(t, failed, late)
}

func withOrg(t *testing.T) (factory.State, common.Address) {
	s := newFactory(t)
	s, addr, pid := deployOrg(t, s, at(alice, 10))
	s, _, err := factory.DeployOrganizationCallback(at(self, 11), common.CallbackContext{Success: true}, s, addr, pid, alice)
	require.NoError(t, err)
	return s, addr
}

func TestHandleOrganizationEvent(t *testing.T) {
	s, org := withOrg(t)
	nonce := s.EventNonce

	added := events.MembersAdded{Members: []common.Address{bob}, Organization: org, Timestamp: 20, ProcessId: "20-aa", Nonce: 1}
	_, err := factory.HandleOrganizationEvent(at(stranger, 20), s, added)
	assert.ErrorIs(t, err, factory.ErrUnauthorized)

	forged := added
	forged.Organization = stranger
	_, err = factory.HandleOrganizationEvent(at(stranger, 20), s, forged)
	assert.ErrorIs(t, err, factory.ErrUnknownOrganization)

	s, err = factory.HandleOrganizationEvent(at(org, 20), s, added)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{org}, s.OrganizationsOf(bob))
	assert.Equal(t, nonce+1, s.EventNonce)
	state, _ := s.EventProcesses.Get("20-aa")
	assert.Equal(t, processLedger.Complete, state)

	again, err := factory.HandleOrganizationEvent(at(org, 21), s, added)
	require.NoError(t, err)
	assert.Equal(t, s, again)

	ballotAddr := common.Address{Type: common.ZkContractAddress, Identifier: [20]byte{0xb0}}
	s, err = factory.HandleOrganizationEvent(at(org, 22), s, events.BallotDeployed{Organization: org, Ballot: ballotAddr, Title: "Friday", Timestamp: 22, ProcessId: "22-bb"})
	require.NoError(t, err)
	assert.Equal(t, []common.Address{ballotAddr}, s.Ballots)

	s, err = factory.HandleOrganizationEvent(at(org, 23), s, events.MembersRemoved{Members: []common.Address{bob}, Organization: org, Timestamp: 23, ProcessId: "23-cc", Nonce: 2})
	require.NoError(t, err)
	assert.Empty(t, s.OrganizationsOf(bob))
	assert.Equal(t, []common.Address{org}, s.OrganizationsOf(alice))

	s, err = factory.HandleOrganizationEvent(at(org, 24), s, events.OrganizationDeployed{Factory: self, Organization: org, Timestamp: 24, ProcessId: "24-dd"})
	require.NoError(t, err)
	state, _ = s.EventProcesses.Get("24-dd")
	assert.Equal(t, processLedger.Ignored, state)
}

func TestUpdateContractCode(t *testing.T) {
	s := newFactory(t)
	next := code()
	next.BallotCode = []byte("ballot-v2")

	_, err := factory.UpdateContractCode(at(alice, 2), s, next)
	assert.ErrorIs(t, err, factory.ErrUnauthorized)

	s, err = factory.UpdateContractCode(at(deployer, 2), s, next)
	require.NoError(t, err)
	assert.Equal(t, []byte("ballot-v2"), s.Code.BallotCode)
}

func TestDispatch(t *testing.T) {
	c := factory.Contract{}
	out, err := c.Invoke(at(deployer, 1), zk.State{}, nil, invocation.Invocation{Kind: invocation.Init, Rpc: code().Encode()})
	require.NoError(t, err)

	w := rpc.NewWriter()
	orgInit().WriteRPC(w)
	ctx := at(alice, 2)
	out, err = c.Invoke(ctx, zk.State{}, out.State, invocation.Invocation{Kind: invocation.Action, Shortname: factory.DEPLOY_ORGANIZATION, Rpc: w.Bytes()})
	require.NoError(t, err)
	require.Len(t, out.Events, 1)

	cb, err := out.Events[0].Callback.Take()
	require.NoError(t, err)
	out, err = c.Invoke(at(self, 3), zk.State{}, out.State, invocation.Invocation{
		Kind:      invocation.Callback,
		Shortname: cb.Shortname,
		Rpc:       cb.Args,
		Callback:  common.CallbackContext{Success: true},
	})
	require.NoError(t, err)
	s, err := factory.DecodeState(out.State)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{common.PredictedAddress(ctx, common.PublicContractAddress)}, s.Organizations)

	_, err = c.Invoke(at(alice, 4), zk.State{}, out.State, invocation.Invocation{Kind: invocation.Action, Shortname: 0x7f})
	assert.ErrorIs(t, err, invocation.ErrUnknownShortname)
}

package api_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/thebeyondr/sekiva/lib/rpc"
	"github.com/thebeyondr/sekiva/lib/test_utils"
	"github.com/thebeyondr/sekiva/modules/api"
	"github.com/thebeyondr/sekiva/modules/common"
	"github.com/thebeyondr/sekiva/modules/contract/ballot"
	"github.com/thebeyondr/sekiva/modules/contract/factory"
	"github.com/thebeyondr/sekiva/modules/contract/organization"
	contract_session "github.com/thebeyondr/sekiva/modules/contract/session"
	"github.com/thebeyondr/sekiva/modules/db/sekiva/event_log"
	stateEngine "github.com/thebeyondr/sekiva/modules/state-processing"
	"github.com/thebeyondr/sekiva/modules/zk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func account(b byte) common.Address {
	a := common.Address{Type: common.AccountAddress}
	a.Identifier[19] = b
	return a
}

var (
	deployer = account(0xd0)
	alice    = account(0xa1)
	bob      = account(0xb0)
)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	se     *stateEngine.StateEngine
	states *test_utils.MockContractStateDb
	events *test_utils.MockEventLogDb
	srv    *httptest.Server
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	engine, err := zk.New(zk.MemoryNodes(3), nil, nil)
	require.NoError(t, err)

	f := &fixture{
		t:      t,
		ctx:    context.Background(),
		states: &test_utils.MockContractStateDb{},
		events: &test_utils.MockEventLogDb{},
		now:    time.Unix(1_700_000_000, 0),
	}
	f.se = stateEngine.New(nil, engine, nil, f.states, f.events, &test_utils.MockNonceDb{}, nil)
	require.NoError(t, f.se.Init())
	f.block()

	s := api.New(api.NewApiConfig(t.TempDir()), f.se, f.states, f.events, nil)
	require.NoError(t, s.Init())
	f.srv = httptest.NewServer(s.Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) block() {
	f.now = f.now.Add(10 * time.Second)
	_, err := f.se.ProduceBlock(f.ctx, f.now)
	require.NoError(f.t, err)
}

func (f *fixture) deployFactory() common.Address {
	res := f.se.Deploy(f.ctx, deployer, false, common.DeployRequest{
		Code:     stateEngine.FACTORY_CODE,
		Abi:      stateEngine.FACTORY_ABI,
		InitData: stateEngine.NativeFactoryCode().Encode(),
		BinderId: common.PUBLIC_BINDER_ID,
	})
	require.True(f.t, res.Success, res.Ret)
	return res.Contract
}

func (f *fixture) get(path string, out any) int {
	res, err := http.Get(f.srv.URL + path)
	require.NoError(f.t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(f.t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func (f *fixture) post(path string, body any, out any) int {
	b, err := json.Marshal(body)
	require.NoError(f.t, err)
	res, err := http.Post(f.srv.URL+path, "application/json", bytes.NewReader(b))
	require.NoError(f.t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(f.t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func payloadHex(sn common.Shortname, args ...rpc.Writable) string {
	return hex.EncodeToString(stateEngine.CallPayload(sn, args...))
}

type contractBody struct {
	Address string          `json:"address"`
	Kind    string          `json:"kind"`
	CodeId  string          `json:"code_id"`
	State   json.RawMessage `json:"state"`
}

func TestReadContracts(t *testing.T) {
	f := newFixture(t)
	fa := f.deployFactory()

	var status struct {
		Height    uint64 `json:"height"`
		Contracts int    `json:"contracts"`
	}
	assert.Equal(t, http.StatusOK, f.get("/status", &status))
	assert.Equal(t, f.se.Height(), status.Height)
	assert.Equal(t, 1, status.Contracts)

	var listed []string
	assert.Equal(t, http.StatusOK, f.get("/contracts", &listed))
	assert.Equal(t, []string{fa.String()}, listed)

	var body contractBody
	require.Equal(t, http.StatusOK, f.get("/contracts/"+fa.String(), &body))
	assert.Equal(t, "factory", body.Kind)
	assert.NotEmpty(t, body.CodeId)

	var view factory.PublicView
	require.NoError(t, json.Unmarshal(body.State, &view))
	assert.Equal(t, deployer, view.Admin)
	assert.Empty(t, view.Organizations)

	var failure struct {
		Error string `json:"error"`
	}
	assert.Equal(t, http.StatusBadRequest, f.get("/contracts/zz", &failure))
	assert.NotEmpty(t, failure.Error)
	assert.Equal(t, http.StatusNotFound, f.get("/contracts/"+alice.String(), nil))
	assert.Equal(t, http.StatusNotFound, f.get("/ballots/"+fa.String(), &failure))
	assert.Contains(t, failure.Error, "not a ballot")
}

func TestSubmitTransactions(t *testing.T) {
	f := newFixture(t)
	fa := f.deployFactory()

	var res stateEngine.TxResult
	code := f.post("/transactions", map[string]any{
		"sender":   alice,
		"contract": fa,
		"payload": "0x" + payloadHex(factory.DEPLOY_ORGANIZATION, factory.OrganizationInit{
			Name:          "Sekiva DAO",
			Description:   "Decides things in private",
			Administrator: alice,
		}),
	}, &res)
	require.Equal(t, http.StatusOK, code, res.Ret)
	assert.True(t, res.Success)
	assert.Positive(t, res.Spawned)
	f.block()

	var nonce struct {
		Nonce uint64 `json:"nonce"`
	}
	require.Equal(t, http.StatusOK, f.get("/accounts/"+alice.String()+"/nonce", &nonce))
	assert.Equal(t, uint64(1), nonce.Nonce)

	var body contractBody
	require.Equal(t, http.StatusOK, f.get("/contracts/"+fa.String(), &body))
	var view factory.PublicView
	require.NoError(t, json.Unmarshal(body.State, &view))
	require.Len(t, view.Organizations, 1)

	org := view.Organizations[0]
	require.Equal(t, http.StatusOK, f.get("/contracts/"+org.String(), &body))
	assert.Equal(t, "organization", body.Kind)

	stale := uint64(0)
	code = f.post("/transactions", map[string]any{
		"sender":   alice,
		"nonce":    stale,
		"contract": org,
		"payload":  payloadHex(organization.ADD_MEMBER, bob),
	}, &res)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.False(t, res.Success)
	assert.Equal(t, stateEngine.SYMBOL_INVALID_NONCE, res.Symbol)
}

func TestRejectsMalformedRequests(t *testing.T) {
	f := newFixture(t)
	fa := f.deployFactory()

	tests := map[string]any{
		"missing sender":  map[string]any{"contract": fa, "payload": "01"},
		"bad payload hex": map[string]any{"sender": alice, "contract": fa, "payload": "xyz"},
		"unknown field":   map[string]any{"sender": alice, "contract": fa, "payload": "01", "fee": 1},
		"bad address":     map[string]any{"sender": "00", "contract": fa, "payload": "01"},
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, f.post("/transactions", body, nil))
		})
	}
	assert.Equal(t, uint64(0), f.se.NextNonce(alice))
}

func TestVoteOverHttp(t *testing.T) {
	f := newFixture(t)
	fa := f.deployFactory()

	res := f.se.Call(f.ctx, alice, fa, stateEngine.CallPayload(factory.DEPLOY_ORGANIZATION, factory.OrganizationInit{
		Name:          "Sekiva DAO",
		Description:   "Decides things in private",
		Administrator: alice,
	}))
	require.True(t, res.Success)
	f.block()
	org := f.se.Addresses()[0]
	if org == fa {
		org = f.se.Addresses()[1]
	}

	res = f.se.Call(f.ctx, alice, org, stateEngine.CallPayload(organization.ADD_MEMBER, bob))
	require.True(t, res.Success, res.Ret)
	res = f.se.Call(f.ctx, alice, org, stateEngine.CallPayload(organization.DEPLOY_BALLOT, organization.BallotInit{
		Options:       []string{"yes", "no"},
		Title:         "Budget",
		Description:   "Approve the budget",
		Administrator: alice,
	}))
	require.True(t, res.Success, res.Ret)
	f.block()

	var b common.Address
	for _, addr := range f.se.Addresses() {
		if addr.Type == common.ZkContractAddress {
			b = addr
		}
	}
	require.False(t, b.IsZero())

	res = f.se.Call(f.ctx, alice, b, stateEngine.CallPayload(ballot.SET_VOTE_ACTIVE, rpc.Bool(false)))
	require.True(t, res.Success, res.Ret)
	f.block()

	for voter, choice := range map[common.Address]int64{alice: 1, bob: 1} {
		var out stateEngine.TxResult
		code := f.post("/secret-inputs", map[string]any{
			"sender":    voter,
			"contract":  b,
			"shortname": uint32(ballot.CAST_VOTE),
			"value":     choice,
		}, &out)
		require.Equal(t, http.StatusOK, code, out.Ret)
	}
	f.block()

	res = f.se.Call(f.ctx, alice, b, stateEngine.CallPayload(ballot.COMPUTE_TALLY))
	require.True(t, res.Success, res.Ret)
	f.block()

	var view struct {
		Status string        `json:"status"`
		Tally  *ballot.Tally `json:"tally"`
	}
	require.Equal(t, http.StatusOK, f.get("/ballots/"+b.String(), &view))
	assert.Equal(t, "Completed", view.Status)
	require.NotNil(t, view.Tally)
	assert.Equal(t, ballot.Tally{Option1: 2, Total: 2}, *view.Tally)

	var history []struct {
		Height uint64 `json:"height"`
		Kind   string `json:"kind"`
	}
	require.Equal(t, http.StatusOK, f.get("/contracts/"+b.String()+"/history?limit=2", &history))
	require.Len(t, history, 2)
	assert.Equal(t, "ballot", history[0].Kind)
	assert.Greater(t, history[0].Height, history[1].Height)

	var logged []event_log.EventRecord
	require.Equal(t, http.StatusOK, f.get("/contracts/"+b.String()+"/events?limit=3", &logged))
	assert.Len(t, logged, 3)
	for _, r := range logged {
		assert.Equal(t, b, r.Contract)
	}
	assert.Equal(t, http.StatusBadRequest, f.get("/contracts/"+b.String()+"/events?limit=none", nil))
}

type mockNode struct {
	records map[common.Address]contract_session.ContractRecord
	inputs  []secretInput
}

type secretInput struct {
	sender, contract common.Address
	sn               common.Shortname
	args             []byte
	value            int64
}

func (m *mockNode) Contract(address common.Address) (contract_session.ContractRecord, bool) {
	r, ok := m.records[address]
	return r, ok
}

func (m *mockNode) Addresses() []common.Address { return nil }
func (m *mockNode) Height() uint64              { return 7 }
func (m *mockNode) BlockTime() int64            { return 1_700_000_000 }

func (m *mockNode) NextNonce(common.Address) uint64 { return 0 }

func (m *mockNode) Submit(context.Context, stateEngine.Transaction) stateEngine.TxResult {
	return stateEngine.TxResult{}
}

func (m *mockNode) SubmitSecretInput(ctx context.Context, sender, contract common.Address, sn common.Shortname, publicArgs []byte, value int64) stateEngine.TxResult {
	m.inputs = append(m.inputs, secretInput{sender, contract, sn, publicArgs, value})
	return stateEngine.TxResult{Success: true, Ret: "0", Contract: contract}
}

func mockServer(t *testing.T, node api.Node) *httptest.Server {
	s := api.New(api.NewApiConfig(t.TempDir()), node, nil, nil, nil)
	require.NoError(t, s.Init())
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestSecretInputForwardsArguments(t *testing.T) {
	node := &mockNode{}
	srv := mockServer(t, node)
	b := common.Address{Type: common.ZkContractAddress}
	b.Identifier[0] = 0x42

	body, err := json.Marshal(map[string]any{
		"sender":    alice,
		"contract":  b,
		"shortname": 0x60,
		"args":      "0x0102",
		"value":     1,
	})
	require.NoError(t, err)
	res, err := http.Post(srv.URL+"/secret-inputs", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	require.Len(t, node.inputs, 1)
	assert.Equal(t, secretInput{alice, b, 0x60, []byte{1, 2}, 1}, node.inputs[0])
}

func TestUndecodableStateIsServerError(t *testing.T) {
	addr := common.Address{Type: common.PublicContractAddress}
	srv := mockServer(t, &mockNode{records: map[common.Address]contract_session.ContractRecord{
		addr: {Address: addr, Kind: "unknown", State: []byte{0xff}},
	}})

	res, err := http.Get(srv.URL + "/contracts/" + addr.String())
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
}

func TestRepositoriesOptional(t *testing.T) {
	srv := mockServer(t, &mockNode{})
	for _, path := range []string{"/events", "/history"} {
		res, err := http.Get(srv.URL + "/contracts/" + alice.String() + path)
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	}
}

func TestCorsAndMetrics(t *testing.T) {
	srv := mockServer(t, &mockNode{})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/transactions", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://vote.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))

	res, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

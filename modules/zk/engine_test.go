package zk

import (
	"context"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/thebeyondr/sekiva/modules/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sumProgram common.Shortname = 0x01

var contract = common.Address{Type: common.ZkContractAddress, Identifier: [20]byte{1}}
var voter = common.Address{Type: common.AccountAddress, Identifier: [20]byte{2}}

// sums every confirmed input into one 32 bit word
var sum = ProgramFunc(func(env *ComputeEnv) ([]ProgramOutput, error) {
	acc := env.Constant(0, 32)
	for _, id := range env.VariableIds() {
		words, err := env.Load(id)
		if err != nil {
			return nil, err
		}
		acc = env.Add(acc, words[0])
	}
	return []ProgramOutput{{Words: []Secret{acc}}}, nil
})

func newEngine(t *testing.T) *Engine {
	e, err := New(MemoryNodes(3), nil, nil)
	require.NoError(t, err)
	e.Attach(contract, map[common.Shortname]Program{sumProgram: sum})
	return e
}

func inputDef() InputDef {
	return InputDef{Metadata: []byte{0}, BitLength: 8, Min: -10, Max: 10}
}

func TestSplitReconstruct(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 127, -128, 1 << 30} {
		s, err := split(v, 4, 32)
		require.NoError(t, err)
		assert.Equal(t, v, reconstruct(s))
	}
	a, _ := split(5, 3, 8)
	b, _ := split(-7, 3, 8)
	assert.Equal(t, int64(-2), reconstruct(add(a, b)))
	assert.Equal(t, int64(9), reconstruct(constant(9, 3, 8)))
}

func TestEncodeWord(t *testing.T) {
	assert.Equal(t, []byte{0xFF}, encodeWord(-1, 8))
	assert.Equal(t, []byte{3, 0, 0, 0}, encodeWord(3, 32))
}

func TestNeedsTwoNodes(t *testing.T) {
	_, err := New(MemoryNodes(1), nil, nil)
	assert.Error(t, err)
}

func TestSharesAreStoredPerNode(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	id, err := e.Input(ctx, contract, voter, inputDef(), 4)
	require.NoError(t, err)

	for _, node := range e.store.nodes {
		b, err := node.Get(ctx, shareKey(contract, id, 0))
		require.NoError(t, err)
		assert.Len(t, b, 32)
	}
	v, ok := e.State(contract).Variable(id)
	require.True(t, ok)
	assert.False(t, v.Confirmed)
	assert.False(t, v.Opened)
	assert.Nil(t, v.Data)
	assert.Equal(t, voter, v.Owner)
}

func TestInputRange(t *testing.T) {
	e := newEngine(t)
	_, err := e.Input(context.Background(), contract, voter, inputDef(), 11)
	assert.ErrorIs(t, err, ErrInputOutOfRange)
	assert.Empty(t, e.State(contract).Variables)
}

func TestComputeOpenFlow(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	confirmed := []int64{3, -1, 5}
	for _, v := range confirmed {
		id, err := e.Input(ctx, contract, voter, inputDef(), v)
		require.NoError(t, err)
		require.NoError(t, e.Confirm(contract, id))
	}
	// never confirmed, must not be counted
	_, err := e.Input(ctx, contract, voter, inputDef(), 10)
	require.NoError(t, err)

	_, err = e.Compute(ctx, contract)
	assert.ErrorIs(t, err, ErrNotCalculating)

	req := StartComputation{Program: sumProgram, OutputMetadata: [][]byte{{1}}, OnComplete: 0x62}
	require.NoError(t, e.Apply(contract, []StateChange{req}))
	assert.Equal(t, Calculating, e.State(contract).CalculationState)
	assert.ErrorIs(t, e.StartComputation(contract, req), ErrNotWaiting)

	outputs, err := e.Compute(ctx, contract)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, Output, e.State(contract).CalculationState)

	require.NoError(t, e.Open(ctx, contract, outputs))
	out, ok := e.State(contract).Variable(outputs[0])
	require.True(t, ok)
	assert.True(t, out.Opened)
	assert.Equal(t, []byte{1}, out.Metadata)
	assert.Equal(t, int32(7), int32(binary.LittleEndian.Uint32(out.Data)))

	require.NoError(t, e.Apply(contract, []StateChange{ContractDone{}}))
	assert.Equal(t, Done, e.State(contract).CalculationState)
}

func TestTamperedShareIsMalicious(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	id, err := e.Input(ctx, contract, voter, inputDef(), 2)
	require.NoError(t, err)
	require.NoError(t, e.Confirm(contract, id))

	require.NoError(t, e.store.nodes[1].Put(ctx, shareKey(contract, id, 0), make([]byte, 32)))

	require.NoError(t, e.StartComputation(contract, StartComputation{Program: sumProgram, OutputMetadata: [][]byte{{1}}}))
	_, err = e.Compute(ctx, contract)
	assert.ErrorIs(t, err, ErrCommitmentMismatch)
	assert.Equal(t, MaliciousBehaviour, e.State(contract).CalculationState)
}

func TestRejectDeletesShares(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	id, err := e.Input(ctx, contract, voter, inputDef(), 1)
	require.NoError(t, err)
	require.NoError(t, e.Reject(ctx, contract, id))

	_, ok := e.State(contract).Variable(id)
	assert.False(t, ok)
	has, err := e.store.nodes[0].Has(ctx, shareKey(contract, id, 0))
	require.NoError(t, err)
	assert.False(t, has)
}

func TestUnknownProgramAndContract(t *testing.T) {
	e := newEngine(t)
	assert.ErrorIs(t, e.StartComputation(contract, StartComputation{Program: 0x55}), ErrUnknownProgram)
	other := common.Address{Type: common.ZkContractAddress, Identifier: [20]byte{9}}
	assert.ErrorIs(t, e.StartComputation(other, StartComputation{Program: sumProgram}), ErrUnknownContract)
	assert.Equal(t, Waiting, e.State(other).CalculationState)
}

func TestShareDirResolution(t *testing.T) {
	conf := NewEngineConfig(t.TempDir()).Get()
	assert.GreaterOrEqual(t, conf.Nodes, 2)
	assert.Equal(t, filepath.Join("data", "zk"), conf.ShareDirIn("data"))

	conf.ShareDir = "/var/lib/sekiva/shares"
	assert.Equal(t, "/var/lib/sekiva/shares", conf.ShareDirIn("data"))
}

func TestFlatfsNodesRoundTrip(t *testing.T) {
	nodes, err := FlatfsNodes(t.TempDir(), 3)
	require.NoError(t, err)
	t.Cleanup(func() {
		for _, n := range nodes {
			n.Close()
		}
	})

	e, err := New(nodes, nil, nil)
	require.NoError(t, err)
	e.Attach(contract, map[common.Shortname]Program{sumProgram: sum})

	id, err := e.Input(context.Background(), contract, voter, InputDef{BitLength: 8, Min: 0, Max: 9}, 7)
	require.NoError(t, err)
	require.NoError(t, e.Confirm(contract, id))
	require.NoError(t, e.Open(context.Background(), contract, []SecretVarId{id}))

	v, ok := e.State(contract).Variable(id)
	require.True(t, ok)
	assert.Equal(t, []byte{7}, v.Data)
}

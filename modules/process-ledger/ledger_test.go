package processLedger_test

import (
	"testing"

	"github.com/thebeyondr/sekiva/modules/common"
	processLedger "github.com/thebeyondr/sekiva/modules/process-ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestNewProcessId(t *testing.T) {
	ctx := common.ContractContext{BlockTime: 1700000000}
	copy(ctx.OriginalTransaction[:], []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01, 0x02, 0x03, 0xff})
	assert.Equal(t, "1700000000-deadbeef00010203", processLedger.NewProcessId(ctx))
}

func TestBallotProcessTransitions(t *testing.T) {
	all := []processLedger.BallotProcessState{
		processLedger.BallotCreated,
		processLedger.BallotDeployed,
		processLedger.BallotActive,
		processLedger.BallotTallying,
		processLedger.BallotCompleted,
		processLedger.BallotCancelled,
	}
	allowed := map[processLedger.BallotProcessState][]processLedger.BallotProcessState{
		processLedger.BallotCreated:  {processLedger.BallotDeployed, processLedger.BallotCancelled},
		processLedger.BallotDeployed: {processLedger.BallotActive, processLedger.BallotCancelled},
		processLedger.BallotActive:   {processLedger.BallotTallying, processLedger.BallotCancelled},
		processLedger.BallotTallying: {processLedger.BallotCompleted, processLedger.BallotCancelled},
	}
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}
	assert.True(t, processLedger.BallotCompleted.Terminal())
	assert.True(t, processLedger.BallotCancelled.Terminal())
}

func TestOrganizationProcessTransitions(t *testing.T) {
	assert.True(t, processLedger.OrganizationCreated.CanTransition(processLedger.OrganizationDeployed))
	assert.True(t, processLedger.OrganizationCreated.CanTransition(processLedger.OrganizationDeleted))
	assert.True(t, processLedger.OrganizationDeployed.CanTransition(processLedger.OrganizationActive))
	assert.False(t, processLedger.OrganizationActive.CanTransition(processLedger.OrganizationCreated))
	assert.False(t, processLedger.OrganizationDeleted.CanTransition(processLedger.OrganizationActive))
}

func TestProcessStateTransitions(t *testing.T) {
	assert.True(t, processLedger.Received.CanTransition(processLedger.Complete))
	assert.True(t, processLedger.Received.CanTransition(processLedger.Ignored))
	assert.False(t, processLedger.Complete.CanTransition(processLedger.Ignored))
	assert.False(t, processLedger.Ignored.CanTransition(processLedger.Complete))
	assert.Equal(t, "Ignored", processLedger.Ignored.String())
}

func TestLedgerBeginAdvance(t *testing.T) {
	var l processLedger.Ledger[processLedger.BallotProcessState]

	l1, err := l.Begin("p1", processLedger.BallotCreated)
	require.NoError(t, err)
	assert.Empty(t, l, "begin must not write to the receiver")

	_, err = l1.Begin("p1", processLedger.BallotCreated)
	assert.ErrorIs(t, err, processLedger.ErrProcessExists)

	l2, changed, err := l1.Advance("p1", processLedger.BallotDeployed)
	require.NoError(t, err)
	assert.True(t, changed)
	s, _ := l1.Get("p1")
	assert.Equal(t, processLedger.BallotCreated, s, "advance must not write to the receiver")

	l3, changed, err := l2.Advance("p1", processLedger.BallotDeployed)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, l2, l3)

	_, _, err = l2.Advance("p1", processLedger.BallotCreated)
	assert.ErrorIs(t, err, processLedger.ErrIllegalTransition)

	_, _, err = l2.Advance("missing", processLedger.BallotActive)
	assert.ErrorIs(t, err, processLedger.ErrProcessNotFound)
}

func TestLedgerBson(t *testing.T) {
	type doc struct {
		Processes processLedger.Ledger[processLedger.ProcessState] `bson:"processes"`
	}
	in := doc{processLedger.Ledger[processLedger.ProcessState]{
		"1-aa": processLedger.Complete,
		"2-bb": processLedger.Ignored,
	}}
	b, err := bson.Marshal(in)
	require.NoError(t, err)
	var out doc
	require.NoError(t, bson.Unmarshal(b, &out))
	assert.Equal(t, in, out)
}

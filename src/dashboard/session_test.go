package dashboard

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"fxhedge/src/ledger"
	"fxhedge/src/model"
	"fxhedge/src/txflow"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSnapshots struct {
	mu   sync.Mutex
	rows []*model.PositionSnapshot
}

func (m *memSnapshots) Create(_ context.Context, snap *model.PositionSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, snap)
	return nil
}

func (m *memSnapshots) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// cloneFast copies facts deeply enough that sessions can mutate them.
func cloneFast(f *FastFacts) *FastFacts {
	c := *f
	if f.Position != nil {
		p := *f.Position
		c.Position = &p
	}
	return &c
}

func TestSessionDiscardsStaleGeneration(t *testing.T) {
	fast, slow := fetchedFacts(t, nil)
	s := NewSession(owner, testEngine())

	_, gen := s.Owner()
	newGen, err := s.SwitchOwner(common.HexToAddress("0x00000000000000000000000000000000000000D4"))
	require.NoError(t, err)
	require.Greater(t, newGen, gen)

	assert.False(t, s.ApplyFast(context.Background(), gen, cloneFast(fast)))
	assert.False(t, s.ApplySlow(context.Background(), gen, slow))
	v := s.View()
	assert.Nil(t, v.Position)
	assert.Equal(t, StageNoPosition, v.Stage)
	assert.Equal(t, newGen, v.Generation)
}

func TestSessionAppliesCurrentGeneration(t *testing.T) {
	fast, slow := fetchedFacts(t, nil)
	snaps := &memSnapshots{}
	s := NewSession(owner, testEngine(), WithSnapshots(snaps))
	gen := s.Generation()

	require.True(t, s.ApplySlow(context.Background(), gen, slow))
	require.True(t, s.ApplyFast(context.Background(), gen, cloneFast(fast)))

	v := s.View()
	assert.Equal(t, StageActive, v.Stage)
	require.NotNil(t, v.Position)
	assert.Equal(t, owner.Hex(), v.Owner)
	require.NotNil(t, s.PositionAddress())
	assert.Equal(t, positionAt, *s.PositionAddress())
	assert.Equal(t, 1, snaps.count())

	// the same figures again do not produce another audit row
	require.True(t, s.ApplyFast(context.Background(), gen, cloneFast(fast)))
	assert.Equal(t, 1, snaps.count())

	changed := cloneFast(fast)
	changed.Position.HealthFactorRaw = big.NewInt(11_000)
	require.True(t, s.ApplyFast(context.Background(), gen, changed))
	assert.Equal(t, 2, snaps.count())
	assert.Equal(t, "liquidation", snaps.rows[1].RiskTier)
}

func TestSessionKeepsFiguresOnTransientFailure(t *testing.T) {
	fast, slow := fetchedFacts(t, nil)
	s := NewSession(owner, testEngine())
	gen := s.Generation()
	s.ApplySlow(context.Background(), gen, slow)
	s.ApplyFast(context.Background(), gen, cloneFast(fast))

	s.ApplyFast(context.Background(), gen, &FastFacts{Unavailable: []string{"has_position"}})
	v := s.View()
	require.NotNil(t, v.Position, "a failed poll never blanks the display")
	assert.Contains(t, v.Unavailable, "has_position")
	assert.Equal(t, StageActive, v.Stage)

	// oracle reads failing in the next slow cycle keep the previous prices
	s.ApplySlow(context.Background(), gen, &SlowFacts{Unavailable: []string{"oracle_BRL"}})
	v = s.View()
	assert.Equal(t, model.RateSourceOnChain, v.Position.Quote.Source)
	assert.NotNil(t, v.Thresholds)
}

func TestSessionCloseFlow(t *testing.T) {
	fast, slow := fetchedFacts(t, nil)
	s := NewSession(owner, testEngine())
	gen := s.Generation()
	s.ApplySlow(context.Background(), gen, slow)
	s.ApplyFast(context.Background(), gen, cloneFast(fast))

	assert.ErrorIs(t, s.CanBegin(model.ActionClose), ErrDebtOutstanding)

	repaid := cloneFast(fast)
	repaid.Position.PrincipalDebt = big.NewInt(0)
	repaid.Position.AccruedInterest = big.NewInt(0)
	repaid.Position.TotalDebt = big.NewInt(0)
	s.ApplyFast(context.Background(), gen, repaid)
	require.NoError(t, s.CanBegin(model.ActionClose))

	s.Submitted(owner, model.ActionClose, ledger.TxHandle{Hash: common.HexToHash("0x01")})
	assert.Equal(t, StageClosing, s.Stage())
	assert.Equal(t, model.TxStatusPending, s.View().Outcomes[model.ActionClose].Status)

	s.Finished(owner, model.ActionClose, &txflow.Outcome{Action: model.ActionClose, Status: model.TxStatusConfirmed})
	assert.Equal(t, StageClosed, s.Stage())

	// a lagging read of the old active position stays hidden
	s.ApplyFast(context.Background(), gen, cloneFast(repaid))
	v := s.View()
	assert.Equal(t, StageClosed, v.Stage)
	assert.Nil(t, v.Position)
	assert.Nil(t, s.PositionAddress())
}

func TestSessionPinnedOwnerRefusesSwitch(t *testing.T) {
	fast, slow := fetchedFacts(t, nil)
	s := NewSession(owner, testEngine(), WithPinnedOwner())
	gen := s.Generation()
	s.ApplySlow(context.Background(), gen, slow)
	s.ApplyFast(context.Background(), gen, cloneFast(fast))

	got, err := s.SwitchOwner(common.HexToAddress("0x00000000000000000000000000000000000000D4"))
	assert.ErrorIs(t, err, ErrAccountPinned)
	assert.Equal(t, gen, got)

	v := s.View()
	assert.Equal(t, owner.Hex(), v.Owner)
	assert.Equal(t, StageActive, v.Stage, "the signer's lifecycle keeps guarding its writes")
	require.NotNil(t, v.Position)

	// the pinned account itself may be re-selected
	_, err = s.SwitchOwner(owner)
	assert.NoError(t, err)
}

func TestSessionIgnoresOtherAccounts(t *testing.T) {
	s := NewSession(owner, testEngine())
	other := common.HexToAddress("0x00000000000000000000000000000000000000D4")
	s.Finished(other, model.ActionActivate, &txflow.Outcome{Status: model.TxStatusConfirmed})
	assert.Equal(t, StageNoPosition, s.Stage())
	assert.Empty(t, s.View().Outcomes)
}

func TestSessionSubscribe(t *testing.T) {
	fast, _ := fetchedFacts(t, nil)
	s := NewSession(owner, testEngine())
	ch, cancel := s.Subscribe()
	defer cancel()

	select {
	case v := <-ch:
		assert.Nil(t, v.Position)
	case <-time.After(time.Second):
		t.Fatal("no initial view")
	}

	// a slow reader only ever sees the latest view
	s.ApplyFast(context.Background(), s.Generation(), cloneFast(fast))
	s.ApplyFast(context.Background(), s.Generation(), &FastFacts{Unavailable: []string{"has_position"}})
	select {
	case v := <-ch:
		assert.Contains(t, v.Unavailable, "has_position")
	case <-time.After(time.Second):
		t.Fatal("no pushed view")
	}

	cancel()
	s.ApplyFast(context.Background(), s.Generation(), cloneFast(fast))
	select {
	case <-ch:
		t.Fatal("unsubscribed channel received a view")
	default:
	}
}

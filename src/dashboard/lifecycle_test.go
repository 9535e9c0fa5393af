package dashboard

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"fxhedge/src/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activePosition(addr string, created time.Time) *model.Position {
	return &model.Position{
		Address:       common.HexToAddress(addr),
		IsActive:      true,
		PrincipalDebt: big.NewInt(350_000_000),
		CreatedAt:     created,
	}
}

func TestLifecycleHappyPath(t *testing.T) {
	created := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	l := NewLifecycle()
	assert.Equal(t, StageNoPosition, l.Stage())

	assert.Equal(t, StageActive, l.Observe(true, activePosition("0xA1", created)))

	require.NoError(t, l.CanBegin(model.ActionReduce, big.NewInt(1)))
	require.NoError(t, l.Begin(model.ActionReduce))
	assert.Equal(t, StageReducing, l.Stage())
	assert.Equal(t, StageActive, l.Finish(model.ActionReduce, model.TxStatusConfirmed))

	require.NoError(t, l.CanBegin(model.ActionClose, big.NewInt(0)))
	require.NoError(t, l.Begin(model.ActionClose))
	assert.Equal(t, StageClosing, l.Stage())
	assert.Equal(t, StageClosed, l.Finish(model.ActionClose, model.TxStatusConfirmed))

	assert.Equal(t, StageNoPosition, l.Observe(false, nil))
}

func TestLifecycleCloseRequiresZeroPrincipal(t *testing.T) {
	l := NewLifecycle()
	l.Observe(true, activePosition("0xA1", time.Time{}))

	cases := []struct {
		name      string
		action    model.Action
		principal *big.Int
		wantErr   error
	}{
		{name: "close with debt", action: model.ActionClose, principal: big.NewInt(1), wantErr: ErrDebtOutstanding},
		{name: "settle with debt", action: model.ActionSettle, principal: big.NewInt(350_000_000), wantErr: ErrDebtOutstanding},
		{name: "close with unknown debt", action: model.ActionClose, principal: nil, wantErr: ErrDebtOutstanding},
		{name: "close repaid", action: model.ActionClose, principal: big.NewInt(0)},
		{name: "settle repaid", action: model.ActionSettle, principal: big.NewInt(0)},
		{name: "reduce with debt", action: model.ActionReduce, principal: big.NewInt(5)},
		{name: "activate while active", action: model.ActionActivate, wantErr: ErrInvalidTransition},
		{name: "approve is always allowed", action: model.ActionApprove},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := l.CanBegin(tc.action, tc.principal)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
		})
	}
}

func TestLifecycleNoPositionRejectsPositionActions(t *testing.T) {
	l := NewLifecycle()
	for _, a := range []model.Action{model.ActionReduce, model.ActionClose, model.ActionSettle} {
		assert.True(t, errors.Is(l.CanBegin(a, big.NewInt(0)), ErrInvalidTransition), a)
		assert.Error(t, l.Begin(a))
	}
	assert.NoError(t, l.CanBegin(model.ActionActivate, nil))
	assert.Equal(t, StageActive, l.Finish(model.ActionActivate, model.TxStatusConfirmed))
}

func TestLifecycleClosedIgnoresStaleReads(t *testing.T) {
	created := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	l := NewLifecycle()
	old := activePosition("0xA1", created)
	l.Observe(true, old)
	require.NoError(t, l.Begin(model.ActionSettle))
	require.Equal(t, StageClosed, l.Finish(model.ActionSettle, model.TxStatusConfirmed))

	// a lagging node still reports the old position as active
	assert.Equal(t, StageClosed, l.Observe(true, old))
	assert.False(t, l.Stage().ShowsPosition())

	// a newer position at the same address is shown
	fresh := activePosition("0xA1", created.Add(time.Hour))
	assert.Equal(t, StageActive, l.Observe(true, fresh))
}

func TestLifecycleUnconfirmedCloseFallsBackToActive(t *testing.T) {
	l := NewLifecycle()
	l.Observe(true, activePosition("0xA1", time.Time{}))
	require.NoError(t, l.Begin(model.ActionClose))

	assert.Equal(t, StageActive, l.Finish(model.ActionClose, model.TxStatusUnconfirmed))

	// the transaction lands later and the next read shows it inactive
	inactive := activePosition("0xA1", time.Time{})
	inactive.IsActive = false
	assert.Equal(t, StageClosed, l.Observe(true, inactive))
}

func TestLifecycleObserveFromNoPosition(t *testing.T) {
	inactive := activePosition("0xA1", time.Time{})
	inactive.IsActive = false

	cases := []struct {
		name        string
		hasPosition bool
		pos         *model.Position
		want        Stage
	}{
		{name: "nothing", hasPosition: false, want: StageNoPosition},
		{name: "read failed", hasPosition: true, pos: nil, want: StageNoPosition},
		{name: "active", hasPosition: true, pos: activePosition("0xA1", time.Time{}), want: StageActive},
		{name: "terminal", hasPosition: true, pos: inactive, want: StageClosed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := NewLifecycle()
			assert.Equal(t, tc.want, l.Observe(tc.hasPosition, tc.pos))
		})
	}
}

func TestLifecycleReset(t *testing.T) {
	l := NewLifecycle()
	l.Observe(true, activePosition("0xA1", time.Time{}))
	l.Reset()
	assert.Equal(t, StageNoPosition, l.Stage())
}

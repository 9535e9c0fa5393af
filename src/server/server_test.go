package server

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fxhedge/src/dashboard"
	"fxhedge/src/metrics"
	"fxhedge/src/model"
	"fxhedge/src/risk"
	"fxhedge/src/txflow"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopWriter struct{ calls int }

func (w *nopWriter) ApprovalStatus(context.Context, string) (*big.Int, bool, error) {
	return big.NewInt(0), true, nil
}
func (w *nopWriter) outcome() (*txflow.Outcome, error) {
	w.calls++
	return &txflow.Outcome{Status: model.TxStatusConfirmed}, nil
}
func (w *nopWriter) Approve(context.Context, string) (*txflow.Outcome, error) { return w.outcome() }
func (w *nopWriter) Activate(context.Context, txflow.ActivateRequest) (*txflow.Outcome, error) {
	return w.outcome()
}
func (w *nopWriter) Reduce(context.Context, string) (*txflow.Outcome, error) { return w.outcome() }
func (w *nopWriter) Close(context.Context, txflow.CloseRequest) (*txflow.Outcome, error) {
	return w.outcome()
}
func (w *nopWriter) Settle(context.Context) (*txflow.Outcome, error)              { return w.outcome() }
func (w *nopWriter) ApprovePool(context.Context, string) (*txflow.Outcome, error) { return w.outcome() }
func (w *nopWriter) Deposit(context.Context, string) (*txflow.Outcome, error)     { return w.outcome() }
func (w *nopWriter) Reset(model.Action) error                                     { return nil }
func (w *nopWriter) PendingFailure(model.Action) error                            { return nil }

func newDeps() Deps {
	owner := common.HexToAddress("0x00000000000000000000000000000000000000A1")
	m := metrics.New(prometheus.NewRegistry())
	return Deps{
		Session: dashboard.NewSession(owner, risk.NewEngine(risk.Config{}), dashboard.WithSessionMetrics(m)),
		Metrics: m,
	}
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func TestRouterReadOnly(t *testing.T) {
	h := NewRouter(newDeps())

	rr := do(t, h, http.MethodGet, "/healthcheck")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())

	rr = do(t, h, http.MethodGet, "/api/position")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"stage":"no_position"`)

	rr = do(t, h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "fxhedge_ws_clients")

	// optional surfaces are not mounted
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/actions/settle").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/pool").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/oracle/update").Code)
}

func TestRouterActionsUseSessionStage(t *testing.T) {
	d := newDeps()
	wr := &nopWriter{}
	d.Writer = wr
	h := NewRouter(d)

	// nothing to settle before a position exists
	rr := do(t, h, http.MethodPost, "/api/actions/settle")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Zero(t, wr.calls)

	rr = do(t, h, http.MethodPost, "/api/actions/approve")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, wr.calls)

	rr = do(t, h, http.MethodPost, "/api/actions/approve/reset")
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestRouterRefusesAccountSwitchWhenWriting(t *testing.T) {
	d := newDeps()
	signer, _ := d.Session.Owner()
	d.Session = dashboard.NewSession(signer, risk.NewEngine(risk.Config{}), dashboard.WithPinnedOwner())
	wr := &nopWriter{}
	d.Writer = wr
	h := NewRouter(d)

	rr := httptest.NewRecorder()
	body := `{"address":"0x00000000000000000000000000000000000000D4"}`
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/account", strings.NewReader(body)))
	assert.Equal(t, http.StatusConflict, rr.Code)

	owner, _ := d.Session.Owner()
	assert.Equal(t, signer, owner, "writes stay guarded by the signer's own lifecycle")

	rr = do(t, h, http.MethodPost, "/api/actions/approve")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, wr.calls)
}

func TestStartServerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- StartServer(ctx, "0", NewRouter(newDeps()), time.Second) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

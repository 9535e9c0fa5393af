package connectors

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fxhedge/src/model"

	"github.com/go-resty/resty/v2"
	"github.com/nntaoli-project/goex"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeResponse(status int) *resty.Response {
	return &resty.Response{RawResponse: &http.Response{StatusCode: status}}
}

// TestIsRetryableResp verifies retry decisions for assorted errors and HTTP responses.
func TestIsRetryableResp(t *testing.T) {
	cases := []struct {
		name string
		resp *resty.Response
		err  error
		want bool
	}{
		{name: "error present", err: errors.New("boom"), want: true},
		{name: "server error", resp: fakeResponse(500), want: true},
		{name: "too many requests", resp: fakeResponse(429), want: true},
		{name: "timeout", resp: fakeResponse(408), want: true},
		{name: "ok response", resp: fakeResponse(200), want: false},
		{name: "not found", resp: fakeResponse(404), want: false},
		{name: "nil resp", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := isRetryableResp(tc.resp, tc.err)
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestFXClientFetchRates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v6/latest/USD" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"success","base_code":"USD","rates":{"USD":1,"BRL":5,"MXN":20,"EUR":0.8}}`))
	}))
	defer server.Close()

	client := NewFXClient(server.URL, "/v6/latest/USD", time.Second)
	got, err := client.FetchRates(context.Background())
	require.NoError(t, err)

	brl, ok := got.Rate(model.CurrencyBRL)
	require.True(t, ok)
	assert.True(t, brl.Equal(decimal.RequireFromString("0.2")), "got %s", brl)
	mxn, _ := got.Rate(model.CurrencyMXN)
	assert.True(t, mxn.Equal(decimal.RequireFromString("0.05")))
	eur, _ := got.Rate(model.CurrencyEUR)
	assert.True(t, eur.Equal(decimal.RequireFromString("1.25")))
	assert.Equal(t, "fx_api", got.Provider)
}

func TestFXClientFetchRates_Failures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{name: "api error result", status: 200, body: `{"result":"error","error-type":"invalid-key"}`},
		{name: "wrong base", status: 200, body: `{"result":"success","base_code":"EUR","rates":{"BRL":5}}`},
		{name: "no rates", status: 200, body: `{"result":"success","base_code":"USD","rates":{"JPY":150}}`},
		{name: "client error", status: 403, body: `{}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			_, err := NewFXClient(server.URL, "/", time.Second).FetchRates(context.Background())
			require.Error(t, err)
		})
	}
}

type fakeTickerAPI struct {
	last map[string]float64
	err  map[string]error
}

func (f *fakeTickerAPI) GetTicker(pair goex.CurrencyPair) (*goex.Ticker, error) {
	key := pair.String()
	if err := f.err[key]; err != nil {
		return nil, err
	}
	return &goex.Ticker{Pair: pair, Last: f.last[key]}, nil
}

func TestParseExchangePairs(t *testing.T) {
	pairs, err := ParseExchangePairs("EUR:EUR_USDT, BRL:USDT_BRL")
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.False(t, pairs[0].invert)
	assert.True(t, pairs[1].invert)

	_, err = ParseExchangePairs("BRL:EUR_USDT")
	assert.Error(t, err)
	_, err = ParseExchangePairs("JPY:USDT_JPY")
	assert.Error(t, err)
	_, err = ParseExchangePairs("BRL")
	assert.Error(t, err)
}

func TestExchangeSourceFetchRates(t *testing.T) {
	pairs, err := ParseExchangePairs("EUR:EUR_USDT,BRL:USDT_BRL,MXN:USDT_MXN")
	require.NoError(t, err)

	api := &fakeTickerAPI{
		last: map[string]float64{"EUR_USDT": 1.08, "USDT_BRL": 5},
		err:  map[string]error{"USDT_MXN": errors.New("invalid symbol")},
	}
	got, err := NewExchangeSource(api, pairs).FetchRates(context.Background())
	require.NoError(t, err)

	eur, ok := got.Rate(model.CurrencyEUR)
	require.True(t, ok)
	assert.True(t, eur.Equal(decimal.RequireFromString("1.08")))
	brl, _ := got.Rate(model.CurrencyBRL)
	assert.True(t, brl.Equal(decimal.RequireFromString("0.2")))
	_, ok = got.Rate(model.CurrencyMXN)
	assert.False(t, ok)

	_, err = NewExchangeSource(&fakeTickerAPI{}, pairs).FetchRates(context.Background())
	assert.Error(t, err)
}

type stubSource struct {
	name  string
	rates map[model.Currency]decimal.Decimal
	err   error
	calls int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) FetchRates(context.Context) (*model.ExternalRates, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &model.ExternalRates{Rates: s.rates, Provider: s.name}, nil
}

func TestFallbackSource(t *testing.T) {
	d := decimal.RequireFromString
	full := &stubSource{name: "a", rates: map[model.Currency]decimal.Decimal{
		model.CurrencyBRL: d("0.2"), model.CurrencyMXN: d("0.05"), model.CurrencyEUR: d("1.1"),
	}}
	second := &stubSource{name: "b", rates: map[model.Currency]decimal.Decimal{model.CurrencyBRL: d("0.3")}}

	got, err := NewFallbackSource(full, second).FetchRates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.calls, "second source is not queried when the first is complete")
	assert.Equal(t, "a", got.Provider)

	partial := &stubSource{name: "a", rates: map[model.Currency]decimal.Decimal{model.CurrencyEUR: d("1.1")}}
	got, err = NewFallbackSource(&stubSource{name: "down", err: errors.New("503")}, partial, second).FetchRates(context.Background())
	require.NoError(t, err)
	assert.Len(t, got.Rates, 2)
	assert.Equal(t, "a+b", got.Provider)

	_, err = NewFallbackSource(&stubSource{name: "down", err: errors.New("503")}).FetchRates(context.Background())
	assert.Error(t, err)
}

func TestOracleTrigger(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		switch gotAuth {
		case "Bearer good":
			_, _ = w.Write([]byte(`{"success":true,"transactionHash":"0xabc","blockNumber":12,"updatedBy":"api"}`))
		case "Bearer slow":
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"success":false,"status":"unconfirmed","transactionHash":"0xdef"}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"error":"Unauthorized"}`))
		}
	}))
	defer server.Close()

	res, err := NewOracleTrigger(server.URL, "good", time.Second).Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer good", gotAuth)
	assert.Equal(t, "0xabc", res.TransactionHash)
	assert.Equal(t, uint64(12), res.BlockNumber)

	res, err = NewOracleTrigger(server.URL, "slow", time.Second).Trigger(context.Background())
	require.NoError(t, err, "an unconfirmed push still counts as triggered")
	assert.Equal(t, model.TxStatusUnconfirmed, res.Status)

	_, err = NewOracleTrigger(server.URL, "bad", time.Second).Trigger(context.Background())
	assert.True(t, errors.Is(err, ErrOracleTriggerUnauthorized))
}

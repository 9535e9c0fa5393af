package monitor

import (
	"context"
	"errors"
	"strings"

	"fxhedge/src/connectors"
	"fxhedge/src/dashboard"
	"fxhedge/src/executors"
	"fxhedge/src/ledger"
	"fxhedge/src/metrics"
	"fxhedge/src/pool"
	"fxhedge/src/publisher"
	"fxhedge/src/repository"
	"fxhedge/src/risk"
	"fxhedge/src/security"
	"fxhedge/src/server"
	"fxhedge/src/txflow"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

var ErrNoWatchAddress = errors.New("set WATCH_ADDRESS or configure a signer")

// stack is everything one monitored account needs.
type stack struct {
	session *dashboard.Session
	monitor *executors.Monitor
	metrics *metrics.Metrics
	deps    server.Deps
}

func build(cfg executors.Config, readOnly bool) (*stack, error) {
	ledgerCfg := ledger.GetConfig()
	addrs, err := ledger.AddressesFromConfig(ledgerCfg)
	if err != nil {
		return nil, err
	}
	eth, err := ledger.NewEthLedgerFromConfig(ledgerCfg)
	if err != nil {
		return nil, err
	}
	proto := ledger.NewProtocol(eth, addrs)

	owner, err := watchAddress(cfg.WatchAddress, proto)
	if err != nil {
		return nil, err
	}

	rates, err := connectors.NewRateSourceFromConfig(connectors.GetConfig())
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	snapshots := repository.NewSnapshotRepository()
	txLogs := repository.NewTransactionLogRepository()
	exceptions := repository.NewExceptionRepository()

	writable := canWrite(owner, proto, readOnly)
	opts := []dashboard.SessionOption{
		dashboard.WithSnapshots(snapshots),
		dashboard.WithSessionMetrics(m),
	}
	if writable {
		// the session's lifecycle guards the signer's writes
		opts = append(opts, dashboard.WithPinnedOwner())
	}
	session := dashboard.NewSession(owner, risk.NewEngine(risk.GetConfig()), opts...)
	mon := executors.NewMonitor(session, dashboard.NewFetcher(proto, rates), m)

	deps := server.Deps{
		Session:   session,
		Snapshots: snapshots,
		Metrics:   m,
		Auth:      security.NewTriggerAuth(security.GetConfig()),
		Pool: func(ctx context.Context) (*pool.View, error) {
			account, _ := session.Owner()
			return pool.Load(ctx, proto, &account)
		},
	}

	pubCfg := publisher.GetConfig()
	oracleProto, err := oracleProtocol(ledgerCfg, pubCfg, proto)
	if err != nil {
		return nil, err
	}
	pub := publisher.New(rates, oracleProto, pubCfg, txLogs, m)
	deps.Publisher = pub

	if writable {
		// push in-process when this instance holds the oracle key
		var trigger txflow.Trigger = pub
		if _, ok := oracleProto.Account(); !ok {
			trigger = connectors.NewOracleTriggerFromConfig(connectors.GetConfig())
		}
		deps.Writer = txflow.NewService(proto, rates, trigger, txLogs, exceptions, txflow.GetConfig(),
			txflow.WithObserver(session),
			txflow.WithMetrics(m),
		)
	} else {
		logrus.Info("write endpoints disabled, monitor is read-only")
	}

	return &stack{session: session, monitor: mon, metrics: m, deps: deps}, nil
}

// watchAddress prefers WATCH_ADDRESS and falls back to the signer's account.
func watchAddress(raw string, proto *ledger.Protocol) (common.Address, error) {
	if raw = strings.TrimSpace(raw); raw != "" {
		if !common.IsHexAddress(raw) {
			return common.Address{}, ledger.NewError(ledger.KindConfiguration, "watch address", "WATCH_ADDRESS is not a hex address", nil)
		}
		return common.HexToAddress(raw), nil
	}
	if addr, ok := proto.Account(); ok {
		return addr, nil
	}
	return common.Address{}, ErrNoWatchAddress
}

// canWrite reports whether write endpoints can be served for owner. Writes
// always act on the signer's own position, so they are only enabled while the
// signer is the watched account.
func canWrite(owner common.Address, proto *ledger.Protocol, readOnly bool) bool {
	if readOnly {
		return false
	}
	signer, ok := proto.Account()
	if !ok {
		return false
	}
	if signer != owner {
		logrus.WithFields(map[string]interface{}{
			"watched": owner.Hex(),
			"signer":  signer.Hex(),
		}).Warn("watched account is not the signer, write endpoints disabled")
		return false
	}
	return true
}

// oracleProtocol signs price pushes with ORACLE_UPDATER_PRIVATE_KEY when set.
func oracleProtocol(ledgerCfg ledger.Config, pubCfg publisher.Config, fallback *ledger.Protocol) (*ledger.Protocol, error) {
	if pubCfg.UpdaterPrivateKey == "" {
		return fallback, nil
	}
	cfg := ledgerCfg
	cfg.PrivateKey = pubCfg.UpdaterPrivateKey
	cfg.KeystorePath = ""
	eth, err := ledger.NewEthLedgerFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return ledger.NewProtocol(eth, fallback.Addresses()), nil
}

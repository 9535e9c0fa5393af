package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fxhedge/src/connectors"
	"fxhedge/src/database"
	"fxhedge/src/ledger"
	"fxhedge/src/metrics"
	"fxhedge/src/publisher"
	"fxhedge/src/repository"

	"github.com/sirupsen/logrus"
)

// Publisher pushes external FX rates to the on-chain oracle, once or periodically.
type Publisher struct {
	Once      bool
	UpdatedBy string
}

func (t *Publisher) Start() error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Failed to connect to database")
		return err
	}

	pub, err := newPublisher()
	if err != nil {
		return err
	}

	if !t.Once {
		return pub.Run(ctx, 0)
	}

	updatedBy := t.UpdatedBy
	if updatedBy == "" {
		updatedBy = "cli"
	}
	result, err := pub.Publish(ctx, updatedBy)
	if result != nil {
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
	}
	return err
}

func newPublisher() (*publisher.PricePublisher, error) {
	cfg := publisher.GetConfig()
	ledgerCfg := ledger.GetConfig()
	if cfg.UpdaterPrivateKey != "" {
		ledgerCfg.PrivateKey = cfg.UpdaterPrivateKey
		ledgerCfg.KeystorePath = ""
	}
	addrs, err := ledger.AddressesFromConfig(ledgerCfg)
	if err != nil {
		return nil, err
	}
	eth, err := ledger.NewEthLedgerFromConfig(ledgerCfg)
	if err != nil {
		return nil, err
	}
	rates, err := connectors.NewRateSourceFromConfig(connectors.GetConfig())
	if err != nil {
		return nil, err
	}
	return publisher.New(rates, ledger.NewProtocol(eth, addrs), cfg, repository.NewTransactionLogRepository(), metrics.NewNoop()), nil
}

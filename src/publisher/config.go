package publisher

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	PushInterval   time.Duration `envconfig:"ORACLE_PUSH_INTERVAL" default:"5m"`
	ReceiptTimeout time.Duration `envconfig:"ORACLE_RECEIPT_TIMEOUT" default:"60s"`
	ExplorerTxURL  string        `envconfig:"EXPLORER_TX_URL" default:"https://testnet.arcscan.app/tx/"`

	// UpdaterPrivateKey signs updatePrices; the monitor's signer is used when empty.
	UpdaterPrivateKey string `envconfig:"ORACLE_UPDATER_PRIVATE_KEY"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

package txflow

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ReceiptTimeout        time.Duration `envconfig:"TX_RECEIPT_TIMEOUT" default:"30s"`
	DefaultApprovalAmount string        `envconfig:"DEFAULT_APPROVAL_AMOUNT" default:"1000000"`
	ResyncWait            time.Duration `envconfig:"ORACLE_RESYNC_WAIT" default:"30s"`
	ResyncPolls           int           `envconfig:"ORACLE_RESYNC_POLLS" default:"5"`
	ResyncPollInterval    time.Duration `envconfig:"ORACLE_RESYNC_POLL_INTERVAL" default:"2s"`
	ExplorerTxURL         string        `envconfig:"EXPLORER_TX_URL" default:"https://testnet.arcscan.app/tx/"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

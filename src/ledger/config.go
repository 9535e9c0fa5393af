package ledger

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	RPCURL  string `envconfig:"RPC_URL" default:"https://rpc.testnet.arc.network"`
	ChainID int64  `envconfig:"CHAIN_ID" default:"5042002"`

	RouterAddress     string `envconfig:"ROUTER_ADDRESS"`
	OracleAddress     string `envconfig:"ORACLE_ADDRESS"`
	StablecoinAddress string `envconfig:"USDC_ADDRESS"`

	PrivateKey       string `envconfig:"PRIVATE_KEY"`
	KeystorePath     string `envconfig:"KEYSTORE_PATH"`
	KeystorePassword string `envconfig:"KEYSTORE_PASSWORD"`

	ExplorerTxURL string `envconfig:"EXPLORER_TX_URL" default:"https://testnet.arcscan.app/tx/"`

	ReceiptTimeout      time.Duration `envconfig:"RECEIPT_TIMEOUT" default:"30s"`
	ReceiptPollInterval time.Duration `envconfig:"RECEIPT_POLL_INTERVAL" default:"1s"`
	CallTimeout         time.Duration `envconfig:"LEDGER_CALL_TIMEOUT" default:"10s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// ExplorerURL links a transaction hash on the block explorer.
func (c Config) ExplorerURL(txHash string) string {
	return c.ExplorerTxURL + txHash
}

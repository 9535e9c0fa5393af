package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	FXBaseURL string        `envconfig:"FX_API_BASE_URL" default:"https://open.er-api.com"`
	FXPath    string        `envconfig:"FX_API_PATH" default:"/v6/latest/USD"`
	FXTimeout time.Duration `envconfig:"FX_API_TIMEOUT" default:"15s"`

	EnableExchangeFallback bool   `envconfig:"ENABLE_EXCHANGE_FALLBACK" default:"true"`
	BinanceEndpoint        string `envconfig:"BINANCE_ENDPOINT" default:"https://api.binance.com"`
	// currency:PAIR, a pair quoted in the currency is inverted
	BinancePairs string `envconfig:"BINANCE_PAIRS" default:"EUR:EUR_USDT,BRL:USDT_BRL,MXN:USDT_MXN"`

	OracleTriggerURL string `envconfig:"ORACLE_TRIGGER_URL" default:"http://localhost:9898"`
	OracleAPIKey     string `envconfig:"ORACLE_UPDATE_API_KEY"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

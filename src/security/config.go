package security

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// OracleAPIKeyHash is the bcrypt hash of the bearer key accepted by /oracle/update.
	OracleAPIKeyHash string `envconfig:"ORACLE_API_KEY_HASH"`

	// TrustCronHeader accepts the cron header only behind an edge that strips it
	// from client requests. With CronSecret set the header must carry it.
	TrustCronHeader bool   `envconfig:"TRUST_CRON_HEADER" default:"false"`
	CronSecret      string `envconfig:"CRON_SECRET"`
	DevMode         bool   `envconfig:"DEV_MODE" default:"false"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

package monitor

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// ReadOnly keeps the write endpoints off even when a signer is available.
	ReadOnly bool `envconfig:"READ_ONLY" default:"false"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}

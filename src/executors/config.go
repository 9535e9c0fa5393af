package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	logger "github.com/sirupsen/logrus"
)

const (
	minSlowInterval = 15 * time.Second
	maxSlowInterval = 30 * time.Second
)

type Config struct {
	WatchAddress string        `envconfig:"WATCH_ADDRESS"`
	FastInterval time.Duration `envconfig:"POLL_FAST_INTERVAL" default:"3s"`
	SlowInterval time.Duration `envconfig:"POLL_SLOW_INTERVAL" default:"20s"`
	TaskTimeout  time.Duration `envconfig:"POLL_TASK_TIMEOUT" default:"10s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config.normalize()
}

// normalize keeps the slow cadence within 15-30s and the fast one positive.
func (c Config) normalize() Config {
	if c.FastInterval <= 0 {
		c.FastInterval = 3 * time.Second
	}
	if c.SlowInterval < minSlowInterval || c.SlowInterval > maxSlowInterval {
		clamped := c.SlowInterval
		if clamped < minSlowInterval {
			clamped = minSlowInterval
		} else {
			clamped = maxSlowInterval
		}
		logger.WithFields(map[string]interface{}{
			"configured": c.SlowInterval,
			"using":      clamped,
		}).Warn("POLL_SLOW_INTERVAL out of range")
		c.SlowInterval = clamped
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = 10 * time.Second
	}
	return c
}

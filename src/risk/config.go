package risk

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	BorrowAPRPercent string `envconfig:"BORROW_APR_PERCENT" default:"3.5"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// BorrowAPR parses BorrowAPRPercent, falling back to 3.5 on garbage.
func (c Config) BorrowAPR() decimal.Decimal {
	apr, err := decimal.NewFromString(c.BorrowAPRPercent)
	if err != nil || apr.IsNegative() {
		return DefaultBorrowAPR
	}
	return apr
}

var DefaultBorrowAPR = decimal.RequireFromString("3.5")

package model

import (
	"fmt"
	"strings"
)

// Currency is a target currency the protocol can hedge against USD.
type Currency string

const (
	CurrencyBRL Currency = "BRL"
	CurrencyMXN Currency = "MXN"
	CurrencyEUR Currency = "EUR"
)

// SupportedCurrencies keeps the order used by the oracle push (updatePrices).
var SupportedCurrencies = []Currency{CurrencyBRL, CurrencyMXN, CurrencyEUR}

func (c Currency) String() string { return string(c) }

func (c Currency) Valid() bool {
	for _, s := range SupportedCurrencies {
		if s == c {
			return true
		}
	}
	return false
}

// ParseCurrency accepts any casing and surrounding whitespace.
func ParseCurrency(raw string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", fmt.Errorf("unsupported currency %q", raw)
	}
	return c, nil
}

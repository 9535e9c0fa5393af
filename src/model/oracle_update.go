package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OracleUpdateResult is the outcome of one updatePrices push. A push whose
// receipt did not arrive in time is unconfirmed, not failed.
type OracleUpdateResult struct {
	Success         bool                         `json:"success"`
	Status          TxStatus                     `json:"status,omitempty"`
	Message         string                       `json:"message,omitempty"`
	TransactionHash string                       `json:"transactionHash,omitempty"`
	BlockNumber     uint64                       `json:"blockNumber,omitempty"`
	ExplorerURL     string                       `json:"explorerUrl,omitempty"`
	Rates           map[Currency]decimal.Decimal `json:"rates,omitempty"`
	Timestamp       time.Time                    `json:"timestamp"`
	UpdatedBy       string                       `json:"updatedBy,omitempty"`
	Error           string                       `json:"error,omitempty"`
}

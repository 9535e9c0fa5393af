package model

import "time"

type TxStatus string

const (
	TxStatusPending     TxStatus = "pending"
	TxStatusConfirmed   TxStatus = "confirmed"
	TxStatusUnconfirmed TxStatus = "unconfirmed"
	TxStatusCancelled   TxStatus = "cancelled"
	TxStatusFailed      TxStatus = "failed"
	TxStatusRejected    TxStatus = "rejected"
)

// Final reports whether no further status change is expected from the client side.
func (s TxStatus) Final() bool {
	return s == TxStatusConfirmed || s == TxStatusCancelled || s == TxStatusFailed || s == TxStatusRejected
}

type Action string

const (
	ActionApprove  Action = "approve"
	ActionActivate Action = "activate"
	ActionReduce   Action = "reduce"
	ActionClose    Action = "close"
	ActionSettle   Action = "settle"
	ActionDeposit  Action = "lp_deposit"
	ActionOracle   Action = "oracle_update"
)

// TransactionLog records every write attempt, keyed by a correlation id.
type TransactionLog struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	CorrelationID string    `gorm:"size:36;uniqueIndex" json:"correlation_id"`
	Owner         string    `gorm:"size:42;index" json:"owner"`
	Action        Action    `gorm:"size:20;index" json:"action"`
	TxHash        string    `gorm:"size:66" json:"tx_hash,omitempty"`
	Status        TxStatus  `gorm:"size:20;not null;default:pending" json:"status"`
	ErrorKind     string    `gorm:"size:40" json:"error_kind,omitempty"`
	Message       string    `gorm:"size:1024" json:"message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

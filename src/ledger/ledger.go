package ledger

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ContractRef addresses one deployed collaborator contract.
type ContractRef struct {
	Kind    Contract
	Address common.Address
}

func (r ContractRef) String() string { return string(r.Kind) + "@" + r.Address.Hex() }

// TxHandle is returned as soon as a write is submitted.
type TxHandle struct {
	Hash        common.Hash `json:"hash"`
	Method      string      `json:"method"`
	SubmittedAt time.Time   `json:"submitted_at"`
}

// Receipt is the confirmed result of a write.
type Receipt struct {
	TxHash      common.Hash `json:"tx_hash"`
	BlockNumber uint64      `json:"block_number"`
	Status      uint64      `json:"status"`
	GasUsed     uint64      `json:"gas_used"`
}

func (r *Receipt) Succeeded() bool { return r != nil && r.Status == 1 }

// Ledger is the chain collaborator: view reads, signed writes and receipt waits.
type Ledger interface {
	Read(ctx context.Context, ref ContractRef, method string, args ...interface{}) ([]interface{}, error)
	Write(ctx context.Context, ref ContractRef, method string, args ...interface{}) (TxHandle, error)
	AwaitReceipt(ctx context.Context, handle TxHandle, timeout time.Duration) (*Receipt, error)
	// Account is the signing address; ok is false for a read-only ledger.
	Account() (addr common.Address, ok bool)
}

package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	logger "github.com/sirupsen/logrus"
)

// EVMClient is the subset of the Ethereum RPC used by EthLedger.
// *ethclient.Client satisfies it.
type EVMClient interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// DialEVMClient initialises an EVM RPC client for the provided endpoint.
func DialEVMClient(endpoint string) (*ethclient.Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, NewError(KindConfiguration, "dial", "rpc endpoint required", nil)
	}
	return ethclient.Dial(trimmed)
}

// EthLedger implements Ledger over an EVM JSON-RPC node.
type EthLedger struct {
	client       EVMClient
	signer       Signer
	chainID      *big.Int
	pollInterval time.Duration

	// serialises nonce assignment for writes from the same signer
	writeMu sync.Mutex
}

// NewEthLedger builds a ledger; signer may be nil for read-only use.
func NewEthLedger(client EVMClient, signer Signer, chainID *big.Int, pollInterval time.Duration) *EthLedger {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &EthLedger{client: client, signer: signer, chainID: chainID, pollInterval: pollInterval}
}

// NewEthLedgerFromConfig dials the node and negotiates the signer.
func NewEthLedgerFromConfig(cfg Config) (*EthLedger, error) {
	client, err := DialEVMClient(cfg.RPCURL)
	if err != nil {
		return nil, err
	}
	signer, err := NegotiateSigner(ProvidersFromConfig(cfg)...)
	if err != nil {
		return nil, err
	}
	return NewEthLedger(client, signer, big.NewInt(cfg.ChainID), cfg.ReceiptPollInterval), nil
}

func (l *EthLedger) Account() (common.Address, bool) {
	if l.signer == nil {
		return common.Address{}, false
	}
	return l.signer.Address(), true
}

func checkRef(op string, ref ContractRef) error {
	if (ref.Address == common.Address{}) {
		return NewError(KindConfiguration, op, fmt.Sprintf("%s contract address not configured", ref.Kind), nil)
	}
	return nil
}

func (l *EthLedger) Read(ctx context.Context, ref ContractRef, method string, args ...interface{}) ([]interface{}, error) {
	op := "read " + string(ref.Kind) + "." + method
	if err := checkRef(op, ref); err != nil {
		return nil, err
	}
	parsed, err := ABIFor(ref.Kind)
	if err != nil {
		return nil, err
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, NewError(KindConfiguration, op, "pack arguments", err)
	}

	to := ref.Address
	msg := ethereum.CallMsg{To: &to, Data: data}
	if from, ok := l.Account(); ok {
		msg.From = from
	}
	out, err := l.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, Classify(op, err)
	}
	values, err := parsed.Unpack(method, out)
	if err != nil {
		return nil, NewError(KindUnavailable, op, "unpack result", err)
	}
	return values, nil
}

func (l *EthLedger) Write(ctx context.Context, ref ContractRef, method string, args ...interface{}) (TxHandle, error) {
	op := "write " + string(ref.Kind) + "." + method
	if l.signer == nil {
		return TxHandle{}, NewError(KindConfiguration, op, "no signer available", nil)
	}
	if err := checkRef(op, ref); err != nil {
		return TxHandle{}, err
	}
	parsed, err := ABIFor(ref.Kind)
	if err != nil {
		return TxHandle{}, err
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return TxHandle{}, NewError(KindConfiguration, op, "pack arguments", err)
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	from := l.signer.Address()
	to := ref.Address

	chainID := l.chainID
	if chainID == nil || chainID.Sign() == 0 {
		if chainID, err = l.client.ChainID(ctx); err != nil {
			return TxHandle{}, Classify(op, err)
		}
		l.chainID = chainID
	}
	nonce, err := l.client.PendingNonceAt(ctx, from)
	if err != nil {
		return TxHandle{}, Classify(op, err)
	}
	gasPrice, err := l.client.SuggestGasPrice(ctx)
	if err != nil {
		return TxHandle{}, Classify(op, err)
	}
	// estimation runs the call, so reverts surface here before anything is broadcast
	gas, err := l.client.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return TxHandle{}, Classify(op, err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := l.signer.SignTx(tx, chainID)
	if err != nil {
		return TxHandle{}, Classify(op, err)
	}
	if err := l.client.SendTransaction(ctx, signed); err != nil {
		return TxHandle{}, Classify(op, err)
	}

	handle := TxHandle{Hash: signed.Hash(), Method: method, SubmittedAt: time.Now().UTC()}
	logger.WithFields(map[string]interface{}{
		"contract": ref.String(),
		"method":   method,
		"tx":       handle.Hash.Hex(),
		"nonce":    nonce,
	}).Info("transaction submitted")
	return handle, nil
}

// AwaitReceipt polls for the receipt until timeout. A timeout is reported as
// KindTimeout: the transaction may still land. A reverted receipt is returned
// together with a KindContractRejected error.
func (l *EthLedger) AwaitReceipt(ctx context.Context, handle TxHandle, timeout time.Duration) (*Receipt, error) {
	op := "await " + handle.Method
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		r, err := l.client.TransactionReceipt(waitCtx, handle.Hash)
		switch {
		case err == nil && r != nil:
			receipt := &Receipt{TxHash: r.TxHash, Status: r.Status, GasUsed: r.GasUsed}
			if r.BlockNumber != nil {
				receipt.BlockNumber = r.BlockNumber.Uint64()
			}
			if r.Status != types.ReceiptStatusSuccessful {
				return receipt, NewError(KindContractRejected, op, GetRevertMsg(""), nil)
			}
			return receipt, nil
		case err != nil && !errors.Is(err, ethereum.NotFound) && !errors.Is(err, context.DeadlineExceeded):
			logger.WithError(err).WithField("tx", handle.Hash.Hex()).Warn("receipt poll failed, retrying")
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, NewError(KindTimeout, op, "cancelled while awaiting confirmation", ctx.Err())
			}
			return nil, NewError(KindTimeout, op, fmt.Sprintf("not confirmed within %s", timeout), nil)
		case <-ticker.C:
		}
	}
}

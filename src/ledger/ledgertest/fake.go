// Package ledgertest provides an in-memory Ledger for tests.
package ledgertest

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"fxhedge/src/ledger"

	"github.com/ethereum/go-ethereum/common"
)

type Call struct {
	Ref    ledger.ContractRef
	Method string
	Args   []interface{}
}

// Fake answers reads from a table keyed by method, or by "method:firstArg"
// when such a key is present, and records every call.
type Fake struct {
	mu sync.Mutex

	reads     map[string][]interface{}
	readErrs  map[string]error
	writeErrs map[string]error

	// AwaitFunc overrides the default successful receipt.
	AwaitFunc func(ctx context.Context, h ledger.TxHandle, timeout time.Duration) (*ledger.Receipt, error)

	account common.Address
	signing bool

	readCalls  []Call
	writeCalls []Call
	nonce      int64
}

func New() *Fake {
	return &Fake{
		reads:     map[string][]interface{}{},
		readErrs:  map[string]error{},
		writeErrs: map[string]error{},
	}
}

// WithAccount makes the fake a signing ledger for addr.
func (f *Fake) WithAccount(addr common.Address) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.account = addr
	f.signing = true
	return f
}

func (f *Fake) SetRead(key string, out ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads[key] = out
	delete(f.readErrs, key)
}

func (f *Fake) SetReadErr(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErrs[key] = err
}

func (f *Fake) SetWriteErr(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErrs[method] = err
}

func keys(method string, args []interface{}) []string {
	if len(args) > 0 {
		return []string{fmt.Sprintf("%s:%v", method, args[0]), method}
	}
	return []string{method}
}

func (f *Fake) Read(_ context.Context, ref ledger.ContractRef, method string, args ...interface{}) ([]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readCalls = append(f.readCalls, Call{Ref: ref, Method: method, Args: args})
	for _, k := range keys(method, args) {
		if err, ok := f.readErrs[k]; ok {
			return nil, err
		}
		if out, ok := f.reads[k]; ok {
			return out, nil
		}
	}
	return nil, ledger.NewError(ledger.KindUnavailable, method, "not scripted", nil)
}

func (f *Fake) Write(_ context.Context, ref ledger.ContractRef, method string, args ...interface{}) (ledger.TxHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeCalls = append(f.writeCalls, Call{Ref: ref, Method: method, Args: args})
	if err := f.writeErrs[method]; err != nil {
		return ledger.TxHandle{}, err
	}
	f.nonce++
	return ledger.TxHandle{
		Hash:        common.BigToHash(big.NewInt(f.nonce)),
		Method:      method,
		SubmittedAt: time.Now().UTC(),
	}, nil
}

func (f *Fake) AwaitReceipt(ctx context.Context, h ledger.TxHandle, timeout time.Duration) (*ledger.Receipt, error) {
	f.mu.Lock()
	await := f.AwaitFunc
	f.mu.Unlock()
	if await != nil {
		return await(ctx, h, timeout)
	}
	return &ledger.Receipt{TxHash: h.Hash, BlockNumber: 100, Status: 1}, nil
}

func (f *Fake) Account() (common.Address, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.account, f.signing
}

// Writes returns the recorded writes, optionally filtered by method.
func (f *Fake) Writes(method string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.writeCalls {
		if method == "" || c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// ReadCount counts reads of method.
func (f *Fake) ReadCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.readCalls {
		if c.Method == method {
			n++
		}
	}
	return n
}

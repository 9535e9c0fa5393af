package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRPCError struct {
	code int
	msg  string
	data interface{}
}

func (e fakeRPCError) Error() string          { return e.msg }
func (e fakeRPCError) ErrorCode() int         { return e.code }
func (e fakeRPCError) ErrorData() interface{} { return e.data }

func revertData(t *testing.T, reason string) string {
	t.Helper()
	stringType, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	require.NoError(t, err)
	selector := []byte{0x08, 0xc3, 0x79, 0xa0}
	return hexutil.Encode(append(selector, packed...))
}

func TestIsUserCancelled(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "code 4001", err: fakeRPCError{code: 4001, msg: "nope"}, want: true},
		{name: "user rejected", err: errors.New("User rejected the request."), want: true},
		{name: "user denied", err: errors.New("MetaMask Tx Signature: User denied transaction signature"), want: true},
		{name: "request rejected", err: errors.New("Request rejected by signer"), want: true},
		{name: "revert mentioning rejected", err: errors.New("execution reverted: Position rejected: debt outstanding"), want: false},
		{name: "revert data mentioning cancelled", err: fakeRPCError{code: 3, msg: "execution reverted", data: revertData(t, "Protection cancelled")}, want: false},
		{name: "bare cancelled", err: errors.New("order cancelled"), want: false},
		{name: "wrapped", err: fmt.Errorf("submit: %w", fakeRPCError{code: 4001}), want: true},
		{name: "other rpc code", err: fakeRPCError{code: -32000, msg: "nonce too low"}, want: false},
		{name: "network", err: errors.New("connection refused"), want: false},
		{name: "nil", err: nil, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsUserCancelled(tc.err))
		})
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantKind Kind
		wantMsg  string
	}{
		{
			name:     "revert with data",
			err:      fakeRPCError{code: 3, msg: "execution reverted", data: revertData(t, "Cannot close with outstanding debt")},
			wantKind: KindContractRejected,
			wantMsg:  "Outstanding debt must be fully repaid before closing. Reduce the position first.",
		},
		{
			name:     "revert in message",
			err:      errors.New("execution reverted: Repay amount exceeds debt"),
			wantKind: KindContractRejected,
			wantMsg:  "Repay amount exceeds the outstanding debt.",
		},
		{
			name:     "oracle revert",
			err:      errors.New("execution reverted: Stale price"),
			wantKind: KindStaleOracle,
		},
		{
			name:     "unknown revert",
			err:      errors.New("execution reverted: weird"),
			wantKind: KindContractRejected,
			wantMsg:  "Transaction was rejected by the contract: weird",
		},
		{
			name:     "revert reason mentioning rejected",
			err:      errors.New("execution reverted: Position rejected: debt outstanding"),
			wantKind: KindContractRejected,
			wantMsg:  "Outstanding debt must be fully repaid before closing. Reduce the position first.",
		},
		{name: "cancel", err: fakeRPCError{code: 4001}, wantKind: KindUserCancelled},
		{name: "deadline", err: context.DeadlineExceeded, wantKind: KindTimeout},
		{name: "context canceled", err: context.Canceled, wantKind: KindUnavailable},
		{name: "transport", err: errors.New("dial tcp: connection refused"), wantKind: KindUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify("op", tc.err)
			require.Error(t, got)
			assert.Equal(t, tc.wantKind, KindOf(got))

			var le *Error
			require.True(t, errors.As(got, &le))
			if tc.wantMsg != "" {
				assert.Equal(t, tc.wantMsg, le.Message)
			}
			assert.True(t, errors.Is(got, tc.err), "original error must stay in the chain")
		})
	}
	assert.Nil(t, Classify("op", nil))
}

func TestErrorSentinels(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewError(KindTimeout, "await", "not confirmed", nil))
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.False(t, errors.Is(err, ErrUserCancelled))
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestGetRevertMsg(t *testing.T) {
	assert.Equal(t, "Transaction was rejected by the contract.", GetRevertMsg(""))
	assert.Equal(t, "Stablecoin allowance is too low. Approve the router and retry.", GetRevertMsg("ERC20: insufficient allowance"))
	assert.Equal(t, "Insufficient stablecoin balance.", GetRevertMsg("ERC20: transfer amount exceeds balance"))
}

package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// Kind classifies ledger failures for the callers that must react differently to them.
type Kind string

const (
	KindUserCancelled    Kind = "user_cancelled"
	KindConfiguration    Kind = "configuration"
	KindStaleOracle      Kind = "stale_or_invalid_oracle"
	KindPrecision        Kind = "precision_mismatch"
	KindTimeout          Kind = "timeout"
	KindContractRejected Kind = "contract_rejected"
	KindUnavailable      Kind = "unavailable"
)

// Error is the error type returned by every ledger operation.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func NewError(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil && (e.Message == "" || e.Kind != KindContractRejected) {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, &Error{Kind: k}) match on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels usable with errors.Is.
var (
	ErrUserCancelled    = &Error{Kind: KindUserCancelled}
	ErrConfiguration    = &Error{Kind: KindConfiguration}
	ErrStaleOracle      = &Error{Kind: KindStaleOracle}
	ErrPrecision        = &Error{Kind: KindPrecision}
	ErrTimeout          = &Error{Kind: KindTimeout}
	ErrContractRejected = &Error{Kind: KindContractRejected}
)

// KindOf returns the kind carried by err, classifying raw errors on the fly.
// It returns "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return classifyKind(err)
}

// userCancelCode is the EIP-1193 code for a wallet rejecting a request.
const userCancelCode = 4001

var cancelPatterns = []string{"user rejected", "user denied", "request rejected"}

// IsUserCancelled reports whether err is a signer/wallet rejection.
// A contract revert is never a cancellation, whatever its reason says.
func IsUserCancelled(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || isRevert(err) {
		return false
	}
	var le *Error
	if errors.As(err, &le) {
		return le.Kind == KindUserCancelled
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == userCancelCode {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range cancelPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func classifyKind(err error) Kind {
	switch {
	case isRevert(err):
		return KindContractRejected
	case IsUserCancelled(err):
		return KindUserCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return KindUnavailable
	}
}

// Classify wraps a raw client error into an *Error for op. Reverts are
// translated to actionable messages.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	kind := classifyKind(err)
	e := NewError(kind, op, "", err)
	switch kind {
	case KindContractRejected:
		reason := revertReason(err)
		e.Message = GetRevertMsg(reason)
		if oracleRevert(reason) {
			e.Kind = KindStaleOracle
		}
	case KindUserCancelled:
		e.Message = "request cancelled in wallet"
	}
	return e
}

func isRevert(err error) bool {
	return revertReason(err) != "" || strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}

// revertReason extracts the Error(string) reason from a JSON-RPC error, if any.
func revertReason(err error) string {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if s, ok := dataErr.ErrorData().(string); ok {
			if raw, decErr := hexutil.Decode(s); decErr == nil {
				if reason, unpackErr := abi.UnpackRevert(raw); unpackErr == nil {
					return reason
				}
			}
		}
	}
	msg := err.Error()
	const marker = "execution reverted: "
	if i := strings.Index(msg, marker); i >= 0 {
		return strings.TrimSpace(msg[i+len(marker):])
	}
	return ""
}

type revertRule struct {
	fragment string
	message  string
}

// RevertMessages maps revert reason fragments (matched case-insensitively, in order)
// to messages naming the blocking condition.
var RevertMessages = []revertRule{
	{"exceeds debt", "Repay amount exceeds the outstanding debt."},
	{"debt", "Outstanding debt must be fully repaid before closing. Reduce the position first."},
	{"already has", "An active protection position already exists for this account."},
	{"already active", "An active protection position already exists for this account."},
	{"no position", "No active protection position found for this account."},
	{"not active", "The protection position is no longer active."},
	{"insufficient allowance", "Stablecoin allowance is too low. Approve the router and retry."},
	{"exceeds allowance", "Stablecoin allowance is too low. Approve the router and retry."},
	{"exceeds balance", "Insufficient stablecoin balance."},
	{"insufficient collateral", "Collateral is below the protocol minimum."},
	{"insufficient liquidity", "The funding pool does not have enough available funds."},
	{"stale", "Oracle price is stale. Wait for the next price update and retry."},
	{"oracle", "Oracle price is invalid. Wait for the next price update and retry."},
	{"minimum", "Amount is below the minimum deposit."},
	{"lock", "Liquidity is still inside its lock period."},
	{"not the owner", "The signer is not authorized for this operation."},
	{"unauthorized", "The signer is not authorized for this operation."},
	{"invalid currency", "Unsupported target currency."},
	{"invalid level", "Unsupported protection level."},
}

// GetRevertMsg returns the actionable message for a revert reason.
// Unknown reasons are returned verbatim behind a generic prefix.
func GetRevertMsg(reason string) string {
	lower := strings.ToLower(reason)
	for _, rule := range RevertMessages {
		if lower != "" && strings.Contains(lower, rule.fragment) {
			return rule.message
		}
	}
	if reason == "" {
		return "Transaction was rejected by the contract."
	}
	return fmt.Sprintf("Transaction was rejected by the contract: %s", reason)
}

func oracleRevert(reason string) bool {
	lower := strings.ToLower(reason)
	return strings.Contains(lower, "stale") || strings.Contains(lower, "oracle")
}

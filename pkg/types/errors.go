package types

import (
	"errors"
	"fmt"
)

// Ledger errors are typed, synchronous and terminal for the current call.
// Retry policy, if any, belongs to the caller.
var (
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrZeroAmount               = errors.New("zero amount")
	ErrInsufficientBalance      = errors.New("insufficient balance")
	ErrInsufficientAllowance    = errors.New("insufficient allowance")
	ErrInvalidRewardRate        = errors.New("invalid reward rate")
	ErrInvalidVestingParameters = errors.New("invalid vesting parameters")
	ErrVestingNotFound          = errors.New("vesting schedule not found")
	ErrVestingAlreadyRevoked    = errors.New("vesting schedule already revoked")
	ErrNothingToClaim           = errors.New("nothing to claim")
	ErrTransferFailed           = errors.New("transfer failed")
	ErrNotAuthorized            = errors.New("not authorized")
	ErrReentrantCall            = errors.New("reentrant ledger call")
)

// TokensLockedError reports a withdrawal attempted before the lock expired.
// The caller may retry once Until has passed.
type TokensLockedError struct {
	Until uint64
}

func (e *TokensLockedError) Error() string {
	return fmt.Sprintf("tokens locked until %d", e.Until)
}

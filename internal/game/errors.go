package game

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrDuplicateBet           = errors.New("bet already exists in round")
	ErrBetNotFound            = errors.New("bet not found")
	ErrPastCrashPoint         = errors.New("cashout multiplier is at or past the crash point")
	ErrNotRevealed            = errors.New("round has not crashed yet")
	ErrAlreadyRunning         = errors.New("round loop already running")
	ErrInvalidConfig          = errors.New("invalid game config")
)

// StateTransitionError reports an operation attempted in the wrong state.
type StateTransitionError struct {
	Entity string
	Op     string
	From   string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s while %s", e.Entity, e.Op, e.From)
}

func (e *StateTransitionError) Unwrap() error {
	return ErrInvalidStateTransition
}

// Reason is the code reported to a player whose command failed.
type Reason string

const (
	ReasonBelowMinBet        Reason = "BELOW_MIN_BET"
	ReasonAboveMaxBet        Reason = "ABOVE_MAX_BET"
	ReasonInvalidAutoCashout Reason = "INVALID_AUTOCASHOUT"
	ReasonInsufficientFunds  Reason = "INSUFFICIENT_FUNDS"
	ReasonPlayerBlocked      Reason = "PLAYER_BLOCKED"
	ReasonWalletTimeout      Reason = "WALLET_TIMEOUT"
	ReasonRoundNotBetting    Reason = "ROUND_NOT_BETTING"
	ReasonDuplicateBet       Reason = "DUPLICATE_BET"

	ReasonCompensationFailed Reason = "COMPENSATION_FAILED"
)

package game

import (
	"fmt"
	"time"

	"crashgame/internal/money"
)

type RoundStatus string

const (
	RoundWaiting RoundStatus = "WAITING"
	RoundBetting RoundStatus = "BETTING"
	RoundRunning RoundStatus = "RUNNING"
	RoundCrashed RoundStatus = "CRASHED"
)

// Seeds is the provably-fair material a round was derived from.
type Seeds struct {
	ServerSeed string
	HashedSeed string
	ClientSeed string
	Nonce      uint64
}

// Round is the state machine of a single round:
// WAITING → BETTING → RUNNING → CRASHED. The crash point is fixed at
// construction and only Tick decides that the round crashed.
type Round struct {
	ID        string
	CreatedAt time.Time
	StartedAt time.Time
	CrashedAt time.Time

	status     RoundStatus
	crashPoint float64
	seeds      Seeds
	multiplier float64
	ledger     *BetLedger
}

func NewRound(id string, crashPoint float64, seeds Seeds, ledger *BetLedger) *Round {
	if ledger == nil {
		ledger = NewBetLedger()
	}
	return &Round{
		ID:         id,
		CreatedAt:  time.Now(),
		status:     RoundWaiting,
		crashPoint: crashPoint,
		seeds:      seeds,
		multiplier: 1.0,
		ledger:     ledger,
	}
}

func (r *Round) Status() RoundStatus   { return r.status }
func (r *Round) Multiplier() float64   { return r.multiplier }
func (r *Round) HashedSeed() string    { return r.seeds.HashedSeed }
func (r *Round) Ledger() *BetLedger    { return r.ledger }
func (r *Round) ActiveBets() int       { return r.ledger.ActiveCount(r.ID) }
func (r *Round) Bets() []*Bet          { return r.ledger.ByRound(r.ID) }
func (r *Round) IsAcceptingBets() bool { return r.status == RoundBetting }

// Reveal returns the crash point and seed material once the round crashed.
func (r *Round) Reveal() (float64, Seeds, error) {
	if r.status != RoundCrashed {
		return 0, Seeds{}, ErrNotRevealed
	}
	return r.crashPoint, r.seeds, nil
}

func (r *Round) OpenBetting() error {
	if r.status != RoundWaiting {
		return r.transitionError("open betting")
	}
	r.status = RoundBetting
	return nil
}

func (r *Round) Start() error {
	if r.status != RoundBetting {
		return r.transitionError("start")
	}
	r.status = RoundRunning
	r.StartedAt = time.Now()
	return nil
}

// AddBet activates bet and indexes it. Only allowed while BETTING.
func (r *Round) AddBet(bet *Bet) error {
	if r.status != RoundBetting {
		return r.transitionError("add bet")
	}
	if _, ok := r.ledger.Get(bet.ID); ok {
		return fmt.Errorf("%w: %s", ErrDuplicateBet, bet.ID)
	}
	if bet.RoundID != r.ID {
		return fmt.Errorf("bet %s belongs to round %s, not %s", bet.ID, bet.RoundID, r.ID)
	}
	if err := bet.Activate(); err != nil {
		return err
	}
	r.ledger.Add(bet)
	return nil
}

// Tick advances the multiplier. Reaching the crash point moves the round to
// CRASHED and settles every remaining ACTIVE bet as LOST before returning,
// so no ACTIVE bet ever coexists with a multiplier past the crash point.
func (r *Round) Tick(multiplier float64) (bool, error) {
	if r.status != RoundRunning {
		return false, r.transitionError("tick")
	}

	if multiplier < r.crashPoint {
		r.multiplier = multiplier
		return false, nil
	}

	r.multiplier = r.crashPoint
	r.status = RoundCrashed
	r.CrashedAt = time.Now()
	r.ledger.ForEachActive(r.ID, func(b *Bet) {
		// ForEachActive only yields ACTIVE bets, so Lose cannot fail.
		_ = b.Lose()
		r.ledger.Refresh(b)
	})
	return true, nil
}

// Cashout settles betID at the current multiplier.
func (r *Round) Cashout(betID string) (*Bet, money.Money, error) {
	return r.cashoutAt(betID, r.multiplier)
}

// AutoCashout settles betID at its own threshold. The threshold has to be
// below the crash point: a tick that jumps over both leaves the bet ACTIVE
// for Tick to settle.
func (r *Round) AutoCashout(betID string, at float64) (*Bet, money.Money, error) {
	return r.cashoutAt(betID, at)
}

func (r *Round) cashoutAt(betID string, multiplier float64) (*Bet, money.Money, error) {
	if r.status != RoundRunning {
		return nil, money.Money{}, r.transitionError("cash out")
	}
	bet, ok := r.ledger.Get(betID)
	if !ok || bet.RoundID != r.ID {
		return nil, money.Money{}, fmt.Errorf("%w: %s", ErrBetNotFound, betID)
	}
	if multiplier >= r.crashPoint {
		return nil, money.Money{}, ErrPastCrashPoint
	}
	payout, err := bet.Cashout(multiplier)
	if err != nil {
		return nil, money.Money{}, err
	}
	r.ledger.Refresh(bet)
	return bet, payout, nil
}

func (r *Round) transitionError(op string) error {
	return &StateTransitionError{Entity: "round " + r.ID, Op: op, From: string(r.status)}
}

package game

import (
	"time"

	"crashgame/internal/money"
)

type BetStatus string

const (
	BetPending BetStatus = "PENDING"
	BetActive  BetStatus = "ACTIVE"
	BetWon     BetStatus = "WON"
	BetLost    BetStatus = "LOST"
)

// Bet is one wager. Status only moves PENDING → ACTIVE → WON|LOST.
type Bet struct {
	ID                    string
	PlayerID              string
	RoundID               string
	Amount                money.Money
	AutoCashoutMultiplier float64 // 0 when unset
	IdempotencyKey        string
	PlacedAt              time.Time

	status            BetStatus
	cashoutMultiplier float64
	payout            money.Money
}

func NewBet(id, playerID, roundID string, amount money.Money, autoCashout float64, idempotencyKey string) *Bet {
	return &Bet{
		ID:                    id,
		PlayerID:              playerID,
		RoundID:               roundID,
		Amount:                amount,
		AutoCashoutMultiplier: autoCashout,
		IdempotencyKey:        idempotencyKey,
		PlacedAt:              time.Now(),
		status:                BetPending,
	}
}

func (b *Bet) Status() BetStatus          { return b.status }
func (b *Bet) CashoutMultiplier() float64 { return b.cashoutMultiplier }
func (b *Bet) Payout() money.Money        { return b.payout }
func (b *Bet) HasAutoCashout() bool       { return b.AutoCashoutMultiplier > 0 }
func (b *Bet) IsActive() bool             { return b.status == BetActive }
func (b *Bet) IsSettled() bool            { return b.status == BetWon || b.status == BetLost }

func (b *Bet) Activate() error {
	if b.status != BetPending {
		return b.transitionError("activate")
	}
	b.status = BetActive
	return nil
}

// Cashout settles the bet as won at multiplier and returns the payout.
func (b *Bet) Cashout(multiplier float64) (money.Money, error) {
	if b.status != BetActive {
		return money.Money{}, b.transitionError("cash out")
	}
	b.status = BetWon
	b.cashoutMultiplier = multiplier
	b.payout = b.Amount.MultiplyByMultiplier(multiplier)
	return b.payout, nil
}

func (b *Bet) Lose() error {
	if b.status != BetActive {
		return b.transitionError("lose")
	}
	b.status = BetLost
	return nil
}

func (b *Bet) transitionError(op string) error {
	return &StateTransitionError{Entity: "bet " + b.ID, Op: op, From: string(b.status)}
}

package ports

import (
	"context"
	"time"

	"crashgame/internal/events"
	"crashgame/internal/money"
)

type WalletError string

const (
	WalletInsufficientFunds WalletError = "INSUFFICIENT_FUNDS"
	WalletPlayerBlocked     WalletError = "PLAYER_BLOCKED"
	WalletTimeout           WalletError = "TIMEOUT"
)

type WalletRequest struct {
	PlayerID       string
	Amount         money.Money
	RoundID        string
	BetID          string
	IdempotencyKey string
}

type WalletResult struct {
	Success       bool
	TransactionID string
	NewBalance    money.Money
	Error         WalletError
}

// WalletGateway is the operator's wallet. It is the balance authority; the
// game never caches balances. A returned error is treated like TIMEOUT.
type WalletGateway interface {
	Debit(ctx context.Context, req WalletRequest) (WalletResult, error)
	Credit(ctx context.Context, req WalletRequest) (WalletResult, error)
	GetBalance(ctx context.Context, playerID string) (money.Money, error)
}

// EventPublisher delivers outbound events. Returned errors are handled by
// the caller and never propagate into the round loop.
type EventPublisher interface {
	RoundNew(ctx context.Context, ev events.RoundNew) error
	RoundBetting(ctx context.Context, ev events.RoundBetting) error
	RoundStarted(ctx context.Context, ev events.RoundStarted) error
	BetPlaced(ctx context.Context, ev events.Bet) error
	BetRejected(ctx context.Context, ev events.BetRejected) error
	CreditFailed(ctx context.Context, ev events.CreditFailed) error
	PublishBatch(ctx context.Context, batch []events.TickEvent) error
}

type PlaceBetCommand struct {
	PlayerID              string  `json:"playerId"`
	AmountCents           int64   `json:"amountCents"`
	AutoCashoutMultiplier float64 `json:"autoCashoutMultiplier,omitempty"`
	IdempotencyKey        string  `json:"idempotencyKey,omitempty"`
}

type CashoutCommand struct {
	PlayerID string `json:"playerId"`
	BetID    string `json:"betId"`
	RoundID  string `json:"roundId"`
}

// EventSubscriber delivers inbound player commands.
type EventSubscriber interface {
	OnPlaceBet(handler func(PlaceBetCommand))
	OnCashout(handler func(CashoutCommand))
	Close() error
}

// TickScheduler invokes cb periodically with the time elapsed since Start.
type TickScheduler interface {
	Start(cb func(elapsed time.Duration)) error
	Stop()
}

type TimerID string

// Timer runs one-shot callbacks.
type Timer interface {
	Schedule(delay time.Duration, fn func()) (TimerID, error)
	ScheduleImmediate(fn func()) (TimerID, error)
	Clear(id TimerID)
}

type ClientSeedProvider interface {
	Next() (string, error)
}

// FailedEventStore keeps events whose delivery failed for later replay.
type FailedEventStore interface {
	AddBatch(ctx context.Context, batch []events.Message) error
}

// RoundRecord is the audit trail of a settled round.
type RoundRecord struct {
	RoundID      string
	HashedSeed   string
	ServerSeed   string
	ClientSeed   string
	Nonce        uint64
	CrashPoint   float64
	BetCount     int
	WonCount     int
	WageredCents int64
	PaidCents    int64
	StartedAt    time.Time
	CrashedAt    time.Time
}

type RoundArchive interface {
	SaveRound(ctx context.Context, rec RoundRecord) error
}

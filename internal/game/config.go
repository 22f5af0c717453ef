package game

import (
	"fmt"
	"math"
	"time"

	"crashgame/internal/events"
	"crashgame/internal/fairness"
)

const (
	TICK_INTERVAL     = 100 * time.Millisecond
	BETTING_TIME      = 5 * time.Second
	INTER_ROUND_DELAY = 3 * time.Second
	WALLET_TIMEOUT    = 2 * time.Second

	MIN_BET_CENTS = 100
	MAX_BET_CENTS = 1000000
	HOUSE_EDGE    = 1.0 // percent
)

// Config holds the round loop parameters.
type Config struct {
	HouseEdgePercent   float64
	MinBetCents        int64
	MaxBetCents        int64
	BettingWindow      time.Duration
	TickInterval       time.Duration
	GrowthRate         float64
	EventHighWaterMark int
	InterRoundDelay    time.Duration
	WalletTimeout      time.Duration
}

func DefaultConfig() Config {
	return Config{
		HouseEdgePercent:   HOUSE_EDGE,
		MinBetCents:        MIN_BET_CENTS,
		MaxBetCents:        MAX_BET_CENTS,
		BettingWindow:      BETTING_TIME,
		TickInterval:       TICK_INTERVAL,
		GrowthRate:         DefaultGrowthRate,
		EventHighWaterMark: events.DefaultHighWaterMark,
		InterRoundDelay:    INTER_ROUND_DELAY,
		WalletTimeout:      WALLET_TIMEOUT,
	}
}

// withDefaults fills the optional fields left at zero.
func (c Config) withDefaults() Config {
	if c.GrowthRate == 0 {
		c.GrowthRate = DefaultGrowthRate
	}
	if c.EventHighWaterMark == 0 {
		c.EventHighWaterMark = events.DefaultHighWaterMark
	}
	if c.InterRoundDelay == 0 {
		c.InterRoundDelay = INTER_ROUND_DELAY
	}
	if c.WalletTimeout == 0 {
		c.WalletTimeout = WALLET_TIMEOUT
	}
	return c
}

func (c Config) Validate() error {
	if math.IsNaN(c.HouseEdgePercent) || c.HouseEdgePercent < 0 || c.HouseEdgePercent > 100 {
		return fmt.Errorf("%w: house edge %v must be within [0, 100]", ErrInvalidConfig, c.HouseEdgePercent)
	}
	if c.MinBetCents <= 0 || c.MaxBetCents <= 0 {
		return fmt.Errorf("%w: bet limits must be positive", ErrInvalidConfig)
	}
	if c.MinBetCents >= c.MaxBetCents {
		return fmt.Errorf("%w: min bet %d must be below max bet %d", ErrInvalidConfig, c.MinBetCents, c.MaxBetCents)
	}
	if c.BettingWindow <= 0 {
		return fmt.Errorf("%w: betting window must be positive", ErrInvalidConfig)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("%w: tick interval must be positive", ErrInvalidConfig)
	}
	if c.GrowthRate < 0 || math.IsNaN(c.GrowthRate) || math.IsInf(c.GrowthRate, 0) {
		return fmt.Errorf("%w: growth rate must be positive", ErrInvalidConfig)
	}
	if c.EventHighWaterMark < 0 {
		return fmt.Errorf("%w: event high-water mark must not be negative", ErrInvalidConfig)
	}
	return nil
}

// validAutoCashout reports whether m can ever trigger: it has to be above
// 1.00 and reachable.
func validAutoCashout(m float64) bool {
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return false
	}
	return m > fairness.MIN_CRASH_POINT && m <= fairness.MAX_CRASH_POINT
}

package game

import (
	"math"
	"time"
)

// DefaultGrowthRate doubles the multiplier roughly every 11.5 seconds.
const DefaultGrowthRate = 0.00006

// MultiplierAt returns e^(growthRate * elapsedMs) floored to two decimals.
func MultiplierAt(elapsed time.Duration, growthRate float64) float64 {
	ms := float64(elapsed.Milliseconds())
	if ms <= 0 {
		return 1.0
	}
	m := math.Floor(math.Exp(growthRate*ms)*100) / 100
	if m < 1.0 {
		return 1.0
	}
	return m
}

package fairness

import (
	"errors"
	"fmt"
)

var (
	ErrChainExhausted   = errors.New("seed chain exhausted")
	ErrInvalidChainSize = errors.New("seed chain length must be positive")
	ErrEmptyTerminal    = errors.New("terminal seed must not be empty")
)

// SeedChain is a reverse hash chain: seeds[i] = H(seeds[i+1]). Seeds are
// revealed from index 0 upward, so every revealed seed hashes to the one
// revealed before it and nothing later can be picked after the fact.
type SeedChain struct {
	seeds []string
	next  int
}

// NewSeedChain hashes the terminal seed length-1 times, storing the chain
// in reveal order.
func NewSeedChain(terminal string, length int) (*SeedChain, error) {
	if terminal == "" {
		return nil, ErrEmptyTerminal
	}
	if length <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChainSize, length)
	}

	seeds := make([]string, length)
	seeds[length-1] = terminal
	for i := length - 2; i >= 0; i-- {
		seeds[i] = HashServerSeed(seeds[i+1])
	}

	return &SeedChain{seeds: seeds}, nil
}

// Next returns the next seed in reveal order.
func (c *SeedChain) Next() (string, error) {
	if c.next >= len(c.seeds) {
		return "", ErrChainExhausted
	}
	seed := c.seeds[c.next]
	c.next++
	return seed, nil
}

// Anchor is the hash of the first seed. Publishing it before the first
// round commits the operator to the whole chain.
func (c *SeedChain) Anchor() string {
	return HashServerSeed(c.seeds[0])
}

func (c *SeedChain) Remaining() int {
	return len(c.seeds) - c.next
}

func (c *SeedChain) Len() int {
	return len(c.seeds)
}

// Verify reports whether child is the preimage of parentHash.
func Verify(childSeed, parentHash string) bool {
	return HashServerSeed(childSeed) == parentHash
}

package fairness

import (
	"errors"
	"testing"
)

func TestNewSeedChain_Validation(t *testing.T) {
	if _, err := NewSeedChain("", 10); !errors.Is(err, ErrEmptyTerminal) {
		t.Errorf("NewSeedChain(\"\") error = %v, want ErrEmptyTerminal", err)
	}
	if _, err := NewSeedChain("terminal", 0); !errors.Is(err, ErrInvalidChainSize) {
		t.Errorf("NewSeedChain(0) error = %v, want ErrInvalidChainSize", err)
	}
}

func TestSeedChain_ForwardRevealVerifiesBackward(t *testing.T) {
	chain, err := NewSeedChain("terminal-seed", 5)
	if err != nil {
		t.Fatalf("NewSeedChain() error = %v", err)
	}

	first, err := chain.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if !Verify(first, chain.Anchor()) {
		t.Error("first seed does not verify against the anchor")
	}

	prev := first
	for i := 1; i < 5; i++ {
		seed, err := chain.Next()
		if err != nil {
			t.Fatalf("Next() #%d error = %v", i, err)
		}
		if !Verify(seed, prev) {
			t.Errorf("seed #%d does not hash to seed #%d", i, i-1)
		}
		prev = seed
	}

	if prev != "terminal-seed" {
		t.Errorf("last revealed seed = %q, want the terminal seed", prev)
	}
	if chain.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", chain.Remaining())
	}
	if _, err := chain.Next(); !errors.Is(err, ErrChainExhausted) {
		t.Errorf("Next() after exhaustion error = %v, want ErrChainExhausted", err)
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name       string
		child      string
		parentHash string
		want       bool
	}{
		{name: "Preimage", child: "seed", parentHash: HashServerSeed("seed"), want: true},
		{name: "Wrong child", child: "other", parentHash: HashServerSeed("seed"), want: false},
		{name: "Child equals parent", child: "seed", parentHash: "seed", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Verify(tt.child, tt.parentHash); got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClientSeedProviders(t *testing.T) {
	static := StaticClientSeed("block-hash")
	got, err := static.Next()
	if err != nil || got != "block-hash" {
		t.Errorf("StaticClientSeed.Next() = %q, %v", got, err)
	}

	random := RandomClientSeed{}
	a, _ := random.Next()
	b, _ := random.Next()
	if a == b {
		t.Error("RandomClientSeed.Next() repeated a seed")
	}
}

func BenchmarkNewSeedChain(b *testing.B) {
	for i := 0; i < b.N; i++ {
		NewSeedChain("benchmark-terminal", 1000)
	}
}

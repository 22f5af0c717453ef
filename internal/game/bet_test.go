package game

import (
	"errors"
	"testing"

	"crashgame/internal/money"
)

func newTestBet(id, roundID string, cents int64) *Bet {
	return NewBet(id, "player-"+id, roundID, money.MustFromCents(cents), 0, "")
}

func TestBet_Lifecycle(t *testing.T) {
	t.Run("pending bet activates", func(t *testing.T) {
		bet := newTestBet("b1", "r1", 1000)
		if bet.Status() != BetPending {
			t.Fatalf("new bet status = %s, want PENDING", bet.Status())
		}
		if err := bet.Activate(); err != nil {
			t.Fatalf("Activate() error = %v", err)
		}
		if !bet.IsActive() {
			t.Error("bet should be active")
		}
	})

	t.Run("cashout floors the payout", func(t *testing.T) {
		bet := newTestBet("b2", "r1", 333)
		_ = bet.Activate()

		payout, err := bet.Cashout(2.5)
		if err != nil {
			t.Fatalf("Cashout() error = %v", err)
		}
		if payout.Cents() != 832 {
			t.Errorf("payout = %d, want 832", payout.Cents())
		}
		if bet.Status() != BetWon || bet.CashoutMultiplier() != 2.5 || bet.Payout().Cents() != 832 {
			t.Errorf("bet not settled as won: %s %.2f %d", bet.Status(), bet.CashoutMultiplier(), bet.Payout().Cents())
		}
	})

	t.Run("lose settles without payout", func(t *testing.T) {
		bet := newTestBet("b3", "r1", 1000)
		_ = bet.Activate()

		if err := bet.Lose(); err != nil {
			t.Fatalf("Lose() error = %v", err)
		}
		if bet.Status() != BetLost || !bet.Payout().IsZero() {
			t.Errorf("bet = %s payout %d, want LOST with no payout", bet.Status(), bet.Payout().Cents())
		}
		if !bet.IsSettled() {
			t.Error("lost bet should be settled")
		}
	})
}

func TestBet_InvalidTransitions(t *testing.T) {
	won := newTestBet("won", "r1", 100)
	_ = won.Activate()
	_, _ = won.Cashout(1.5)

	lost := newTestBet("lost", "r1", 100)
	_ = lost.Activate()
	_ = lost.Lose()

	tests := []struct {
		name string
		op   func() error
	}{
		{"activate twice", func() error {
			b := newTestBet("x", "r1", 100)
			_ = b.Activate()
			return b.Activate()
		}},
		{"cashout pending", func() error {
			_, err := newTestBet("x", "r1", 100).Cashout(2)
			return err
		}},
		{"lose pending", func() error { return newTestBet("x", "r1", 100).Lose() }},
		{"cashout won", func() error { _, err := won.Cashout(2); return err }},
		{"lose won", func() error { return won.Lose() }},
		{"cashout lost", func() error { _, err := lost.Cashout(2); return err }},
		{"activate lost", func() error { return lost.Activate() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op()
			if !errors.Is(err, ErrInvalidStateTransition) {
				t.Errorf("error = %v, want ErrInvalidStateTransition", err)
			}
		})
	}

	if won.Payout().Cents() != 150 {
		t.Errorf("won bet payout changed to %d", won.Payout().Cents())
	}
}

func TestBet_HasAutoCashout(t *testing.T) {
	if newTestBet("b", "r1", 100).HasAutoCashout() {
		t.Error("bet without threshold reports auto-cashout")
	}
	bet := NewBet("b", "p", "r1", money.MustFromCents(100), 1.5, "")
	if !bet.HasAutoCashout() {
		t.Error("bet with threshold should report auto-cashout")
	}
}

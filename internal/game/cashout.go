package game

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"crashgame/internal/money"
	"crashgame/internal/ports"
)

// Settlement is a bet settled as WON that still has to be credited.
type Settlement struct {
	Bet        *Bet
	Multiplier float64
	Payout     money.Money
}

// CreditError reports a wallet credit that failed after the bet was WON.
// The win stands; the credit needs reconciliation.
type CreditError struct {
	Reason string
	Err    error
}

func (e *CreditError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("credit failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("credit failed (%s)", e.Reason)
}

func (e *CreditError) Unwrap() error {
	return e.Err
}

// CashoutFlow settles a bet in memory and then pays it out. Settling is
// synchronous and happens inside the tick; the credit is wallet I/O and runs
// after the tick has released the round.
type CashoutFlow struct {
	wallet ports.WalletGateway
	cfg    Config
}

func NewCashoutFlow(wallet ports.WalletGateway, cfg Config) *CashoutFlow {
	return &CashoutFlow{wallet: wallet, cfg: cfg.withDefaults()}
}

// Settle cashes betID out at the round's current multiplier.
func (f *CashoutFlow) Settle(round *Round, betID string) (Settlement, error) {
	bet, payout, err := round.Cashout(betID)
	if err != nil {
		return Settlement{}, err
	}
	return Settlement{Bet: bet, Multiplier: bet.CashoutMultiplier(), Payout: payout}, nil
}

// SettleAuto cashes bet out at its auto-cashout threshold.
func (f *CashoutFlow) SettleAuto(round *Round, bet *Bet) (Settlement, error) {
	settled, payout, err := round.AutoCashout(bet.ID, bet.AutoCashoutMultiplier)
	if err != nil {
		return Settlement{}, err
	}
	return Settlement{Bet: settled, Multiplier: settled.CashoutMultiplier(), Payout: payout}, nil
}

// Credit pays a settlement into the player's wallet. It is never rolled
// back: a failure returns *CreditError for reconciliation.
func (f *CashoutFlow) Credit(ctx context.Context, s Settlement) error {
	if s.Payout.IsZero() {
		return nil
	}

	creditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.cfg.WalletTimeout)
	defer cancel()

	res, err := f.wallet.Credit(creditCtx, ports.WalletRequest{
		PlayerID:       s.Bet.PlayerID,
		Amount:         s.Payout,
		RoundID:        s.Bet.RoundID,
		BetID:          s.Bet.ID,
		IdempotencyKey: "payout:" + s.Bet.ID,
	})
	if err != nil {
		return &CreditError{Reason: string(ports.WalletTimeout), Err: err}
	}
	if !res.Success {
		reason := string(res.Error)
		if reason == "" {
			reason = string(ports.WalletTimeout)
		}
		return &CreditError{Reason: reason}
	}

	log.WithFields(log.Fields{
		"component":      "cashout",
		"bet_id":         s.Bet.ID,
		"player_id":      s.Bet.PlayerID,
		"payout_cents":   s.Payout.Cents(),
		"transaction_id": res.TransactionID,
	}).Debug("payout credited")
	return nil
}

// Execute settles and credits in one call. A credit failure is returned
// together with the settlement; the bet stays WON.
func (f *CashoutFlow) Execute(ctx context.Context, round *Round, betID string) (Settlement, error) {
	s, err := f.Settle(round, betID)
	if err != nil {
		return Settlement{}, err
	}
	return s, f.Credit(ctx, s)
}

// creditReason extracts the reconciliation reason from a Credit error.
func creditReason(err error) string {
	var ce *CreditError
	if errors.As(err, &ce) {
		return ce.Reason
	}
	return string(ports.WalletTimeout)
}

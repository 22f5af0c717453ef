package game

import (
	"context"
	"errors"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"crashgame/internal/money"
	"crashgame/internal/ports"
)

// BetAdmitter accepts an activated bet into a round. *Round implements it;
// the round loop wraps it to hold its lock and check the round is still
// current.
type BetAdmitter interface {
	AddBet(bet *Bet) error
}

type PlaceBetResult struct {
	Bet           *Bet
	BetID         string
	Reason        Reason
	TransactionID string

	// CompensationFailed is set when the debit could not be refunded after
	// admission failed; the player needs a manual refund.
	CompensationFailed bool
}

func (r PlaceBetResult) OK() bool {
	return r.Reason == ""
}

// PlaceBetFlow validates a bet, debits the wallet and admits the bet into
// the round, refunding the debit if admission fails.
type PlaceBetFlow struct {
	wallet ports.WalletGateway
	cfg    Config
}

func NewPlaceBetFlow(wallet ports.WalletGateway, cfg Config) *PlaceBetFlow {
	return &PlaceBetFlow{wallet: wallet, cfg: cfg.withDefaults()}
}

// Validate checks a command without side effects.
func (f *PlaceBetFlow) Validate(cmd ports.PlaceBetCommand) Reason {
	if cmd.AmountCents < f.cfg.MinBetCents {
		return ReasonBelowMinBet
	}
	if cmd.AmountCents > f.cfg.MaxBetCents {
		return ReasonAboveMaxBet
	}
	if cmd.AutoCashoutMultiplier != 0 && !validAutoCashout(cmd.AutoCashoutMultiplier) {
		return ReasonInvalidAutoCashout
	}
	return ""
}

func (f *PlaceBetFlow) Execute(ctx context.Context, roundID string, admitter BetAdmitter, cmd ports.PlaceBetCommand) PlaceBetResult {
	if reason := f.Validate(cmd); reason != "" {
		return PlaceBetResult{Reason: reason}
	}

	amount, err := money.FromCents(cmd.AmountCents)
	if err != nil {
		return PlaceBetResult{Reason: ReasonBelowMinBet}
	}

	betID := uuid.NewString()
	req := ports.WalletRequest{
		PlayerID:       cmd.PlayerID,
		Amount:         amount,
		RoundID:        roundID,
		BetID:          betID,
		IdempotencyKey: debitKey(cmd, roundID, betID),
	}

	debitCtx, cancel := context.WithTimeout(ctx, f.cfg.WalletTimeout)
	res, err := f.wallet.Debit(debitCtx, req)
	cancel()
	if err != nil {
		log.WithFields(log.Fields{
			"component": "bet",
			"player_id": cmd.PlayerID,
			"round_id":  roundID,
		}).WithError(err).Warn("wallet debit failed")
		return PlaceBetResult{Reason: ReasonWalletTimeout}
	}
	if !res.Success {
		return PlaceBetResult{Reason: walletReason(res.Error)}
	}

	bet := NewBet(betID, cmd.PlayerID, roundID, amount, cmd.AutoCashoutMultiplier, cmd.IdempotencyKey)
	if err := admitter.AddBet(bet); err != nil {
		// The round left BETTING while the debit was in flight. Refund before
		// anything about this bet is announced.
		logger := log.WithFields(log.Fields{
			"component": "bet",
			"bet_id":    betID,
			"player_id": cmd.PlayerID,
			"round_id":  roundID,
		})
		logger.WithError(err).Info("bet admission failed, compensating debit")

		result := PlaceBetResult{BetID: betID, Reason: ReasonRoundNotBetting, TransactionID: res.TransactionID}
		if err := f.compensate(ctx, req); err != nil {
			logger.WithError(err).Error("compensating credit failed")
			result.CompensationFailed = true
		}
		return result
	}

	return PlaceBetResult{Bet: bet, BetID: betID, TransactionID: res.TransactionID}
}

func (f *PlaceBetFlow) compensate(ctx context.Context, req ports.WalletRequest) error {
	// Detached from ctx: the refund must be attempted even if the caller
	// is shutting down.
	creditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.cfg.WalletTimeout)
	defer cancel()

	req.IdempotencyKey = "refund:" + req.BetID
	res, err := f.wallet.Credit(creditCtx, req)
	if err != nil {
		return err
	}
	if !res.Success {
		return errors.New(string(res.Error))
	}
	return nil
}

// debitKey scopes a client key to its player and round, so a key reused in
// another round or by another player is a new debit. Without a client key
// every attempt is its own debit.
func debitKey(cmd ports.PlaceBetCommand, roundID, betID string) string {
	if cmd.IdempotencyKey == "" {
		return "debit:" + betID
	}
	return "debit:" + cmd.PlayerID + ":" + roundID + ":" + cmd.IdempotencyKey
}

func walletReason(e ports.WalletError) Reason {
	switch e {
	case ports.WalletInsufficientFunds:
		return ReasonInsufficientFunds
	case ports.WalletPlayerBlocked:
		return ReasonPlayerBlocked
	default:
		return ReasonWalletTimeout
	}
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"crashgame/internal/money"
	"crashgame/internal/ports"
)

const (
	REDIS_KEY_USER_BALANCE = "crash:balance:"
	REDIS_KEY_BLOCKED      = "crash:blocked:"
	REDIS_KEY_TRANSACTION  = "crash:tx:"

	transactionTTL = 24 * time.Hour
)

const (
	statusOK           = 1
	statusInsufficient = -1
	statusBlocked      = -2
)

// KEYS: balance, blocked flag, transaction (scoped to the player). ARGV:
// amount, transaction id, ttl seconds. Returns {status, balance,
// transaction id}. A repeated transaction key replays the first outcome
// without moving money.
var debitScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 1 then
	return {-2, tonumber(redis.call('GET', KEYS[1]) or '0'), ''}
end
local prev = redis.call('GET', KEYS[3])
if prev then
	return {1, tonumber(redis.call('GET', KEYS[1]) or '0'), prev}
end
local balance = tonumber(redis.call('GET', KEYS[1]) or '0')
local amount = tonumber(ARGV[1])
if balance < amount then
	return {-1, balance, ''}
end
local after = redis.call('DECRBY', KEYS[1], amount)
redis.call('SET', KEYS[3], ARGV[2], 'EX', ARGV[3])
return {1, after, ARGV[2]}
`)

// Credits ignore the blocked flag: winnings already owed are still paid.
var creditScript = redis.NewScript(`
local prev = redis.call('GET', KEYS[3])
if prev then
	return {1, tonumber(redis.call('GET', KEYS[1]) or '0'), prev}
end
local after = redis.call('INCRBY', KEYS[1], tonumber(ARGV[1]))
redis.call('SET', KEYS[3], ARGV[2], 'EX', ARGV[3])
return {1, after, ARGV[2]}
`)

// Wallet is a development wallet gateway keeping balances in Redis. It
// honours the same contract as an operator wallet: idempotent debits and
// credits, blocked players, and TIMEOUT when the deadline passes.
type Wallet struct {
	client *redis.Client
}

func NewWallet(client *redis.Client) *Wallet {
	return &Wallet{client: client}
}

func (w *Wallet) Debit(ctx context.Context, req ports.WalletRequest) (ports.WalletResult, error) {
	return w.run(ctx, debitScript, req, "debit:")
}

func (w *Wallet) Credit(ctx context.Context, req ports.WalletRequest) (ports.WalletResult, error) {
	return w.run(ctx, creditScript, req, "credit:")
}

func (w *Wallet) GetBalance(ctx context.Context, playerID string) (money.Money, error) {
	cents, err := w.client.Get(ctx, REDIS_KEY_USER_BALANCE+playerID).Int64()
	if errors.Is(err, redis.Nil) {
		return money.Zero(), nil
	}
	if err != nil {
		return money.Money{}, fmt.Errorf("failed to read balance: %w", err)
	}
	return money.FromCents(cents)
}

// SetBalance overwrites a player's balance.
func (w *Wallet) SetBalance(ctx context.Context, playerID string, amount money.Money) error {
	return w.client.Set(ctx, REDIS_KEY_USER_BALANCE+playerID, amount.Cents(), 0).Err()
}

func (w *Wallet) SetBlocked(ctx context.Context, playerID string, blocked bool) error {
	key := REDIS_KEY_BLOCKED + playerID
	if blocked {
		return w.client.Set(ctx, key, 1, 0).Err()
	}
	return w.client.Del(ctx, key).Err()
}

func (w *Wallet) run(ctx context.Context, script *redis.Script, req ports.WalletRequest, op string) (ports.WalletResult, error) {
	txKey := req.IdempotencyKey
	if txKey == "" {
		txKey = op + req.BetID
	}
	keys := []string{
		REDIS_KEY_USER_BALANCE + req.PlayerID,
		REDIS_KEY_BLOCKED + req.PlayerID,
		REDIS_KEY_TRANSACTION + req.PlayerID + ":" + txKey,
	}

	res, err := script.Run(ctx, w.client, keys, req.Amount.Cents(), uuid.NewString(), int(transactionTTL.Seconds())).Slice()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return ports.WalletResult{Success: false, Error: ports.WalletTimeout}, nil
		}
		return ports.WalletResult{}, fmt.Errorf("wallet %s failed: %w", op[:len(op)-1], err)
	}
	if len(res) != 3 {
		return ports.WalletResult{}, fmt.Errorf("unexpected wallet script reply: %v", res)
	}

	status, _ := res[0].(int64)
	balance, _ := res[1].(int64)
	txID, _ := res[2].(string)
	newBalance, _ := money.FromCents(balance)

	switch status {
	case statusOK:
		return ports.WalletResult{Success: true, TransactionID: txID, NewBalance: newBalance}, nil
	case statusInsufficient:
		return ports.WalletResult{Success: false, NewBalance: newBalance, Error: ports.WalletInsufficientFunds}, nil
	case statusBlocked:
		return ports.WalletResult{Success: false, Error: ports.WalletPlayerBlocked}, nil
	default:
		return ports.WalletResult{}, fmt.Errorf("unexpected wallet status %d", status)
	}
}

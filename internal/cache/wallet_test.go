package cache

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"crashgame/internal/events"
	"crashgame/internal/money"
	"crashgame/internal/ports"
)

var (
	redisOnce sync.Once
	redisAddr string
	redisErr  error
)

// startRedis shares one container across the package's integration tests.
func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if os.Getenv("SKIP_INTEGRATION") != "" {
		t.Skip("integration tests disabled")
	}

	redisOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "redis:7-alpine",
				ExposedPorts: []string{"6379/tcp"},
				WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
			},
			Started: true,
		})
		if err != nil {
			redisErr = err
			return
		}
		host, err := container.Host(ctx)
		if err != nil {
			redisErr = err
			return
		}
		port, err := container.MappedPort(ctx, "6379/tcp")
		if err != nil {
			redisErr = err
			return
		}
		redisAddr = host + ":" + port.Port()
	})
	if redisErr != nil {
		t.Skipf("redis container unavailable: %v", redisErr)
	}

	svc, err := New(Options{Addr: redisAddr})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = svc.GetClient().FlushDB(context.Background()).Err()
		_ = svc.Close()
	})
	return svc.GetClient()
}

func debitReq(player string, cents int64, key string) ports.WalletRequest {
	return ports.WalletRequest{
		PlayerID:       player,
		Amount:         money.MustFromCents(cents),
		RoundID:        "round-1",
		BetID:          key,
		IdempotencyKey: key,
	}
}

func TestWallet_Debit(t *testing.T) {
	client := startRedis(t)
	w := NewWallet(client)
	ctx := context.Background()

	require.NoError(t, w.SetBalance(ctx, "p1", money.MustFromCents(1000)))

	res, err := w.Debit(ctx, debitReq("p1", 400, "bet-1"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.TransactionID)
	assert.Equal(t, int64(600), res.NewBalance.Cents())

	again, err := w.Debit(ctx, debitReq("p1", 400, "bet-1"))
	require.NoError(t, err)
	assert.True(t, again.Success)
	assert.Equal(t, res.TransactionID, again.TransactionID, "replay returns the first transaction")
	assert.Equal(t, int64(600), again.NewBalance.Cents())

	short, err := w.Debit(ctx, debitReq("p1", 700, "bet-2"))
	require.NoError(t, err)
	assert.False(t, short.Success)
	assert.Equal(t, ports.WalletInsufficientFunds, short.Error)

	balance, err := w.GetBalance(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(600), balance.Cents())
}

func TestWallet_TransactionKeyIsPerPlayer(t *testing.T) {
	client := startRedis(t)
	w := NewWallet(client)
	ctx := context.Background()

	require.NoError(t, w.SetBalance(ctx, "p1", money.MustFromCents(1000)))
	require.NoError(t, w.SetBalance(ctx, "p2", money.MustFromCents(1000)))

	first, err := w.Debit(ctx, debitReq("p1", 400, "k"))
	require.NoError(t, err)
	second, err := w.Debit(ctx, debitReq("p2", 400, "k"))
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.NotEqual(t, first.TransactionID, second.TransactionID)

	balance, err := w.GetBalance(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, int64(600), balance.Cents())
}

func TestWallet_Blocked(t *testing.T) {
	client := startRedis(t)
	w := NewWallet(client)
	ctx := context.Background()

	require.NoError(t, w.SetBalance(ctx, "p1", money.MustFromCents(1000)))
	require.NoError(t, w.SetBlocked(ctx, "p1", true))

	res, err := w.Debit(ctx, debitReq("p1", 100, "bet-1"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, ports.WalletPlayerBlocked, res.Error)

	require.NoError(t, w.SetBlocked(ctx, "p1", false))
	res, err = w.Debit(ctx, debitReq("p1", 100, "bet-1"))
	require.NoError(t, err)
	assert.True(t, res.Success)

	require.NoError(t, w.SetBlocked(ctx, "p1", true))
	res, err = w.Credit(ctx, debitReq("p1", 300, "payout:bet-1"))
	require.NoError(t, err)
	assert.True(t, res.Success, "owed winnings are paid to blocked players")
	assert.Equal(t, int64(1200), res.NewBalance.Cents())
}

func TestWallet_CreditIdempotent(t *testing.T) {
	client := startRedis(t)
	w := NewWallet(client)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := w.Credit(ctx, debitReq("p1", 250, "payout:bet-1"))
		require.NoError(t, err)
		assert.True(t, res.Success)
	}

	balance, err := w.GetBalance(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(250), balance.Cents())
}

func TestWallet_DeadlineIsTimeout(t *testing.T) {
	client := startRedis(t)
	w := NewWallet(client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := w.Debit(ctx, debitReq("p1", 100, "bet-1"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, ports.WalletTimeout, res.Error)
}

func TestFailedEventStore(t *testing.T) {
	client := startRedis(t)
	store := NewFailedEventStore(client)
	ctx := context.Background()

	batch := []events.Message{
		{Type: events.TypeRoundCrashed, Data: map[string]any{"roundId": "r1"}},
		{Type: events.TypeBetWon, Data: map[string]any{"betId": "b1"}},
	}
	require.NoError(t, store.AddBatch(ctx, batch))
	require.NoError(t, store.AddBatch(ctx, nil))

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	raw, err := store.Pop(ctx, 10)
	require.NoError(t, err)
	require.Len(t, raw, 2)
	assert.Contains(t, string(raw[0]), "r1")

	raw, err = store.Pop(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, raw)
}

package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"crashgame/internal/game"
	"crashgame/internal/money"
	"crashgame/internal/ports"
)

// GameState exposes the public view of the current round.
type GameState interface {
	Snapshot() (game.Snapshot, bool)
}

type RoundReader interface {
	GetRound(ctx context.Context, roundID string) (ports.RoundRecord, error)
}

type Balances interface {
	GetBalance(ctx context.Context, playerID string) (money.Money, error)
	SetBalance(ctx context.Context, playerID string, amount money.Money) error
}

type HealthChecker interface {
	Health() map[string]string
}

// Deps wires the server. Rounds, Balances and the health checkers are
// optional; routes that need a missing one answer 503.
type Deps struct {
	Game     GameState
	Hub      *Hub
	Rounds   RoundReader
	Balances Balances
	Health   map[string]HealthChecker
	Gatherer prometheus.Gatherer
}

type FiberServer struct {
	*fiber.App

	game     GameState
	hub      *Hub
	rounds   RoundReader
	balances Balances
	health   map[string]HealthChecker
	gatherer prometheus.Gatherer
	log      *log.Entry
}

func New(deps Deps) *FiberServer {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "crashgame",
			AppName:       "crashgame",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
		}),

		game:     deps.Game,
		hub:      deps.Hub,
		rounds:   deps.Rounds,
		balances: deps.Balances,
		health:   deps.Health,
		gatherer: deps.Gatherer,
		log:      log.WithField("component", "server"),
	}

	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/ws" || c.Path() == "/metrics"
		},
	}))

	return server
}

// Shutdown stops accepting requests and disconnects websocket clients.
func (s *FiberServer) Shutdown() error {
	s.log.Info("shutting down")
	if s.hub != nil {
		s.hub.Close()
	}
	return s.App.ShutdownWithTimeout(10 * time.Second)
}

package server

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"crashgame/internal/database"
	"crashgame/internal/money"
	"crashgame/internal/ports"
)

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	health := fiber.Map{}
	for name, checker := range s.health {
		health[name] = checker.Health()
	}

	status := "stopped"
	if _, ok := s.game.Snapshot(); ok {
		status = "running"
	}
	clients := 0
	if s.hub != nil {
		clients = s.hub.GetClientCount()
	}
	health["game"] = fiber.Map{
		"status":            status,
		"connected_clients": clients,
	}
	return c.JSON(health)
}

func (s *FiberServer) getGameStateHandler(c *fiber.Ctx) error {
	state, ok := s.game.Snapshot()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No active game round",
		})
	}
	return c.JSON(state)
}

// placeBetHandler queues the bet. The outcome is delivered as a bet_placed
// or bet_rejected event.
func (s *FiberServer) placeBetHandler(c *fiber.Ctx) error {
	var cmd ports.PlaceBetCommand
	if err := c.BodyParser(&cmd); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if cmd.PlayerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Player ID is required",
		})
	}

	if err := s.hub.SubmitPlaceBet(cmd); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "queued"})
}

func (s *FiberServer) cashoutHandler(c *fiber.Ctx) error {
	var cmd ports.CashoutCommand
	if err := c.BodyParser(&cmd); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if cmd.PlayerID == "" || cmd.BetID == "" || cmd.RoundID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Player ID, Bet ID and Round ID are required",
		})
	}

	if err := s.hub.SubmitCashout(cmd); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "queued"})
}

// getRoundHandler returns an archived round with its revealed seeds so
// the crash point can be verified.
func (s *FiberServer) getRoundHandler(c *fiber.Ctx) error {
	if s.rounds == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Round archive unavailable",
		})
	}

	rec, err := s.rounds.GetRound(c.Context(), c.Params("roundId"))
	if errors.Is(err, database.ErrRoundNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Round not found",
		})
	}
	if err != nil {
		s.log.WithError(err).Error("failed to load round")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load round",
		})
	}

	return c.JSON(fiber.Map{
		"roundId":      rec.RoundID,
		"hashedSeed":   rec.HashedSeed,
		"serverSeed":   rec.ServerSeed,
		"clientSeed":   rec.ClientSeed,
		"nonce":        rec.Nonce,
		"crashPoint":   rec.CrashPoint,
		"betCount":     rec.BetCount,
		"wonCount":     rec.WonCount,
		"wageredCents": rec.WageredCents,
		"paidCents":    rec.PaidCents,
		"startedAt":    rec.StartedAt,
		"crashedAt":    rec.CrashedAt,
	})
}

func (s *FiberServer) getUserBalanceHandler(c *fiber.Ctx) error {
	if s.balances == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Wallet unavailable",
		})
	}

	userID := c.Params("userId")
	balance, err := s.balances.GetBalance(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read balance",
		})
	}

	return c.JSON(fiber.Map{
		"user_id":       userID,
		"balance_cents": balance.Cents(),
		"balance":       balance.ToDisplay(),
	})
}

// setUserBalanceHandler sets a user's balance (for testing/admin)
func (s *FiberServer) setUserBalanceHandler(c *fiber.Ctx) error {
	if s.balances == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Wallet unavailable",
		})
	}

	var body struct {
		BalanceCents int64 `json:"balance_cents"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	amount, err := money.FromCents(body.BalanceCents)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	userID := c.Params("userId")
	if err := s.balances.SetBalance(c.Context(), userID, amount); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to set balance",
		})
	}

	return c.JSON(fiber.Map{
		"user_id":       userID,
		"balance_cents": amount.Cents(),
		"message":       "Balance updated successfully",
	})
}

// gameWebSocketHandler streams round events and accepts place_bet and
// cashout commands.
func (s *FiberServer) gameWebSocketHandler(conn *websocket.Conn) {
	playerID := conn.Query("player_id", "anonymous")
	logger := s.log.WithFields(log.Fields{"component": "ws", "player_id": playerID})

	client := s.hub.RegisterClient(conn, playerID)
	defer s.hub.UnregisterClient(client)

	if state, ok := s.game.Snapshot(); ok {
		data, _ := json.Marshal(fiber.Map{
			"type": "initial_state",
			"data": state,
		})
		client.Send(data)
	}

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			logger.WithError(err).Debug("read loop ended")
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if reply := s.hub.HandleMessage(playerID, message); reply != nil {
			client.Send(reply)
		}
	}
}

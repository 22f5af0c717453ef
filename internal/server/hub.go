package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	log "github.com/sirupsen/logrus"

	"crashgame/internal/events"
	"crashgame/internal/ports"
)

const (
	broadcastBuffer = 1024
	clientBuffer    = 256
	writeWait       = 10 * time.Second
)

var (
	ErrHubClosed     = errors.New("hub closed")
	ErrBroadcastFull = errors.New("broadcast channel full")
	ErrNoHandler     = errors.New("no command handler registered")
)

// wsConn is the part of a websocket connection the hub writes to.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type Client struct {
	conn     wsConn
	playerID string
	out      chan []byte
	done     chan struct{}
	once     sync.Once
}

// outbound is one publish. An empty playerID reaches every client.
type outbound struct {
	playerID string
	frame    []byte
}

// Hub fans events out to websocket clients and routes their commands to
// the round loop. It implements both ports.EventPublisher and
// ports.EventSubscriber.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	closeOnce  sync.Once
	mu         sync.RWMutex

	handlerMu  sync.RWMutex
	onPlaceBet func(ports.PlaceBetCommand)
	onCashout  func(ports.CashoutCommand)

	log *log.Entry
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		log:        log.WithField("component", "ws"),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.stop()
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			go client.writePump()
			h.log.WithFields(log.Fields{"player_id": client.playerID, "total": total}).Info("client connected")

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.broadcast:
			h.mu.RLock()
			var slow []*Client
			for client := range h.clients {
				if msg.playerID != "" && client.playerID != msg.playerID {
					continue
				}
				if !client.enqueue(msg.frame) {
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()
			for _, client := range slow {
				h.log.WithField("player_id", client.playerID).Warn("dropping slow client")
				h.remove(client)
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if ok {
		client.stop()
		h.log.WithFields(log.Fields{"player_id": client.playerID, "total": total}).Info("client disconnected")
	}
}

// Close stops the hub and disconnects every client.
func (h *Hub) Close() error {
	h.closeOnce.Do(func() { close(h.quit) })
	return nil
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RegisterClient(conn wsConn, playerID string) *Client {
	client := &Client{
		conn:     conn,
		playerID: playerID,
		out:      make(chan []byte, clientBuffer),
		done:     make(chan struct{}),
	}
	select {
	case h.register <- client:
	case <-h.quit:
		client.stop()
	}
	return client
}

func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// publish hands one frame to the hub loop without blocking the caller.
func (h *Hub) publish(playerID string, v interface{}) error {
	frame, err := json.Marshal(v)
	if err != nil {
		return err
	}

	select {
	case <-h.quit:
		return ErrHubClosed
	default:
	}

	select {
	case h.broadcast <- outbound{playerID: playerID, frame: frame}:
		return nil
	default:
		return ErrBroadcastFull
	}
}

func (h *Hub) RoundNew(_ context.Context, ev events.RoundNew) error {
	return h.publish("", events.Message{Type: events.TypeRoundNew, Data: ev})
}

func (h *Hub) RoundBetting(_ context.Context, ev events.RoundBetting) error {
	return h.publish("", events.Message{Type: events.TypeRoundBetting, Data: ev})
}

func (h *Hub) RoundStarted(_ context.Context, ev events.RoundStarted) error {
	return h.publish("", events.Message{Type: events.TypeRoundStarted, Data: ev})
}

func (h *Hub) BetPlaced(_ context.Context, ev events.Bet) error {
	return h.publish("", events.Message{Type: events.TypeBetPlaced, Data: ev})
}

// BetRejected only reaches the player who placed the bet.
func (h *Hub) BetRejected(_ context.Context, ev events.BetRejected) error {
	return h.publish(ev.PlayerID, events.Message{Type: events.TypeBetRejected, Data: ev})
}

// CreditFailed only reaches the affected player.
func (h *Hub) CreditFailed(_ context.Context, ev events.CreditFailed) error {
	return h.publish(ev.PlayerID, events.Message{Type: events.TypeCreditFailed, Data: ev})
}

// PublishBatch sends a whole tick batch as one frame holding a JSON array,
// so a crash with thousands of losing bets costs each client one slot.
func (h *Hub) PublishBatch(_ context.Context, batch []events.TickEvent) error {
	if len(batch) == 0 {
		return nil
	}
	return h.publish("", events.Messages(batch))
}

func (h *Hub) OnPlaceBet(handler func(ports.PlaceBetCommand)) {
	h.handlerMu.Lock()
	h.onPlaceBet = handler
	h.handlerMu.Unlock()
}

func (h *Hub) OnCashout(handler func(ports.CashoutCommand)) {
	h.handlerMu.Lock()
	h.onCashout = handler
	h.handlerMu.Unlock()
}

func (h *Hub) SubmitPlaceBet(cmd ports.PlaceBetCommand) error {
	h.handlerMu.RLock()
	handler := h.onPlaceBet
	h.handlerMu.RUnlock()
	if handler == nil {
		return ErrNoHandler
	}
	handler(cmd)
	return nil
}

func (h *Hub) SubmitCashout(cmd ports.CashoutCommand) error {
	h.handlerMu.RLock()
	handler := h.onCashout
	h.handlerMu.RUnlock()
	if handler == nil {
		return ErrNoHandler
	}
	handler(cmd)
	return nil
}

type clientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// HandleMessage routes one inbound frame from playerID and returns the
// immediate reply, if any. Command outcomes arrive later as events.
func (h *Hub) HandleMessage(playerID string, raw []byte) []byte {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return errorFrame("invalid message")
	}

	switch msg.Type {
	case "place_bet":
		var cmd ports.PlaceBetCommand
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			return errorFrame("invalid place_bet payload")
		}
		cmd.PlayerID = playerID
		if err := h.SubmitPlaceBet(cmd); err != nil {
			return errorFrame(err.Error())
		}
		return nil

	case "cashout":
		var cmd ports.CashoutCommand
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			return errorFrame("invalid cashout payload")
		}
		cmd.PlayerID = playerID
		if err := h.SubmitCashout(cmd); err != nil {
			return errorFrame(err.Error())
		}
		return nil

	case "ping":
		pong, _ := json.Marshal(map[string]string{"type": "pong"})
		return pong

	default:
		return errorFrame("unknown message type")
	}
}

func errorFrame(reason string) []byte {
	data, _ := json.Marshal(map[string]string{"type": "error", "error": reason})
	return data
}

// Send queues a frame for this client only.
func (c *Client) Send(data []byte) bool {
	return c.enqueue(data)
}

func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.out <- data:
		return true
	default:
		return false
	}
}

func (c *Client) stop() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *Client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.WithFields(log.Fields{
					"component": "ws",
					"player_id": c.playerID,
				}).WithError(err).Warn("write failed")
				c.stop()
				return
			}
		}
	}
}

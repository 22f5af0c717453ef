package events

// Type names the wire event. Values are the exact strings the transport
// forwards to clients.
type Type string

const (
	TypeRoundNew     Type = "round_new"
	TypeRoundBetting Type = "round_betting"
	TypeRoundStarted Type = "round_started"
	TypeRoundCrashed Type = "round_crashed"
	TypeTick         Type = "tick"
	TypeBetPlaced    Type = "bet_placed"
	TypeBetWon       Type = "bet_won"
	TypeBetLost      Type = "bet_lost"
	TypeBetRejected  Type = "bet_rejected"
	TypeCreditFailed Type = "credit_failed"
)

// Message is the envelope every event travels in.
type Message struct {
	Type Type        `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type RoundNew struct {
	RoundID    string `json:"roundId"`
	HashedSeed string `json:"hashedSeed"`
}

type RoundBetting struct {
	RoundID string `json:"roundId"`
	EndsAt  int64  `json:"endsAt"`
}

type RoundStarted struct {
	RoundID string `json:"roundId"`
}

type RoundCrashed struct {
	RoundID    string  `json:"roundId"`
	CrashPoint float64 `json:"crashPoint"`
	ServerSeed string  `json:"serverSeed"`
}

type Tick struct {
	RoundID    string  `json:"roundId"`
	Multiplier float64 `json:"multiplier"`
	ElapsedMs  int64   `json:"elapsedMs"`
}

// Bet is the payload of bet_placed, bet_won and bet_lost.
type Bet struct {
	BetID             string   `json:"betId"`
	PlayerID          string   `json:"playerId"`
	RoundID           string   `json:"roundId"`
	AmountCents       int64    `json:"amountCents"`
	Status            string   `json:"status"`
	CashoutMultiplier *float64 `json:"cashoutMultiplier,omitempty"`
	PayoutCents       *int64   `json:"payoutCents,omitempty"`
	CrashPoint        *float64 `json:"crashPoint,omitempty"`
}

type BetRejected struct {
	PlayerID    string `json:"playerId"`
	RoundID     string `json:"roundId"`
	AmountCents int64  `json:"amountCents"`
	Error       string `json:"error"`
}

type CreditFailed struct {
	PlayerID    string `json:"playerId"`
	BetID       string `json:"betId"`
	RoundID     string `json:"roundId"`
	PayoutCents int64  `json:"payoutCents"`
	Reason      string `json:"reason"`
}

// TickEvent is one entry of a tick flush batch. It is a flat value so the
// hot path can buffer it without boxing; Kind selects which fields apply.
type TickEvent struct {
	Kind    Type
	RoundID string

	// tick
	Multiplier float64
	ElapsedMs  int64

	// bet_won, bet_lost
	BetID             string
	PlayerID          string
	AmountCents       int64
	CashoutMultiplier float64
	PayoutCents       int64

	// bet_lost, round_crashed
	CrashPoint float64
	ServerSeed string
}

func NewTickEvent(roundID string, multiplier float64, elapsedMs int64) TickEvent {
	return TickEvent{Kind: TypeTick, RoundID: roundID, Multiplier: multiplier, ElapsedMs: elapsedMs}
}

func NewBetWon(roundID, betID, playerID string, amountCents int64, multiplier float64, payoutCents int64) TickEvent {
	return TickEvent{
		Kind:              TypeBetWon,
		RoundID:           roundID,
		BetID:             betID,
		PlayerID:          playerID,
		AmountCents:       amountCents,
		CashoutMultiplier: multiplier,
		PayoutCents:       payoutCents,
	}
}

func NewBetLost(roundID, betID, playerID string, amountCents int64, crashPoint float64) TickEvent {
	return TickEvent{
		Kind:        TypeBetLost,
		RoundID:     roundID,
		BetID:       betID,
		PlayerID:    playerID,
		AmountCents: amountCents,
		CrashPoint:  crashPoint,
	}
}

func NewRoundCrashed(roundID string, crashPoint float64, serverSeed string) TickEvent {
	return TickEvent{Kind: TypeRoundCrashed, RoundID: roundID, CrashPoint: crashPoint, ServerSeed: serverSeed}
}

// Payload returns the wire payload for the event kind.
func (e TickEvent) Payload() interface{} {
	switch e.Kind {
	case TypeTick:
		return Tick{RoundID: e.RoundID, Multiplier: e.Multiplier, ElapsedMs: e.ElapsedMs}
	case TypeBetWon:
		multiplier, payout := e.CashoutMultiplier, e.PayoutCents
		return Bet{
			BetID:             e.BetID,
			PlayerID:          e.PlayerID,
			RoundID:           e.RoundID,
			AmountCents:       e.AmountCents,
			Status:            "WON",
			CashoutMultiplier: &multiplier,
			PayoutCents:       &payout,
		}
	case TypeBetLost:
		crashPoint := e.CrashPoint
		return Bet{
			BetID:       e.BetID,
			PlayerID:    e.PlayerID,
			RoundID:     e.RoundID,
			AmountCents: e.AmountCents,
			Status:      "LOST",
			CrashPoint:  &crashPoint,
		}
	case TypeRoundCrashed:
		return RoundCrashed{RoundID: e.RoundID, CrashPoint: e.CrashPoint, ServerSeed: e.ServerSeed}
	default:
		return nil
	}
}

func (e TickEvent) Message() Message {
	return Message{Type: e.Kind, Data: e.Payload()}
}

// Messages converts a batch into envelopes.
func Messages(batch []TickEvent) []Message {
	out := make([]Message, len(batch))
	for i := range batch {
		out[i] = batch[i].Message()
	}
	return out
}

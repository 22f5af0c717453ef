package game

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"crashgame/internal/events"
	"crashgame/internal/money"
	"crashgame/internal/ports"
)

type fakeWallet struct {
	mu       sync.Mutex
	debits   []ports.WalletRequest
	credits  []ports.WalletRequest
	debitErr ports.WalletError
	failWith error

	creditErr   ports.WalletError
	creditFails error

	onDebit func(req ports.WalletRequest)
}

func (w *fakeWallet) Debit(_ context.Context, req ports.WalletRequest) (ports.WalletResult, error) {
	w.mu.Lock()
	w.debits = append(w.debits, req)
	hook, derr, ferr := w.onDebit, w.debitErr, w.failWith
	w.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	if ferr != nil {
		return ports.WalletResult{}, ferr
	}
	if derr != "" {
		return ports.WalletResult{Success: false, Error: derr}, nil
	}
	return ports.WalletResult{Success: true, TransactionID: "tx-" + req.BetID}, nil
}

func (w *fakeWallet) Credit(_ context.Context, req ports.WalletRequest) (ports.WalletResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.credits = append(w.credits, req)
	if w.creditFails != nil {
		return ports.WalletResult{}, w.creditFails
	}
	if w.creditErr != "" {
		return ports.WalletResult{Success: false, Error: w.creditErr}, nil
	}
	return ports.WalletResult{Success: true, TransactionID: "tx-credit-" + req.BetID}, nil
}

func (w *fakeWallet) GetBalance(context.Context, string) (money.Money, error) {
	return money.Zero(), nil
}

func (w *fakeWallet) debitCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.debits)
}

func (w *fakeWallet) creditsFor(betID string) []ports.WalletRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []ports.WalletRequest
	for _, c := range w.credits {
		if c.BetID == betID {
			out = append(out, c)
		}
	}
	return out
}

type fakePublisher struct {
	mu        sync.Mutex
	msgs      []events.Message
	failBatch bool
}

func (p *fakePublisher) record(t events.Type, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, events.Message{Type: t, Data: data})
	return nil
}

func (p *fakePublisher) RoundNew(_ context.Context, ev events.RoundNew) error {
	return p.record(events.TypeRoundNew, ev)
}

func (p *fakePublisher) RoundBetting(_ context.Context, ev events.RoundBetting) error {
	return p.record(events.TypeRoundBetting, ev)
}

func (p *fakePublisher) RoundStarted(_ context.Context, ev events.RoundStarted) error {
	return p.record(events.TypeRoundStarted, ev)
}

func (p *fakePublisher) BetPlaced(_ context.Context, ev events.Bet) error {
	return p.record(events.TypeBetPlaced, ev)
}

func (p *fakePublisher) BetRejected(_ context.Context, ev events.BetRejected) error {
	return p.record(events.TypeBetRejected, ev)
}

func (p *fakePublisher) CreditFailed(_ context.Context, ev events.CreditFailed) error {
	return p.record(events.TypeCreditFailed, ev)
}

func (p *fakePublisher) PublishBatch(_ context.Context, batch []events.TickEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failBatch {
		return errors.New("bus unavailable")
	}
	for _, e := range batch {
		p.msgs = append(p.msgs, e.Message())
	}
	return nil
}

func (p *fakePublisher) ofType(t events.Type) []events.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Message
	for _, m := range p.msgs {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

func (p *fakePublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.msgs))
	for i, m := range p.msgs {
		out[i] = m.Type
	}
	return out
}

type timerTask struct {
	seq   int
	delay time.Duration
	fn    func()
}

// fakeTimer only runs callbacks when the test fires them.
type fakeTimer struct {
	mu    sync.Mutex
	seq   int
	tasks map[ports.TimerID]timerTask
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{tasks: make(map[ports.TimerID]timerTask)}
}

func (t *fakeTimer) Schedule(delay time.Duration, fn func()) (ports.TimerID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	id := ports.TimerID(fmt.Sprintf("t%d", t.seq))
	t.tasks[id] = timerTask{seq: t.seq, delay: delay, fn: fn}
	return id, nil
}

func (t *fakeTimer) ScheduleImmediate(fn func()) (ports.TimerID, error) {
	return t.Schedule(0, fn)
}

func (t *fakeTimer) Clear(id ports.TimerID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tasks, id)
}

func (t *fakeTimer) pending() []timerTask {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]timerTask, 0, len(t.tasks))
	for _, task := range t.tasks {
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// fire runs the oldest pending callback and reports whether there was one.
func (t *fakeTimer) fire() bool {
	t.mu.Lock()
	var (
		id   ports.TimerID
		task timerTask
		ok   bool
	)
	for k, v := range t.tasks {
		if !ok || v.seq < task.seq {
			id, task, ok = k, v, true
		}
	}
	if ok {
		delete(t.tasks, id)
	}
	t.mu.Unlock()

	if ok {
		task.fn()
	}
	return ok
}

type fakeScheduler struct {
	mu     sync.Mutex
	cb     func(time.Duration)
	starts int
	stops  int
}

func (s *fakeScheduler) Start(cb func(time.Duration)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cb = cb
	s.starts++
	return nil
}

func (s *fakeScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cb = nil
	s.stops++
}

func (s *fakeScheduler) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cb != nil
}

func (s *fakeScheduler) tick(elapsed time.Duration) {
	s.mu.Lock()
	cb := s.cb
	s.mu.Unlock()
	if cb != nil {
		cb(elapsed)
	}
}

type fakeFailedStore struct {
	mu      sync.Mutex
	batches [][]events.Message
}

func (s *fakeFailedStore) AddBatch(_ context.Context, batch []events.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, batch)
	return nil
}

func (s *fakeFailedStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

type fakeArchive struct {
	mu      sync.Mutex
	records []ports.RoundRecord
}

func (a *fakeArchive) SaveRound(_ context.Context, rec ports.RoundRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	return nil
}

type fakeSubscriber struct {
	placeBet func(ports.PlaceBetCommand)
	cashout  func(ports.CashoutCommand)
}

func (s *fakeSubscriber) OnPlaceBet(h func(ports.PlaceBetCommand)) { s.placeBet = h }
func (s *fakeSubscriber) OnCashout(h func(ports.CashoutCommand))   { s.cashout = h }
func (s *fakeSubscriber) Close() error                             { return nil }

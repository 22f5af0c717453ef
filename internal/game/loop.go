package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"crashgame/internal/events"
	"crashgame/internal/fairness"
	"crashgame/internal/ports"
)

const (
	publishTimeout = 5 * time.Second
	archiveTimeout = 5 * time.Second

	// maxConcurrentAdmissions bounds the wallet debits issued at the end of a
	// betting window.
	maxConcurrentAdmissions = 64
)

// Recorder receives round loop measurements. The zero Deps uses a no-op.
type Recorder interface {
	RoundStarted()
	RoundCrashed(crashPoint float64)
	BetPlaced(amountCents int64)
	BetRejected(reason string)
	Payout(payoutCents int64)
	CreditFailed(reason string)
	PublishFailed(kind string)
	TickDuration(d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RoundStarted()              {}
func (nopRecorder) RoundCrashed(float64)       {}
func (nopRecorder) BetPlaced(int64)            {}
func (nopRecorder) BetRejected(string)         {}
func (nopRecorder) Payout(int64)               {}
func (nopRecorder) CreditFailed(string)        {}
func (nopRecorder) PublishFailed(string)       {}
func (nopRecorder) TickDuration(time.Duration) {}

// Deps are the collaborators of the round loop. Subscriber, FailedEvents,
// Archive and Metrics are optional.
type Deps struct {
	Wallet       ports.WalletGateway
	Publisher    ports.EventPublisher
	Subscriber   ports.EventSubscriber
	Scheduler    ports.TickScheduler
	Timer        ports.Timer
	Seeds        *fairness.SeedChain
	ClientSeeds  ports.ClientSeedProvider
	FailedEvents ports.FailedEventStore
	Archive      ports.RoundArchive
	Metrics      Recorder
}

// Snapshot is the public view of the current round. The crash point and
// server seed are never part of it.
type Snapshot struct {
	RoundID    string      `json:"roundId"`
	Status     RoundStatus `json:"status"`
	HashedSeed string      `json:"hashedSeed"`
	Multiplier float64     `json:"multiplier"`
	ActiveBets int         `json:"activeBets"`
	Nonce      uint64      `json:"nonce"`
}

type queuedBet struct {
	cmd     ports.PlaceBetCommand
	roundID string
}

// Loop drives rounds: it opens the betting window, admits bets, runs the
// tick pipeline and settles every bet of a round exactly once.
//
// All domain state is guarded by mu. Each synchronous phase (command
// ingress, round start, the tick core, bet admission) runs under it, and
// wallet or publish I/O only happens after it is released.
type Loop struct {
	cfg         Config
	wallet      ports.WalletGateway
	publisher   ports.EventPublisher
	subscriber  ports.EventSubscriber
	scheduler   ports.TickScheduler
	timer       ports.Timer
	clientSeeds ports.ClientSeedProvider
	failed      ports.FailedEventStore
	archive     ports.RoundArchive
	metrics     Recorder

	placeBet *PlaceBetFlow
	cashout  *CashoutFlow
	tracker  *events.InFlightPublishTracker
	work     inFlight
	log      *log.Entry

	subscribeOnce sync.Once

	mu              sync.Mutex
	ctx             context.Context
	running         bool
	seeds           *fairness.SeedChain
	nonce           uint64
	ledger          *BetLedger
	round           *Round
	buffer          *events.TickEventBuffer
	closing         bool
	betKeys         map[string]struct{}
	pendingBets     []queuedBet
	pendingCashouts []ports.CashoutCommand
	settled         []Settlement
	bettingTimer    ports.TimerID
	nextRoundTimer  ports.TimerID
}

func NewLoop(cfg Config, deps Deps) (*Loop, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Wallet == nil || deps.Publisher == nil || deps.Scheduler == nil || deps.Timer == nil {
		return nil, errors.New("round loop needs a wallet, publisher, tick scheduler and timer")
	}
	if deps.Seeds == nil || deps.ClientSeeds == nil {
		return nil, errors.New("round loop needs a seed chain and client seed provider")
	}
	if deps.Metrics == nil {
		deps.Metrics = nopRecorder{}
	}

	return &Loop{
		cfg:         cfg,
		wallet:      deps.Wallet,
		publisher:   deps.Publisher,
		subscriber:  deps.Subscriber,
		scheduler:   deps.Scheduler,
		timer:       deps.Timer,
		clientSeeds: deps.ClientSeeds,
		failed:      deps.FailedEvents,
		archive:     deps.Archive,
		metrics:     deps.Metrics,
		placeBet:    NewPlaceBetFlow(deps.Wallet, cfg),
		cashout:     NewCashoutFlow(deps.Wallet, cfg),
		tracker:     events.NewInFlightPublishTracker(cfg.EventHighWaterMark),
		log:         log.WithField("component", "loop"),
		ctx:         context.Background(),
		seeds:       deps.Seeds,
		ledger:      NewBetLedger(),
		buffer:      events.NewTickEventBuffer(0),
	}, nil
}

// Start schedules the first round. ctx is the parent of every wallet call.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrAlreadyRunning
	}
	l.running = true
	l.ctx = ctx
	l.mu.Unlock()

	if l.subscriber != nil {
		l.subscribeOnce.Do(func() {
			l.subscriber.OnPlaceBet(l.PlaceBet)
			l.subscriber.OnCashout(l.Cashout)
		})
	}

	l.log.WithFields(log.Fields{
		"anchor":    l.seedAnchor(),
		"remaining": l.seedsRemaining(),
	}).Info("round loop starting")

	if _, err := l.timer.ScheduleImmediate(l.startNewRound); err != nil {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
		return err
	}
	return nil
}

// Stop cancels scheduled work, flushes buffered events and clears the
// current round. It never fails and is safe to call twice.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	l.clearTimers()
	l.scheduler.Stop()

	round := l.round
	l.round = nil
	if round != nil {
		l.ledger.ClearRound(round.ID)
	}
	stale := l.pendingBets
	l.pendingBets = nil
	l.pendingCashouts = nil
	l.closing = false
	l.betKeys = nil

	var done <-chan struct{}
	if l.buffer.Len() > 0 {
		done = l.flush(copyBatch(l.buffer.Swap()))
	}
	l.mu.Unlock()

	if round != nil {
		l.log.WithFields(log.Fields{
			"round_id": round.ID,
			"status":   round.Status(),
		}).Warn("round loop stopped with a round in progress")
	}
	l.rejectQueued(stale)
	if done != nil {
		<-done
	}
}

// Drain waits for every in-flight publish, wallet credit and archive write.
func (l *Loop) Drain(ctx context.Context) error {
	if err := l.tracker.Drain(ctx); err != nil {
		return err
	}
	if err := l.work.wait(ctx); err != nil {
		return err
	}
	// Credits may have published credit_failed after the first drain.
	return l.tracker.Drain(ctx)
}

// PlaceBet queues a bet for the current betting window. Bets outside a
// betting window, invalid bets and repeats of a player's idempotency key
// within the round are rejected immediately.
func (l *Loop) PlaceBet(cmd ports.PlaceBetCommand) {
	l.mu.Lock()
	if l.round == nil || !l.round.IsAcceptingBets() || l.closing {
		roundID := ""
		if l.round != nil {
			roundID = l.round.ID
		}
		l.mu.Unlock()
		l.rejectBet(cmd, roundID, ReasonRoundNotBetting)
		return
	}
	roundID := l.round.ID
	if reason := l.placeBet.Validate(cmd); reason != "" {
		l.mu.Unlock()
		l.rejectBet(cmd, roundID, reason)
		return
	}
	if cmd.IdempotencyKey != "" {
		key := betKey(cmd)
		if _, seen := l.betKeys[key]; seen {
			l.mu.Unlock()
			l.rejectBet(cmd, roundID, ReasonDuplicateBet)
			return
		}
		l.betKeys[key] = struct{}{}
	}
	l.pendingBets = append(l.pendingBets, queuedBet{cmd: cmd, roundID: roundID})
	l.mu.Unlock()
}

// Cashout queues a manual cashout for the next tick. Commands that do not
// target the running round are dropped without a response.
func (l *Loop) Cashout(cmd ports.CashoutCommand) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.round == nil || l.round.Status() != RoundRunning || cmd.RoundID != l.round.ID {
		l.log.WithFields(log.Fields{
			"bet_id":   cmd.BetID,
			"round_id": cmd.RoundID,
		}).Debug("dropping cashout outside the running round")
		return
	}
	l.pendingCashouts = append(l.pendingCashouts, cmd)
}

func (l *Loop) Snapshot() (Snapshot, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.round == nil {
		return Snapshot{}, false
	}
	return Snapshot{
		RoundID:    l.round.ID,
		Status:     l.round.Status(),
		HashedSeed: l.round.HashedSeed(),
		Multiplier: l.round.Multiplier(),
		ActiveBets: l.round.ActiveBets(),
		Nonce:      l.nonce,
	}, true
}

func (l *Loop) startNewRound() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.nextRoundTimer = ""

	stale := l.pendingBets
	l.pendingBets = nil
	l.closing = false
	l.betKeys = make(map[string]struct{})
	if l.round != nil {
		l.ledger.ClearRound(l.round.ID)
		l.round = nil
	}

	serverSeed, err := l.nextServerSeed()
	if err != nil {
		l.retryNewRound(err)
		l.mu.Unlock()
		l.rejectQueued(stale)
		return
	}
	clientSeed, err := l.clientSeeds.Next()
	if err != nil {
		l.retryNewRound(err)
		l.mu.Unlock()
		l.rejectQueued(stale)
		return
	}

	l.nonce++
	seeds := Seeds{
		ServerSeed: serverSeed,
		HashedSeed: fairness.HashServerSeed(serverSeed),
		ClientSeed: clientSeed,
		Nonce:      l.nonce,
	}
	crashPoint := fairness.CalculateCrashPoint(serverSeed, clientSeed, l.nonce, l.cfg.HouseEdgePercent)

	round := NewRound(uuid.NewString(), crashPoint, seeds, l.ledger)
	if err := round.OpenBetting(); err != nil {
		l.log.WithError(err).Error("failed to open betting")
		l.mu.Unlock()
		l.rejectQueued(stale)
		return
	}
	l.round = round

	endsAt := time.Now().Add(l.cfg.BettingWindow)
	id, err := l.timer.Schedule(l.cfg.BettingWindow, func() { l.endBettingPhase(round) })
	if err != nil {
		l.log.WithError(err).WithField("round_id", round.ID).Error("failed to schedule end of betting")
	}
	l.bettingTimer = id

	publishOne(l, events.TypeRoundNew, events.RoundNew{RoundID: round.ID, HashedSeed: seeds.HashedSeed},
		func(ctx context.Context, ev events.RoundNew) error { return l.publisher.RoundNew(ctx, ev) })
	publishOne(l, events.TypeRoundBetting, events.RoundBetting{RoundID: round.ID, EndsAt: endsAt.UnixMilli()},
		func(ctx context.Context, ev events.RoundBetting) error { return l.publisher.RoundBetting(ctx, ev) })
	l.mu.Unlock()

	l.metrics.RoundStarted()
	l.log.WithFields(log.Fields{
		"round_id":    round.ID,
		"hashed_seed": seeds.HashedSeed,
		"nonce":       seeds.Nonce,
	}).Info("betting open")

	l.rejectQueued(stale)
}

// retryNewRound schedules another attempt at starting a round. Caller holds mu.
func (l *Loop) retryNewRound(err error) {
	l.log.WithError(err).Error("failed to prepare round seeds, retrying")
	id, serr := l.timer.Schedule(l.cfg.InterRoundDelay, l.startNewRound)
	if serr != nil {
		l.log.WithError(serr).Error("failed to schedule next round")
	}
	l.nextRoundTimer = id
}

// nextServerSeed advances the seed chain, replacing it with a fresh chain
// once it runs out. Caller holds mu.
func (l *Loop) nextServerSeed() (string, error) {
	seed, err := l.seeds.Next()
	if !errors.Is(err, fairness.ErrChainExhausted) {
		return seed, err
	}

	terminal, err := fairness.GenerateServerSeed()
	if err != nil {
		return "", err
	}
	chain, err := fairness.NewSeedChain(terminal, l.seeds.Len())
	if err != nil {
		return "", err
	}
	l.seeds = chain
	l.log.WithFields(log.Fields{
		"anchor": chain.Anchor(),
		"length": chain.Len(),
	}).Warn("seed chain exhausted, switched to a new chain")
	return chain.Next()
}

// endBettingPhase closes the window to new commands, admits the bets
// queued so far and starts the flight. Bets arriving while the debits are
// in flight are rejected, so admission is a single bounded pass.
func (l *Loop) endBettingPhase(round *Round) {
	l.mu.Lock()
	if l.round != round || !round.IsAcceptingBets() || l.closing {
		l.mu.Unlock()
		return
	}
	l.bettingTimer = ""
	l.closing = true
	queued := l.pendingBets
	l.pendingBets = nil
	ctx := l.ctx
	l.mu.Unlock()

	if len(queued) > 0 {
		l.admitBets(ctx, round, queued)
	}

	l.mu.Lock()
	if l.round != round || !round.IsAcceptingBets() {
		l.mu.Unlock()
		return
	}
	stale := l.pendingBets
	l.pendingBets = nil
	if err := round.Start(); err != nil {
		l.log.WithError(err).WithField("round_id", round.ID).Error("failed to start round")
		l.mu.Unlock()
		l.rejectQueued(stale)
		return
	}
	publishOne(l, events.TypeRoundStarted, events.RoundStarted{RoundID: round.ID},
		func(ctx context.Context, ev events.RoundStarted) error { return l.publisher.RoundStarted(ctx, ev) })
	if err := l.scheduler.Start(l.onTick); err != nil {
		l.log.WithError(err).WithField("round_id", round.ID).Error("failed to start tick scheduler")
	}
	bets := round.ActiveBets()
	l.mu.Unlock()

	l.rejectQueued(stale)
	l.log.WithFields(log.Fields{
		"round_id": round.ID,
		"bets":     bets,
	}).Info("round running")
}

// admitBets runs the place-bet flow for each queued command concurrently.
func (l *Loop) admitBets(ctx context.Context, round *Round, queued []queuedBet) {
	admitter := &loopAdmitter{loop: l, round: round}

	var g errgroup.Group
	g.SetLimit(maxConcurrentAdmissions)
	for _, q := range queued {
		cmd := q.cmd
		g.Go(func() error {
			res := l.placeBet.Execute(ctx, round.ID, admitter, cmd)
			l.reportPlacement(round.ID, cmd, res)
			return nil
		})
	}
	_ = g.Wait()
}

func (l *Loop) reportPlacement(roundID string, cmd ports.PlaceBetCommand, res PlaceBetResult) {
	if res.OK() {
		l.metrics.BetPlaced(cmd.AmountCents)
		publishOne(l, events.TypeBetPlaced, betPayload(res.Bet),
			func(ctx context.Context, ev events.Bet) error { return l.publisher.BetPlaced(ctx, ev) })
		return
	}

	l.rejectBet(cmd, roundID, res.Reason)
	if res.CompensationFailed {
		l.metrics.CreditFailed(string(ReasonCompensationFailed))
		publishOne(l, events.TypeCreditFailed, events.CreditFailed{
			PlayerID:    cmd.PlayerID,
			BetID:       res.BetID,
			RoundID:     roundID,
			PayoutCents: cmd.AmountCents,
			Reason:      string(ReasonCompensationFailed),
		}, func(ctx context.Context, ev events.CreditFailed) error { return l.publisher.CreditFailed(ctx, ev) })
	}
}

// onTick is the tick pipeline. Everything up to the crash decision runs
// under mu without yielding, so a cashout queued before this tick is
// honoured and nothing is paid past the crash point.
func (l *Loop) onTick(elapsed time.Duration) {
	start := time.Now()

	l.mu.Lock()
	round := l.round
	if round == nil || round.Status() != RoundRunning {
		l.mu.Unlock()
		return
	}

	l.settled = l.settled[:0]

	// (a) manual cashouts queued since the last tick.
	for i := range l.pendingCashouts {
		cmd := l.pendingCashouts[i]
		bet, ok := l.ledger.Get(cmd.BetID)
		if !ok || bet.PlayerID != cmd.PlayerID || bet.RoundID != round.ID || !bet.IsActive() {
			continue
		}
		s, err := l.cashout.Settle(round, cmd.BetID)
		if err != nil {
			continue
		}
		l.settle(round, s)
	}
	l.pendingCashouts = l.pendingCashouts[:0]

	// (b)
	multiplier := MultiplierAt(elapsed, l.cfg.GrowthRate)

	// (c) auto-cashouts whose threshold was reached. A threshold at or past
	// the crash point is refused by the round and the bet loses below.
	l.ledger.ForEachAutoCashout(round.ID, multiplier, func(b *Bet) {
		s, err := l.cashout.SettleAuto(round, b)
		if err != nil {
			return
		}
		l.settle(round, s)
	})

	// (d)
	crashed, err := round.Tick(multiplier)
	if err != nil {
		l.log.WithError(err).WithField("round_id", round.ID).Error("tick rejected")
		l.mu.Unlock()
		return
	}

	// (e)
	var record ports.RoundRecord
	if crashed {
		crashPoint, seeds, _ := round.Reveal()
		l.ledger.ForEachInRound(round.ID, func(b *Bet) {
			if b.Status() == BetLost {
				l.buffer.Push(events.NewBetLost(round.ID, b.ID, b.PlayerID, b.Amount.Cents(), crashPoint))
			}
		})
		l.buffer.Push(events.NewRoundCrashed(round.ID, crashPoint, seeds.ServerSeed))
		record = l.roundRecord(round, crashPoint, seeds)
	} else {
		l.buffer.Push(events.NewTickEvent(round.ID, round.Multiplier(), elapsed.Milliseconds()))
	}

	// (f)
	if crashed {
		l.scheduler.Stop()
		id, err := l.timer.Schedule(l.cfg.InterRoundDelay, l.startNewRound)
		if err != nil {
			l.log.WithError(err).Error("failed to schedule next round")
		}
		l.nextRoundTimer = id
	}
	done := l.flush(copyBatch(l.buffer.Swap()))
	settled := append([]Settlement(nil), l.settled...)
	ctx := l.ctx
	l.mu.Unlock()

	for _, s := range settled {
		l.credit(ctx, s)
	}
	l.metrics.TickDuration(time.Since(start))

	if !crashed {
		return
	}
	<-done

	l.metrics.RoundCrashed(record.CrashPoint)
	l.log.WithFields(log.Fields{
		"round_id":    record.RoundID,
		"crash_point": record.CrashPoint,
		"bets":        record.BetCount,
		"won":         record.WonCount,
	}).Info("round crashed")
	l.saveRound(record)
}

// settle buffers the bet_won event of a settlement. Caller holds mu.
func (l *Loop) settle(round *Round, s Settlement) {
	l.settled = append(l.settled, s)
	l.buffer.Push(events.NewBetWon(round.ID, s.Bet.ID, s.Bet.PlayerID, s.Bet.Amount.Cents(), s.Multiplier, s.Payout.Cents()))
}

// credit pays a settlement out in the background. A failed credit is
// reported for reconciliation; the bet stays WON.
func (l *Loop) credit(ctx context.Context, s Settlement) {
	l.metrics.Payout(s.Payout.Cents())
	l.work.add()
	go func() {
		defer l.work.done()
		err := l.cashout.Credit(ctx, s)
		if err == nil {
			return
		}

		reason := creditReason(err)
		l.metrics.CreditFailed(reason)
		l.log.WithFields(log.Fields{
			"bet_id":       s.Bet.ID,
			"player_id":    s.Bet.PlayerID,
			"round_id":     s.Bet.RoundID,
			"payout_cents": s.Payout.Cents(),
		}).WithError(err).Error("payout credit failed, needs reconciliation")
		publishOne(l, events.TypeCreditFailed, events.CreditFailed{
			PlayerID:    s.Bet.PlayerID,
			BetID:       s.Bet.ID,
			RoundID:     s.Bet.RoundID,
			PayoutCents: s.Payout.Cents(),
			Reason:      reason,
		}, func(ctx context.Context, ev events.CreditFailed) error { return l.publisher.CreditFailed(ctx, ev) })
	}()
}

func (l *Loop) roundRecord(round *Round, crashPoint float64, seeds Seeds) ports.RoundRecord {
	rec := ports.RoundRecord{
		RoundID:    round.ID,
		HashedSeed: seeds.HashedSeed,
		ServerSeed: seeds.ServerSeed,
		ClientSeed: seeds.ClientSeed,
		Nonce:      seeds.Nonce,
		CrashPoint: crashPoint,
		StartedAt:  round.StartedAt,
		CrashedAt:  round.CrashedAt,
	}
	l.ledger.ForEachInRound(round.ID, func(b *Bet) {
		rec.BetCount++
		rec.WageredCents += b.Amount.Cents()
		if b.Status() == BetWon {
			rec.WonCount++
			rec.PaidCents += b.Payout().Cents()
		}
	})
	return rec
}

func (l *Loop) saveRound(rec ports.RoundRecord) {
	if l.archive == nil {
		return
	}
	l.work.add()
	go func() {
		defer l.work.done()
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := l.archive.SaveRound(ctx, rec); err != nil {
			l.log.WithError(err).WithField("round_id", rec.RoundID).Error("failed to archive round")
		}
	}()
}

func (l *Loop) rejectQueued(queued []queuedBet) {
	for _, q := range queued {
		l.rejectBet(q.cmd, q.roundID, ReasonRoundNotBetting)
	}
}

func (l *Loop) rejectBet(cmd ports.PlaceBetCommand, roundID string, reason Reason) {
	l.metrics.BetRejected(string(reason))
	publishOne(l, events.TypeBetRejected, events.BetRejected{
		PlayerID:    cmd.PlayerID,
		RoundID:     roundID,
		AmountCents: cmd.AmountCents,
		Error:       string(reason),
	}, func(ctx context.Context, ev events.BetRejected) error { return l.publisher.BetRejected(ctx, ev) })
}

// flush hands a batch to the publisher. The returned channel closes once
// the batch was delivered or stored as failed.
func (l *Loop) flush(batch []events.TickEvent) <-chan struct{} {
	if len(batch) == 0 {
		return closedChan
	}
	return l.tracker.Track(func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := l.publisher.PublishBatch(ctx, batch); err != nil {
			l.publishFailed(string(batch[0].Kind), events.Messages(batch), err)
		}
	})
}

func (l *Loop) publishFailed(kind string, msgs []events.Message, err error) {
	l.metrics.PublishFailed(kind)
	entry := l.log.WithError(err).WithFields(log.Fields{"kind": kind, "events": len(msgs)})
	if l.failed == nil {
		entry.Error("publish failed, events dropped")
		return
	}
	entry.Warn("publish failed, storing events")

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := l.failed.AddBatch(ctx, msgs); err != nil {
		l.log.WithError(err).WithField("kind", kind).Error("failed to store undelivered events")
	}
}

// publishOne sends a single event through the tracker so it stays ordered with
// the tick batches.
func publishOne[T any](l *Loop, kind events.Type, ev T, send func(context.Context, T) error) {
	l.tracker.Track(func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := send(ctx, ev); err != nil {
			l.publishFailed(string(kind), []events.Message{{Type: kind, Data: ev}}, err)
		}
	})
}

func (l *Loop) clearTimers() {
	if l.bettingTimer != "" {
		l.timer.Clear(l.bettingTimer)
		l.bettingTimer = ""
	}
	if l.nextRoundTimer != "" {
		l.timer.Clear(l.nextRoundTimer)
		l.nextRoundTimer = ""
	}
}

func (l *Loop) seedAnchor() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seeds.Anchor()
}

func (l *Loop) seedsRemaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seeds.Remaining()
}

// loopAdmitter adds a bet only while its round is still the current one.
type loopAdmitter struct {
	loop  *Loop
	round *Round
}

func (a *loopAdmitter) AddBet(bet *Bet) error {
	a.loop.mu.Lock()
	defer a.loop.mu.Unlock()
	if a.loop.round != a.round {
		return &StateTransitionError{Entity: "round " + a.round.ID, Op: "add bet", From: "replaced"}
	}
	return a.round.AddBet(bet)
}

func betPayload(b *Bet) events.Bet {
	return events.Bet{
		BetID:       b.ID,
		PlayerID:    b.PlayerID,
		RoundID:     b.RoundID,
		AmountCents: b.Amount.Cents(),
		Status:      string(b.Status()),
	}
}

func betKey(cmd ports.PlaceBetCommand) string {
	return cmd.PlayerID + "\x00" + cmd.IdempotencyKey
}

func copyBatch(batch []events.TickEvent) []events.TickEvent {
	if len(batch) == 0 {
		return nil
	}
	return append([]events.TickEvent(nil), batch...)
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// inFlight counts background work and lets Drain wait for it.
type inFlight struct {
	mu   sync.Mutex
	n    int
	idle chan struct{}
}

func (f *inFlight) add() {
	f.mu.Lock()
	if f.n == 0 {
		f.idle = make(chan struct{})
	}
	f.n++
	f.mu.Unlock()
}

func (f *inFlight) done() {
	f.mu.Lock()
	f.n--
	if f.n == 0 {
		close(f.idle)
	}
	f.mu.Unlock()
}

func (f *inFlight) wait(ctx context.Context) error {
	f.mu.Lock()
	if f.n == 0 {
		f.mu.Unlock()
		return nil
	}
	idle := f.idle
	f.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

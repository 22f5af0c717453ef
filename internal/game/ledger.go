package game

// activeSet keeps a round's ACTIVE bets in insertion order. Removal
// tombstones the slot so iteration stays ordered; tombstones are compacted
// on insert once they outnumber live entries.
type activeSet struct {
	order []*Bet
	index map[string]int
	live  int
}

func newActiveSet() *activeSet {
	return &activeSet{index: make(map[string]int)}
}

func (s *activeSet) add(b *Bet) {
	if _, ok := s.index[b.ID]; ok {
		return
	}
	if dead := len(s.order) - s.live; dead > 32 && dead > s.live {
		s.compact()
	}
	s.index[b.ID] = len(s.order)
	s.order = append(s.order, b)
	s.live++
}

func (s *activeSet) remove(id string) {
	i, ok := s.index[id]
	if !ok {
		return
	}
	s.order[i] = nil
	delete(s.index, id)
	s.live--
}

func (s *activeSet) compact() {
	n := 0
	for _, b := range s.order {
		if b == nil {
			continue
		}
		s.order[n] = b
		s.index[b.ID] = n
		n++
	}
	for i := n; i < len(s.order); i++ {
		s.order[i] = nil
	}
	s.order = s.order[:n]
}

// BetLedger indexes bets by id, by round and by round for ACTIVE bets.
type BetLedger struct {
	byID     map[string]*Bet
	roundOf  map[string]string
	byRound  map[string][]*Bet
	byActive map[string]*activeSet
}

func NewBetLedger() *BetLedger {
	return &BetLedger{
		byID:     make(map[string]*Bet),
		roundOf:  make(map[string]string),
		byRound:  make(map[string][]*Bet),
		byActive: make(map[string]*activeSet),
	}
}

// Add upserts bet and brings every index in line with its current round
// and status. Re-adding an id under a different round drops the entries
// of the old round.
func (l *BetLedger) Add(bet *Bet) {
	if oldRound, ok := l.roundOf[bet.ID]; ok {
		if oldRound == bet.RoundID && l.byID[bet.ID] == bet {
			l.Refresh(bet)
			return
		}
		l.removeFromRound(oldRound, bet.ID)
		if set, ok := l.byActive[oldRound]; ok {
			set.remove(bet.ID)
		}
	}

	l.byID[bet.ID] = bet
	l.roundOf[bet.ID] = bet.RoundID
	l.byRound[bet.RoundID] = append(l.byRound[bet.RoundID], bet)
	l.Refresh(bet)
}

// Refresh updates the ACTIVE index after a status change.
func (l *BetLedger) Refresh(bet *Bet) {
	if bet.IsActive() {
		set, ok := l.byActive[bet.RoundID]
		if !ok {
			set = newActiveSet()
			l.byActive[bet.RoundID] = set
		}
		set.add(bet)
		return
	}
	if set, ok := l.byActive[bet.RoundID]; ok {
		set.remove(bet.ID)
	}
}

func (l *BetLedger) Get(id string) (*Bet, bool) {
	b, ok := l.byID[id]
	return b, ok
}

// ByRound returns a copy of every bet of the round in insertion order.
func (l *BetLedger) ByRound(roundID string) []*Bet {
	bets := l.byRound[roundID]
	if len(bets) == 0 {
		return nil
	}
	return append([]*Bet(nil), bets...)
}

// ActiveByRound returns a copy of the round's ACTIVE bets in insertion order.
func (l *BetLedger) ActiveByRound(roundID string) []*Bet {
	set, ok := l.byActive[roundID]
	if !ok {
		return nil
	}
	out := make([]*Bet, 0, set.live)
	for _, b := range set.order {
		if b != nil {
			out = append(out, b)
		}
	}
	return out
}

func (l *BetLedger) ActiveCount(roundID string) int {
	if set, ok := l.byActive[roundID]; ok {
		return set.live
	}
	return 0
}

// ForEachAutoCashout calls fn for every ACTIVE bet of the round whose
// auto-cashout threshold is at or below multiplier, in insertion order.
// fn may settle the bet; the index is updated in place without
// reordering.
func (l *BetLedger) ForEachAutoCashout(roundID string, multiplier float64, fn func(*Bet)) {
	set, ok := l.byActive[roundID]
	if !ok {
		return
	}
	for i := 0; i < len(set.order); i++ {
		b := set.order[i]
		if b == nil || !b.HasAutoCashout() || b.AutoCashoutMultiplier > multiplier {
			continue
		}
		fn(b)
	}
}

// GetAutoCashouts is the allocating variant of ForEachAutoCashout.
func (l *BetLedger) GetAutoCashouts(roundID string, multiplier float64) []*Bet {
	var out []*Bet
	l.ForEachAutoCashout(roundID, multiplier, func(b *Bet) {
		out = append(out, b)
	})
	return out
}

// ForEachActive calls fn for each ACTIVE bet of the round. fn may settle
// the bet.
func (l *BetLedger) ForEachActive(roundID string, fn func(*Bet)) {
	set, ok := l.byActive[roundID]
	if !ok {
		return
	}
	for i := 0; i < len(set.order); i++ {
		if b := set.order[i]; b != nil {
			fn(b)
		}
	}
}

func (l *BetLedger) ForEachInRound(roundID string, fn func(*Bet)) {
	for _, b := range l.byRound[roundID] {
		fn(b)
	}
}

// ClearRound drops every index entry of a settled round.
func (l *BetLedger) ClearRound(roundID string) {
	for _, b := range l.byRound[roundID] {
		if l.roundOf[b.ID] == roundID {
			delete(l.byID, b.ID)
			delete(l.roundOf, b.ID)
		}
	}
	delete(l.byRound, roundID)
	delete(l.byActive, roundID)
}

func (l *BetLedger) Len() int {
	return len(l.byID)
}

func (l *BetLedger) removeFromRound(roundID, id string) {
	bets := l.byRound[roundID]
	for i, b := range bets {
		if b.ID == id {
			l.byRound[roundID] = append(bets[:i], bets[i+1:]...)
			break
		}
	}
	if len(l.byRound[roundID]) == 0 {
		delete(l.byRound, roundID)
	}
}

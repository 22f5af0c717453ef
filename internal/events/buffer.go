package events

const defaultBufferCapacity = 1024

// TickEventBuffer is a double buffer. The tick pipeline pushes into the
// active side; Swap hands the filled side to delivery and starts a fresh
// active side on the previously flushed storage, so steady state does not
// allocate.
type TickEventBuffer struct {
	active []TickEvent
	flush  []TickEvent
}

func NewTickEventBuffer(capacity int) *TickEventBuffer {
	if capacity <= 0 {
		capacity = defaultBufferCapacity
	}
	return &TickEventBuffer{
		active: make([]TickEvent, 0, capacity),
		flush:  make([]TickEvent, 0, capacity),
	}
}

func (b *TickEventBuffer) Push(e TickEvent) {
	b.active = append(b.active, e)
}

func (b *TickEventBuffer) Len() int {
	return len(b.active)
}

// Swap returns the events pushed since the previous swap. The returned
// slice is only valid until the next Swap.
func (b *TickEventBuffer) Swap() []TickEvent {
	b.active, b.flush = b.flush[:0], b.active
	return b.flush
}

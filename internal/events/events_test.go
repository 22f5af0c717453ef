package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickEventBuffer_Swap(t *testing.T) {
	buf := NewTickEventBuffer(4)

	buf.Push(NewTickEvent("r1", 1.01, 100))
	buf.Push(NewTickEvent("r1", 1.02, 200))
	require.Equal(t, 2, buf.Len())

	batch := buf.Swap()
	require.Len(t, batch, 2)
	assert.Equal(t, 1.01, batch[0].Multiplier)
	assert.Equal(t, 1.02, batch[1].Multiplier)
	assert.Equal(t, 0, buf.Len())

	buf.Push(NewTickEvent("r1", 1.03, 300))
	batch = buf.Swap()
	require.Len(t, batch, 1)
	assert.Equal(t, 1.03, batch[0].Multiplier)

	assert.Empty(t, buf.Swap())
}

func TestTickEventBuffer_SteadyStateDoesNotAllocate(t *testing.T) {
	buf := NewTickEventBuffer(64)
	ev := NewTickEvent("r1", 1.5, 1000)

	allocs := testing.AllocsPerRun(100, func() {
		for i := 0; i < 32; i++ {
			buf.Push(ev)
		}
		buf.Swap()
	})
	assert.Zero(t, allocs)
}

func TestTickEvent_PayloadShapes(t *testing.T) {
	tests := []struct {
		name  string
		event TickEvent
		want  string
	}{
		{
			name:  "tick",
			event: NewTickEvent("r1", 1.25, 3500),
			want:  `{"type":"tick","data":{"roundId":"r1","multiplier":1.25,"elapsedMs":3500}}`,
		},
		{
			name:  "bet_won",
			event: NewBetWon("r1", "b1", "p1", 1000, 1.99, 1990),
			want:  `{"type":"bet_won","data":{"betId":"b1","playerId":"p1","roundId":"r1","amountCents":1000,"status":"WON","cashoutMultiplier":1.99,"payoutCents":1990}}`,
		},
		{
			name:  "bet_lost",
			event: NewBetLost("r1", "b2", "p2", 500, 2),
			want:  `{"type":"bet_lost","data":{"betId":"b2","playerId":"p2","roundId":"r1","amountCents":500,"status":"LOST","crashPoint":2}}`,
		},
		{
			name:  "round_crashed",
			event: NewRoundCrashed("r1", 2, "seed"),
			want:  `{"type":"round_crashed","data":{"roundId":"r1","crashPoint":2,"serverSeed":"seed"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event.Message())
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestInFlightPublishTracker_FIFO(t *testing.T) {
	tracker := NewInFlightPublishTracker(10)

	var mu sync.Mutex
	var order []int
	for i := 0; i < 20; i++ {
		i := i
		tracker.Track(func() {
			if i%3 == 0 {
				time.Sleep(time.Millisecond)
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tracker.Drain(ctx))

	require.Len(t, order, 20)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
	assert.Zero(t, tracker.InFlight())
}

func TestInFlightPublishTracker_TrackDoesNotBlock(t *testing.T) {
	tracker := NewInFlightPublishTracker(1)
	release := make(chan struct{})

	start := time.Now()
	for i := 0; i < 5; i++ {
		tracker.Track(func() { <-release })
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 5, tracker.InFlight())

	close(release)
	require.NoError(t, tracker.Drain(context.Background()))
}

func TestInFlightPublishTracker_DrainHonoursContext(t *testing.T) {
	tracker := NewInFlightPublishTracker(1)
	release := make(chan struct{})
	defer close(release)
	tracker.Track(func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tracker.Drain(ctx), context.DeadlineExceeded)
}

func TestInFlightPublishTracker_RecoversPanics(t *testing.T) {
	tracker := NewInFlightPublishTracker(1)
	tracker.Track(func() { panic("publisher bug") })

	ran := false
	done := tracker.Track(func() { ran = true })
	<-done
	assert.True(t, ran)
}

func TestInFlightPublishTracker_EmptyDrain(t *testing.T) {
	tracker := NewInFlightPublishTracker(0)
	assert.NoError(t, tracker.Drain(context.Background()))
}

func BenchmarkTickEventBuffer_PushSwap(b *testing.B) {
	buf := NewTickEventBuffer(1024)
	ev := NewBetWon("r1", "b1", "p1", 1000, 1.5, 1500)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Push(ev)
		if buf.Len() == 1000 {
			buf.Swap()
		}
	}
}

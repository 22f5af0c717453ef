package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"crashgame/internal/events"
)

const (
	REDIS_KEY_FAILED_EVENTS = "crash:events:failed"

	maxFailedEvents = 100000
)

// FailedEventStore keeps undelivered events in a capped Redis list, oldest
// first, for replay by an operator tool.
type FailedEventStore struct {
	client *redis.Client
	key    string
}

func NewFailedEventStore(client *redis.Client) *FailedEventStore {
	return &FailedEventStore{client: client, key: REDIS_KEY_FAILED_EVENTS}
}

func (s *FailedEventStore) AddBatch(ctx context.Context, batch []events.Message) error {
	if len(batch) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(batch))
	for _, msg := range batch {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to encode %s event: %w", msg.Type, err)
		}
		values = append(values, data)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.key, values...)
	pipe.LTrim(ctx, s.key, -maxFailedEvents, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store events: %w", err)
	}
	return nil
}

func (s *FailedEventStore) Len(ctx context.Context) (int64, error) {
	return s.client.LLen(ctx, s.key).Result()
}

// Pop removes and returns up to n of the oldest stored events.
func (s *FailedEventStore) Pop(ctx context.Context, n int) ([]json.RawMessage, error) {
	raw, err := s.client.LPopCount(ctx, s.key, n).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, len(raw))
	for i, r := range raw {
		out[i] = json.RawMessage(r)
	}
	return out, nil
}

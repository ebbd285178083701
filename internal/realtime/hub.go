package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "changes:"

// Hub fans change events out over Redis pub/sub, one channel per table.
type Hub struct {
	client *redis.Client
	log    *zap.Logger
}

func NewHub(client *redis.Client, log *zap.Logger) *Hub {
	return &Hub{client: client, log: log}
}

func (h *Hub) Publish(ctx context.Context, ev ChangeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	if err := h.client.Publish(ctx, channelPrefix+ev.Table, data).Err(); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, table string, filter Filter, handle func(ChangeEvent)) (Subscription, error) {
	ps := h.client.Subscribe(ctx, channelPrefix+table)

	// Wait for the subscription confirmation so no event published after
	// Subscribe returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", table, err)
	}

	sub := &redisSubscription{ps: ps, done: make(chan struct{})}
	go sub.run(h.log.With(zap.String("table", table)), filter, handle)
	return sub, nil
}

type redisSubscription struct {
	ps   *redis.PubSub
	done chan struct{}

	once sync.Once
	err  error
}

func (s *redisSubscription) run(log *zap.Logger, filter Filter, handle func(ChangeEvent)) {
	defer close(s.done)

	for msg := range s.ps.Channel() {
		var ev ChangeEvent
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			log.Warn("dropping malformed change event", zap.Error(err))
			continue
		}
		if matches(filter, ev) {
			handle(ev)
		}
	}
}

// Close stops delivery and waits for the dispatch goroutine to exit. It must
// not be called from inside the handler.
func (s *redisSubscription) Close() error {
	s.once.Do(func() {
		s.err = s.ps.Close()
		<-s.done
	})
	return s.err
}

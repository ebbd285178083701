package realtime

import (
	"context"
	"sync"
)

// Local is an in-process Publisher and Subscriber. Handlers run synchronously
// on the publishing goroutine.
type Local struct {
	mu   sync.RWMutex
	subs map[*localSubscription]struct{}
}

func NewLocal() *Local {
	return &Local{subs: make(map[*localSubscription]struct{})}
}

func (l *Local) Publish(_ context.Context, ev ChangeEvent) error {
	l.mu.RLock()
	targets := make([]*localSubscription, 0, len(l.subs))
	for s := range l.subs {
		if s.table == ev.Table && matches(s.filter, ev) {
			targets = append(targets, s)
		}
	}
	l.mu.RUnlock()

	for _, s := range targets {
		s.handle(ev)
	}
	return nil
}

func (l *Local) Subscribe(_ context.Context, table string, filter Filter, handle func(ChangeEvent)) (Subscription, error) {
	s := &localSubscription{owner: l, table: table, filter: filter, handle: handle}

	l.mu.Lock()
	l.subs[s] = struct{}{}
	l.mu.Unlock()

	return s, nil
}

// Subscribers reports how many subscriptions are open.
func (l *Local) Subscribers() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.subs)
}

type localSubscription struct {
	owner  *Local
	table  string
	filter Filter
	handle func(ChangeEvent)
}

func (s *localSubscription) Close() error {
	s.owner.mu.Lock()
	delete(s.owner.subs, s)
	s.owner.mu.Unlock()
	return nil
}

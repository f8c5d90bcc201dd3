// Package bridge routes engine push events to in-process subscribers.
//
// The engine connection delivers every event through a single sink
// callback. The bridge parses the wire channel name once, throttles the
// high-frequency progress channels, and fans the event out to whichever
// subscriptions are registered for that kind. Delivery is synchronous on
// the connection's read goroutine, so subscribers observe events in
// arrival order.
package bridge

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/lexhq/lex-desktop/internal/events"
	"github.com/lexhq/lex-desktop/internal/logging"
)

// Handler receives one event. Handlers run on the connection's read
// goroutine and must not block.
type Handler func(kind events.Kind, payload json.RawMessage)

// Bridge fans engine events out to subscribers.
type Bridge struct {
	logger *logging.Logger

	mu       sync.RWMutex
	subs     map[events.Kind]map[*Subscription]struct{}
	limiters map[events.Kind]*rate.Limiter
}

// New creates a bridge with no subscribers and no throttling.
func New(logger *logging.Logger) *Bridge {
	return &Bridge{
		logger:   logger,
		subs:     make(map[events.Kind]map[*Subscription]struct{}),
		limiters: make(map[events.Kind]*rate.Limiter),
	}
}

// SetProgressThrottle limits each progress channel to one delivery per
// interval. Terminal events are never throttled. A zero interval disables
// throttling.
func (b *Bridge) SetProgressThrottle(interval time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if interval <= 0 {
		b.limiters = make(map[events.Kind]*rate.Limiter)
		return
	}
	for _, k := range []events.Kind{events.KindPreprocessProgress, events.KindTrainingProgress} {
		b.limiters[k] = rate.NewLimiter(rate.Every(interval), 1)
	}
}

// Dispatch is the engine connection's event sink. Unknown channel names
// are logged and dropped so a renamed engine channel surfaces in logs
// instead of silently never matching.
func (b *Bridge) Dispatch(name string, payload json.RawMessage) {
	kind, ok := events.ParseKind(name)
	if !ok {
		b.logger.Warn().Str("event", name).Msg("Dropping event on unknown channel")
		return
	}

	b.mu.RLock()
	if kind.IsProgress() {
		if lim, throttled := b.limiters[kind]; throttled && !lim.Allow() {
			b.mu.RUnlock()
			return
		}
	}
	targets := make([]*Subscription, 0, len(b.subs[kind]))
	for s := range b.subs[kind] {
		if s.live.Load() {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		s.deliver(kind, payload)
	}
}

// Subscribe registers a handler for one event kind.
func (b *Bridge) Subscribe(kind events.Kind, h Handler) *Subscription {
	return b.SubscribeKinds([]events.Kind{kind}, h)
}

// SubscribeKinds registers one handler for several event kinds at once.
func (b *Bridge) SubscribeKinds(kinds []events.Kind, h Handler) *Subscription {
	s := &Subscription{bridge: b, kinds: append([]events.Kind(nil), kinds...)}
	s.handler.Store(&h)
	s.live.Store(true)

	b.mu.Lock()
	for _, k := range s.kinds {
		set := b.subs[k]
		if set == nil {
			set = make(map[*Subscription]struct{})
			b.subs[k] = set
		}
		set[s] = struct{}{}
	}
	b.mu.Unlock()
	return s
}

// Subscription is one registered handler. The handler slot is swappable
// without re-registering, and Unsubscribe guarantees the handler never
// fires again even for events already past the registry lookup.
type Subscription struct {
	bridge  *Bridge
	kinds   []events.Kind
	handler atomic.Pointer[Handler]
	live    atomic.Bool
}

// SetHandler swaps the handler in place. Cheaper than re-subscribing and
// keeps the subscription's position in delivery order.
func (s *Subscription) SetHandler(h Handler) {
	s.handler.Store(&h)
}

// Unsubscribe removes the subscription. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if !s.live.CompareAndSwap(true, false) {
		return
	}
	s.bridge.mu.Lock()
	for _, k := range s.kinds {
		delete(s.bridge.subs[k], s)
	}
	s.bridge.mu.Unlock()
}

func (s *Subscription) deliver(kind events.Kind, payload json.RawMessage) {
	// Liveness re-check: an event snapshotted before Unsubscribe must not
	// reach a dead handler.
	if !s.live.Load() {
		return
	}
	if hp := s.handler.Load(); hp != nil {
		(*hp)(kind, payload)
	}
}

// BatchSubscription tracks a mutable set of kinds behind one handler.
// Callers re-declare their full interest set on every change; the bridge
// registry is touched only when the set actually differs.
type BatchSubscription struct {
	bridge *Bridge

	mu    sync.Mutex
	sub   *Subscription
	kinds map[events.Kind]struct{}
}

// SubscribeBatch registers a handler for a set of kinds that may change
// over time.
func (b *Bridge) SubscribeBatch(kinds []events.Kind, h Handler) *BatchSubscription {
	bs := &BatchSubscription{bridge: b, kinds: kindSet(kinds)}
	bs.sub = b.SubscribeKinds(kinds, h)
	return bs
}

// Update declares the new full interest set. When only the handler
// changed, the existing registration is kept and the handler swapped;
// the registry is rewritten only when the kind set differs.
func (bs *BatchSubscription) Update(kinds []events.Kind, h Handler) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	next := kindSet(kinds)
	if setsEqual(bs.kinds, next) {
		bs.sub.SetHandler(h)
		return
	}
	bs.sub.Unsubscribe()
	bs.kinds = next
	bs.sub = bs.bridge.SubscribeKinds(kinds, h)
}

// Unsubscribe removes the current registration.
func (bs *BatchSubscription) Unsubscribe() {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.sub.Unsubscribe()
}

func kindSet(kinds []events.Kind) map[events.Kind]struct{} {
	m := make(map[events.Kind]struct{}, len(kinds))
	for _, k := range kinds {
		m[k] = struct{}{}
	}
	return m
}

func setsEqual(a, b map[events.Kind]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

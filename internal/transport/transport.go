// Package transport exposes the one event-based contract the outer
// application talks to, regardless of how bytes actually move. Two
// implementations satisfy it: Relay, a client of the server-authoritative
// websocket hub, and Local, a same-process broadcast bus. Connect picks
// the relay when it can be reached within a bounded timeout and otherwise
// falls back to the local bus.
package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/KyamichProjects/copaint/internal/domain"
	"github.com/KyamichProjects/copaint/internal/event"
	"github.com/KyamichProjects/copaint/internal/history"
)

// Handler consumes one inbound event.
type Handler func(event.Event)

// Transport is the single contract exposed to callers. Mutating calls are
// fire-and-forget: results come back through subscribed events, exactly as
// they do for every other member of the room.
type Transport interface {
	// Connect establishes the transport. Subscribers receive a Connected
	// event once the transport is usable.
	Connect(ctx context.Context) error
	Close() error

	CreateRoom(ctx context.Context) error
	JoinRoom(ctx context.Context, code string) error
	LeaveRoom(ctx context.Context, code string) error
	KickUser(ctx context.Context, code, targetID string) error
	StartGame(ctx context.Context, code string) error

	SubmitAction(ctx context.Context, code string, action domain.Action) error
	Undo(ctx context.Context, code string) error
	Redo(ctx context.Context, code string) error

	// SubmitDrawSegment and SubmitCursor are ephemeral: rate limited at
	// the sender, latest value wins, never queued and never logged.
	SubmitDrawSegment(ctx context.Context, code string, seg event.Segment) error
	SubmitCursor(ctx context.Context, code string, cur event.Cursor) error

	// SubmitChat passes an opaque payload through uninterpreted.
	SubmitChat(ctx context.Context, code string, payload json.RawMessage) error

	// Subscribe registers a handler for one event type and returns its
	// cancel function.
	Subscribe(t event.Type, h Handler) (cancel func())
}

// Config selects and parameterizes the transport implementation once at
// startup.
type Config struct {
	// RelayURL is the websocket endpoint of the authoritative server,
	// e.g. ws://host:8080/ws.
	RelayURL string
	// Token is the guest session token issued by the relay's REST surface.
	Token string
	// Username is the display name used by the local fallback, where no
	// token service exists.
	Username string
	// DialTimeout bounds the attempt to reach the relay before falling
	// back to the local bus.
	DialTimeout time.Duration
	// EphemeralMinInterval is the minimum interval between ephemeral
	// emissions (draw segments, cursor positions).
	EphemeralMinInterval time.Duration
}

const (
	defaultDialTimeout          = 5 * time.Second
	defaultEphemeralMinInterval = 50 * time.Millisecond
)

func (c *Config) applyDefaults() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultDialTimeout
	}
	if c.EphemeralMinInterval <= 0 {
		c.EphemeralMinInterval = defaultEphemeralMinInterval
	}
}

// Connect tries the server-authoritative relay first and, when it cannot
// be established within the configured timeout, degrades to the
// process-shared local bus. The local bus cannot provide cross-device
// consistency: only participants inside the same process observe each
// other. Selection happens exactly once, here, not per call.
func Connect(ctx context.Context, cfg Config) (Transport, error) {
	cfg.applyDefaults()

	relay := NewRelay(cfg)
	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	err := relay.Connect(dialCtx)
	if err == nil {
		return relay, nil
	}
	logrus.WithError(err).WithField("relay_url", cfg.RelayURL).
		Warn("Relay unreachable, falling back to local transport")

	local := sharedBus().NewTransport(cfg)
	if err := local.Connect(ctx); err != nil {
		return nil, err
	}
	return local, nil
}

var (
	_ Transport = (*Relay)(nil)
	_ Transport = (*Local)(nil)
)

var defaultBus struct {
	once sync.Once
	bus  *Bus
}

func sharedBus() *Bus {
	defaultBus.once.Do(func() {
		defaultBus.bus = NewBus(history.DefaultLimit)
	})
	return defaultBus.bus
}

// subscribers is the handler table shared by both implementations.
type subscribers struct {
	mu     sync.RWMutex
	nextID int
	byType map[event.Type]map[int]Handler
}

func (s *subscribers) subscribe(t event.Type, h Handler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byType == nil {
		s.byType = make(map[event.Type]map[int]Handler)
	}
	if s.byType[t] == nil {
		s.byType[t] = make(map[int]Handler)
	}
	id := s.nextID
	s.nextID++
	s.byType[t][id] = h
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.byType[t], id)
	}
}

func (s *subscribers) dispatch(ev event.Event) {
	s.mu.RLock()
	handlers := make([]Handler, 0, len(s.byType[ev.Type]))
	for _, h := range s.byType[ev.Type] {
		handlers = append(handlers, h)
	}
	s.mu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
}

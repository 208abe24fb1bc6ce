package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/KyamichProjects/copaint/internal/domain"
	"github.com/KyamichProjects/copaint/internal/event"
	"github.com/KyamichProjects/copaint/internal/session"
)

// Bus is the same-process fallback for the relay: it owns a private
// session registry and fans events out to every attached transport,
// driving the registry through exactly the same inputs the hub does. It
// cannot provide cross-device consistency — only participants sharing
// this process observe each other — which is the documented limitation of
// the fallback, not something to silently upgrade.
type Bus struct {
	mu         sync.Mutex
	registry   *session.Registry
	members    map[string]*Local
	memberRoom map[string]string
}

// NewBus creates an empty local bus whose rooms retain at most
// historyLimit actions.
func NewBus(historyLimit int) *Bus {
	return &Bus{
		registry:   session.NewRegistry(historyLimit),
		members:    make(map[string]*Local),
		memberRoom: make(map[string]string),
	}
}

// NewTransport attaches a new, not yet connected transport to the bus.
func (b *Bus) NewTransport(cfg Config) *Local {
	cfg.applyDefaults()
	return &Local{
		bus:         b,
		username:    cfg.Username,
		segThrottle: newThrottle(cfg.EphemeralMinInterval),
		curThrottle: newThrottle(cfg.EphemeralMinInterval),
	}
}

// dispatch runs one registry operation and routes its notices while the
// bus lock is held, so intents are arbitrated strictly one at a time —
// the in-process equivalent of the relay's single arbitration point.
func (b *Bus) dispatch(op func(reg *session.Registry) []session.Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.route(op(b.registry))
}

func (b *Bus) route(notices []session.Notice) {
	for _, n := range notices {
		switch n.Audience {
		case session.ToMember:
			if l, ok := b.members[n.MemberID]; ok {
				l.push(n.Event)
			}
		case session.ToRoom, session.ToRoomExcept:
			for memberID, l := range b.members {
				if b.memberRoom[memberID] != n.Event.Room {
					continue
				}
				if n.Audience == session.ToRoomExcept && memberID == n.MemberID {
					continue
				}
				l.push(n.Event)
			}
		}
	}
}

// Local is the same-device transport implementation backed by a Bus.
type Local struct {
	bus      *Bus
	username string

	mu       sync.Mutex
	memberID string
	events   chan event.Event
	done     chan struct{}

	subs        subscribers
	segThrottle *throttle
	curThrottle *throttle

	closeOnce sync.Once
}

// Connect mints the member identity, attaches to the bus and starts the
// delivery pump.
func (l *Local) Connect(ctx context.Context) error {
	l.mu.Lock()
	if l.memberID != "" {
		l.mu.Unlock()
		return errors.New("local transport already connected")
	}
	l.memberID = uuid.NewString()
	l.events = make(chan event.Event, 256)
	l.done = make(chan struct{})
	l.mu.Unlock()

	l.bus.mu.Lock()
	l.bus.members[l.memberID] = l
	l.bus.mu.Unlock()

	go l.pump()
	l.subs.dispatch(event.Event{Type: event.Connected})
	logrus.WithField("member_id", l.memberID).Info("Connected to local bus")
	return nil
}

// Close detaches from the bus, leaving any joined room on the way out,
// and signals Disconnected.
func (l *Local) Close() error {
	l.closeOnce.Do(func() {
		l.bus.mu.Lock()
		if code, ok := l.bus.memberRoom[l.memberID]; ok {
			l.bus.route(l.bus.registry.Leave(code, l.memberID))
			delete(l.bus.memberRoom, l.memberID)
		}
		delete(l.bus.members, l.memberID)
		l.bus.mu.Unlock()
		close(l.done)
		l.subs.dispatch(event.Event{Type: event.Disconnected})
	})
	return nil
}

// push hands an event to the delivery pump, dropping when the subscriber
// cannot keep up.
func (l *Local) push(ev event.Event) {
	select {
	case l.events <- ev:
	default:
		logrus.WithFields(logrus.Fields{
			"member_id":  l.memberID,
			"event_type": ev.Type,
		}).Warn("Local transport buffer full, dropping event")
	}
}

func (l *Local) pump() {
	for {
		select {
		case ev := <-l.events:
			l.subs.dispatch(ev)
		case <-l.done:
			return
		}
	}
}

func (l *Local) CreateRoom(ctx context.Context) error {
	l.bus.mu.Lock()
	defer l.bus.mu.Unlock()
	l.leaveLocked()
	code, notices, err := l.bus.registry.CreateRoom(l.memberID, l.username)
	if err != nil {
		return err
	}
	l.bus.memberRoom[l.memberID] = code
	l.bus.route(notices)
	return nil
}

func (l *Local) JoinRoom(ctx context.Context, code string) error {
	l.bus.mu.Lock()
	defer l.bus.mu.Unlock()
	l.leaveLocked()
	notices, err := l.bus.registry.JoinRoom(code, l.memberID, l.username)
	if errors.Is(err, session.ErrRoomNotFound) {
		// Reported to the caller only.
		l.push(event.Event{Type: event.ErrRoomNotFound, Room: domain.NormalizeRoomCode(code)})
		return nil
	}
	if err != nil {
		return err
	}
	l.bus.memberRoom[l.memberID] = domain.NormalizeRoomCode(code)
	l.bus.route(notices)
	return nil
}

func (l *Local) LeaveRoom(ctx context.Context, code string) error {
	l.bus.mu.Lock()
	defer l.bus.mu.Unlock()
	l.leaveLocked()
	return nil
}

// leaveLocked leaves the current room, if any. Callers hold the bus lock.
func (l *Local) leaveLocked() {
	if code, ok := l.bus.memberRoom[l.memberID]; ok {
		notices := l.bus.registry.Leave(code, l.memberID)
		delete(l.bus.memberRoom, l.memberID)
		l.bus.route(notices)
	}
}

func (l *Local) KickUser(ctx context.Context, code, targetID string) error {
	l.bus.mu.Lock()
	defer l.bus.mu.Unlock()
	notices := l.bus.registry.Kick(code, l.memberID, targetID)
	l.bus.route(notices)
	if len(notices) > 0 {
		delete(l.bus.memberRoom, targetID)
	}
	return nil
}

func (l *Local) StartGame(ctx context.Context, code string) error {
	l.bus.dispatch(func(reg *session.Registry) []session.Notice {
		return reg.StartGame(code, l.memberID)
	})
	return nil
}

func (l *Local) SubmitAction(ctx context.Context, code string, action domain.Action) error {
	var appendErr error
	l.bus.dispatch(func(reg *session.Registry) []session.Notice {
		notices, err := reg.Append(code, l.memberID, action)
		appendErr = err
		return notices
	})
	return appendErr
}

func (l *Local) Undo(ctx context.Context, code string) error {
	l.bus.dispatch(func(reg *session.Registry) []session.Notice {
		return reg.Undo(code, l.memberID)
	})
	return nil
}

func (l *Local) Redo(ctx context.Context, code string) error {
	l.bus.dispatch(func(reg *session.Registry) []session.Notice {
		return reg.Redo(code, l.memberID)
	})
	return nil
}

func (l *Local) SubmitDrawSegment(ctx context.Context, code string, seg event.Segment) error {
	l.segThrottle.Do(func() {
		l.bus.dispatch(func(reg *session.Registry) []session.Notice {
			return reg.DrawSegment(code, l.memberID, seg)
		})
	})
	return nil
}

func (l *Local) SubmitCursor(ctx context.Context, code string, cur event.Cursor) error {
	l.curThrottle.Do(func() {
		l.bus.dispatch(func(reg *session.Registry) []session.Notice {
			return reg.Cursor(code, l.memberID, cur)
		})
	})
	return nil
}

func (l *Local) SubmitChat(ctx context.Context, code string, payload json.RawMessage) error {
	l.bus.dispatch(func(reg *session.Registry) []session.Notice {
		return reg.Chat(code, l.memberID, payload)
	})
	return nil
}

func (l *Local) Subscribe(t event.Type, h Handler) func() {
	return l.subs.subscribe(t, h)
}

// MemberID returns the identity minted at Connect; empty before Connect.
func (l *Local) MemberID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.memberID
}

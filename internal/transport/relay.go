package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/KyamichProjects/copaint/internal/domain"
	"github.com/KyamichProjects/copaint/internal/event"
)

// Relay is the server-authoritative transport: every mutating call is a
// round trip to the hub, whose arrival order defines the canonical order
// of the room's history.
type Relay struct {
	cfg Config

	writeMu sync.Mutex
	conn    *websocket.Conn

	subs        subscribers
	segThrottle *throttle
	curThrottle *throttle

	closeOnce sync.Once
}

// NewRelay creates an unconnected relay transport.
func NewRelay(cfg Config) *Relay {
	cfg.applyDefaults()
	return &Relay{
		cfg:         cfg,
		segThrottle: newThrottle(cfg.EphemeralMinInterval),
		curThrottle: newThrottle(cfg.EphemeralMinInterval),
	}
}

// Connect dials the relay endpoint and starts the read loop.
func (r *Relay) Connect(ctx context.Context) error {
	u, err := url.Parse(r.cfg.RelayURL)
	if err != nil {
		return fmt.Errorf("invalid relay URL: %w", err)
	}
	q := u.Query()
	q.Set("token", r.cfg.Token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to dial relay: %w", err)
	}
	r.writeMu.Lock()
	r.conn = conn
	r.writeMu.Unlock()

	go r.readLoop(conn)
	r.subs.dispatch(event.Event{Type: event.Connected})
	logrus.WithField("relay_url", r.cfg.RelayURL).Info("Connected to relay")
	return nil
}

// Close tears the connection down and signals Disconnected.
func (r *Relay) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.writeMu.Lock()
		if r.conn != nil {
			err = r.conn.Close()
		}
		r.writeMu.Unlock()
		r.subs.dispatch(event.Event{Type: event.Disconnected})
	})
	return err
}

func (r *Relay) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			logrus.WithError(err).Debug("Relay read loop ended")
			r.subs.dispatch(event.Event{Type: event.Disconnected})
			return
		}
		var ev event.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			logrus.WithError(err).Warn("Dropping undecodable relay event")
			continue
		}
		r.subs.dispatch(ev)
	}
}

func (r *Relay) send(cmd event.Command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if r.conn == nil {
		return errors.New("relay is not connected")
	}
	return r.conn.WriteMessage(websocket.TextMessage, payload)
}

func (r *Relay) CreateRoom(ctx context.Context) error {
	return r.send(event.Command{Type: event.CmdCreateRoom})
}

func (r *Relay) JoinRoom(ctx context.Context, code string) error {
	return r.send(event.Command{Type: event.CmdJoinRoom, Room: code})
}

func (r *Relay) LeaveRoom(ctx context.Context, code string) error {
	return r.send(event.Command{Type: event.CmdLeaveRoom, Room: code})
}

func (r *Relay) KickUser(ctx context.Context, code, targetID string) error {
	return r.send(event.Command{Type: event.CmdKickUser, Room: code, TargetID: targetID})
}

func (r *Relay) StartGame(ctx context.Context, code string) error {
	return r.send(event.Command{Type: event.CmdStartGame, Room: code})
}

func (r *Relay) SubmitAction(ctx context.Context, code string, action domain.Action) error {
	return r.send(event.Command{Type: event.CmdSubmitAction, Room: code, Action: &action})
}

func (r *Relay) Undo(ctx context.Context, code string) error {
	return r.send(event.Command{Type: event.CmdUndo, Room: code})
}

func (r *Relay) Redo(ctx context.Context, code string) error {
	return r.send(event.Command{Type: event.CmdRedo, Room: code})
}

func (r *Relay) SubmitDrawSegment(ctx context.Context, code string, seg event.Segment) error {
	r.segThrottle.Do(func() {
		if err := r.send(event.Command{Type: event.CmdDrawSegment, Room: code, Segment: &seg}); err != nil {
			logrus.WithError(err).Debug("Dropping draw segment")
		}
	})
	return nil
}

func (r *Relay) SubmitCursor(ctx context.Context, code string, cur event.Cursor) error {
	r.curThrottle.Do(func() {
		if err := r.send(event.Command{Type: event.CmdCursor, Room: code, Cursor: &cur}); err != nil {
			logrus.WithError(err).Debug("Dropping cursor update")
		}
	})
	return nil
}

func (r *Relay) SubmitChat(ctx context.Context, code string, payload json.RawMessage) error {
	return r.send(event.Command{Type: event.CmdChat, Room: code, Chat: payload})
}

func (r *Relay) Subscribe(t event.Type, h Handler) func() {
	return r.subs.subscribe(t, h)
}

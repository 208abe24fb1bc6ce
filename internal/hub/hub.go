// Package hub is the server side of the authoritative relay: it owns the
// live websocket clients, feeds their intents into the session registry
// and fans resulting events back out to room members. The hub loop
// processes one message at a time, so the order it hands appends to the
// registry is the canonical "arrival order" for concurrent submissions.
package hub

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/KyamichProjects/copaint/internal/domain"
	"github.com/KyamichProjects/copaint/internal/event"
	"github.com/KyamichProjects/copaint/internal/session"
)

type msgKind int

const (
	msgRegister msgKind = iota
	msgUnregister
	msgFrame
)

type hubMessage struct {
	kind   msgKind
	client *Client
	raw    []byte
}

// Hub coordinates clients and the session registry. All of its maps are
// touched only from the Run loop, so they need no locking.
type Hub struct {
	messageChan chan hubMessage
	registry    *session.Registry

	byMember   map[string]*Client            // member id -> connection
	rooms      map[string]map[string]*Client // room code -> member id -> connection
	memberRoom map[string]string             // member id -> room code
}

// NewHub creates a hub backed by the given registry.
func NewHub(registry *session.Registry) *Hub {
	if registry == nil {
		panic("session registry cannot be nil for Hub")
	}
	return &Hub{
		messageChan: make(chan hubMessage, 512),
		registry:    registry,
		byMember:    make(map[string]*Client),
		rooms:       make(map[string]map[string]*Client),
		memberRoom:  make(map[string]string),
	}
}

// Register queues a freshly upgraded client for registration. Reports
// false when the hub is overloaded.
func (h *Hub) Register(c *Client) bool {
	return h.enqueue(hubMessage{kind: msgRegister, client: c})
}

func (h *Hub) enqueue(msg hubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		return false
	}
}

// Waiting bound for queueing an unregister when the hub loop is backed up.
const unregisterWait = 30 * time.Second

// enqueueUnregister queues an unregister message, waiting for the hub
// loop to drain a slot when the channel is full. Unlike data frames,
// unregister has no retry path: dropping it would strand the member in
// its room on a dead connection.
func (h *Hub) enqueueUnregister(c *Client) {
	select {
	case h.messageChan <- hubMessage{kind: msgUnregister, client: c}:
	case <-time.After(unregisterWait):
		logrus.WithFields(logrus.Fields{
			"component": "hub",
			"member_id": c.memberID,
		}).Error("Timed out queueing client unregister")
	}
}

// Stop closes the hub's message channel, ending Run.
func (h *Hub) Stop() {
	close(h.messageChan)
}

// Run is the hub's event loop. It must run in exactly one goroutine.
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running")
	for msg := range h.messageChan {
		switch msg.kind {
		case msgRegister:
			h.register(msg.client)
		case msgUnregister:
			h.unregister(msg.client)
		case msgFrame:
			h.handleFrame(msg.client, msg.raw)
		}
	}
	log.Info("Hub stopped")
}

func (h *Hub) register(c *Client) {
	if old, ok := h.byMember[c.memberID]; ok && old != c {
		// A second connection for the same guest token replaces the first.
		h.unregister(old)
		old.CloseConn()
	}
	h.byMember[c.memberID] = c
	logrus.WithFields(logrus.Fields{"component": "hub", "member_id": c.memberID}).Info("Client registered")
}

func (h *Hub) unregister(c *Client) {
	if current, ok := h.byMember[c.memberID]; !ok || current != c {
		return
	}
	if code, ok := h.memberRoom[c.memberID]; ok {
		notices := h.registry.Leave(code, c.memberID)
		h.removeFromRoom(code, c.memberID)
		h.route(notices)
	}
	delete(h.byMember, c.memberID)
	close(c.send)
	logrus.WithFields(logrus.Fields{"component": "hub", "member_id": c.memberID}).Info("Client unregistered")
}

func (h *Hub) handleFrame(c *Client, raw []byte) {
	logCtx := logrus.WithFields(logrus.Fields{"component": "hub", "member_id": c.memberID})

	cmd, err := event.DecodeCommand(raw)
	if err != nil {
		logCtx.WithError(err).Warn("Dropping undecodable client frame")
		return
	}

	switch cmd.Type {
	case event.CmdCreateRoom:
		h.leaveCurrentRoom(c)
		code, notices, err := h.registry.CreateRoom(c.memberID, c.username)
		if err != nil {
			logCtx.WithError(err).Error("Failed to create room")
			return
		}
		h.addToRoom(code, c)
		h.route(notices)

	case event.CmdJoinRoom:
		h.leaveCurrentRoom(c)
		notices, err := h.registry.JoinRoom(cmd.Room, c.memberID, c.username)
		if errors.Is(err, session.ErrRoomNotFound) {
			// Reported to the caller only, never broadcast.
			h.deliver(c, event.Event{Type: event.ErrRoomNotFound, Room: domain.NormalizeRoomCode(cmd.Room)})
			return
		}
		if err != nil {
			logCtx.WithError(err).Error("Failed to join room")
			return
		}
		h.addToRoom(domain.NormalizeRoomCode(cmd.Room), c)
		h.route(notices)

	case event.CmdLeaveRoom:
		h.leaveCurrentRoom(c)

	case event.CmdKickUser:
		notices := h.registry.Kick(cmd.Room, c.memberID, cmd.TargetID)
		// The kicked notice reaches the target before it loses its spot in
		// the transport-level group.
		h.route(notices)
		if len(notices) > 0 {
			h.removeFromRoom(domain.NormalizeRoomCode(cmd.Room), cmd.TargetID)
		}

	case event.CmdStartGame:
		h.route(h.registry.StartGame(cmd.Room, c.memberID))

	case event.CmdSubmitAction:
		if cmd.Action == nil {
			logCtx.Warn("submit_action without an action payload")
			return
		}
		notices, err := h.registry.Append(cmd.Room, c.memberID, *cmd.Action)
		if err != nil {
			logCtx.WithError(err).Warn("Rejected durable action")
			return
		}
		h.route(notices)

	case event.CmdUndo:
		h.route(h.registry.Undo(cmd.Room, c.memberID))

	case event.CmdRedo:
		h.route(h.registry.Redo(cmd.Room, c.memberID))

	case event.CmdDrawSegment:
		if cmd.Segment != nil {
			h.route(h.registry.DrawSegment(cmd.Room, c.memberID, *cmd.Segment))
		}

	case event.CmdCursor:
		if cmd.Cursor != nil {
			h.route(h.registry.Cursor(cmd.Room, c.memberID, *cmd.Cursor))
		}

	case event.CmdChat:
		h.route(h.registry.Chat(cmd.Room, c.memberID, cmd.Chat))
	}
}

func (h *Hub) leaveCurrentRoom(c *Client) {
	code, ok := h.memberRoom[c.memberID]
	if !ok {
		return
	}
	notices := h.registry.Leave(code, c.memberID)
	h.removeFromRoom(code, c.memberID)
	h.route(notices)
}

func (h *Hub) addToRoom(code string, c *Client) {
	group, ok := h.rooms[code]
	if !ok {
		group = make(map[string]*Client)
		h.rooms[code] = group
	}
	group[c.memberID] = c
	h.memberRoom[c.memberID] = code
}

func (h *Hub) removeFromRoom(code, memberID string) {
	if group, ok := h.rooms[code]; ok {
		delete(group, memberID)
		if len(group) == 0 {
			delete(h.rooms, code)
		}
	}
	delete(h.memberRoom, memberID)
}

// route delivers a batch of registry notices to the connections they
// address, in order.
func (h *Hub) route(notices []session.Notice) {
	for _, n := range notices {
		switch n.Audience {
		case session.ToMember:
			if c, ok := h.byMember[n.MemberID]; ok {
				h.deliver(c, n.Event)
			}
		case session.ToRoom, session.ToRoomExcept:
			for memberID, c := range h.rooms[n.Event.Room] {
				if n.Audience == session.ToRoomExcept && memberID == n.MemberID {
					continue
				}
				h.deliver(c, n.Event)
			}
		}
	}
}

func (h *Hub) deliver(c *Client, ev event.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logrus.WithError(err).WithField("event_type", ev.Type).Error("Failed to marshal event")
		return
	}
	select {
	case c.send <- payload:
	default:
		logrus.WithFields(logrus.Fields{
			"component":  "hub",
			"member_id":  c.memberID,
			"event_type": ev.Type,
		}).Warn("Client send buffer full, dropping event")
	}
}

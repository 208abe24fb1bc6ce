// Package session implements the authoritative session registry: room
// lifecycle, membership, host authority and durable-action bookkeeping.
// Every mutation of a given room is serialized behind that room's lock, so
// the order in which the registry processes appends is the canonical order
// of the room's history. Distinct rooms proceed independently.
package session

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/KyamichProjects/copaint/internal/domain"
	"github.com/KyamichProjects/copaint/internal/event"
	"github.com/KyamichProjects/copaint/internal/history"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrNotMember    = errors.New("member does not belong to the room")
)

const maxCodeAttempts = 10

type room struct {
	mu      sync.Mutex
	code    string
	members []domain.Member
	log     *history.Log
	closed  bool // set when the last member left; the room is being discarded
}

func (r *room) snapshot() domain.Room {
	members := make([]domain.Member, len(r.members))
	copy(members, r.members)
	return domain.Room{Code: r.code, Members: members}
}

func (r *room) memberIndex(memberID string) int {
	for i := range r.members {
		if r.members[i].ID == memberID {
			return i
		}
	}
	return -1
}

func (r *room) isHost(memberID string) bool {
	i := r.memberIndex(memberID)
	return i >= 0 && r.members[i].Host
}

// Registry owns the live table of rooms keyed by normalized room code.
type Registry struct {
	historyLimit int

	mu    sync.RWMutex
	rooms map[string]*room
}

// NewRegistry creates an empty registry whose rooms retain at most
// historyLimit durable actions each.
func NewRegistry(historyLimit int) *Registry {
	return &Registry{
		historyLimit: historyLimit,
		rooms:        make(map[string]*room),
	}
}

// CreateRoom allocates a fresh room with the creator as its host and
// returns the creator's join notices (roomJoined plus an empty
// historySync, mirroring the join flow).
func (reg *Registry) CreateRoom(memberID, username string) (string, []Notice, error) {
	member := domain.Member{
		ID:       memberID,
		Username: username,
		Host:     true,
		Color:    domain.Palette[0],
	}

	rm := &room{log: history.NewLog(reg.historyLimit), members: []domain.Member{member}}

	reg.mu.Lock()
	var code string
	for attempt := 0; ; attempt++ {
		c, err := domain.NewRoomCode()
		if err != nil {
			reg.mu.Unlock()
			return "", nil, err
		}
		if _, taken := reg.rooms[c]; !taken {
			code = c
			break
		}
		if attempt+1 >= maxCodeAttempts {
			reg.mu.Unlock()
			return "", nil, errors.New("failed to allocate an unused room code")
		}
	}
	rm.code = code
	reg.rooms[code] = rm
	reg.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"component": "session",
		"room":      code,
		"member_id": memberID,
	}).Info("Room created")

	snap := rm.snapshot()
	notices := []Notice{
		toMember(memberID, event.Event{Type: event.RoomJoined, Room: code, Members: snap.Members}),
		toMember(memberID, event.Event{Type: event.HistorySync, Room: code, History: []domain.Action{}}),
	}
	return code, notices, nil
}

// JoinRoom adds a member to an existing room. Existing members are told
// about the newcomer; the newcomer alone additionally receives the room
// snapshot and the full history. Fails with ErrRoomNotFound when the code
// is unknown; that failure is reported to the caller only.
func (reg *Registry) JoinRoom(code, memberID, username string) ([]Notice, error) {
	rm, ok := reg.lookup(code)
	if !ok {
		return nil, ErrRoomNotFound
	}

	rm.mu.Lock()
	if rm.closed {
		rm.mu.Unlock()
		return nil, ErrRoomNotFound
	}
	member := domain.Member{
		ID:       memberID,
		Username: username,
		Color:    domain.PickColor(rm.members),
	}
	rm.members = append(rm.members, member)
	snap := rm.snapshot()
	hist := rm.log.Actions()
	rm.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"component": "session",
		"room":      snap.Code,
		"member_id": memberID,
	}).Info("Member joined room")

	return []Notice{
		toRoomExcept(memberID, event.Event{Type: event.MemberJoined, Room: snap.Code, Member: &member}),
		toMember(memberID, event.Event{Type: event.RoomJoined, Room: snap.Code, Members: snap.Members}),
		toMember(memberID, event.Event{Type: event.HistorySync, Room: snap.Code, History: hist}),
	}, nil
}

// Leave removes a member from a room; abrupt disconnects are normalized
// into this same path. If the departing member held host authority and the
// room stays non-empty, authority transfers to the first remaining member
// in join order and the updated membership is broadcast. An emptied room
// is discarded together with its history.
func (reg *Registry) Leave(code, memberID string) []Notice {
	rm, ok := reg.lookup(code)
	if !ok {
		return nil
	}

	rm.mu.Lock()
	i := rm.memberIndex(memberID)
	if i < 0 {
		rm.mu.Unlock()
		return nil
	}
	wasHost := rm.members[i].Host
	rm.members = append(rm.members[:i], rm.members[i+1:]...)

	logCtx := logrus.WithFields(logrus.Fields{
		"component": "session",
		"room":      rm.code,
		"member_id": memberID,
	})

	if len(rm.members) == 0 {
		rm.closed = true
		rm.mu.Unlock()
		reg.mu.Lock()
		delete(reg.rooms, rm.code)
		reg.mu.Unlock()
		logCtx.Info("Last member left, room discarded")
		return nil
	}

	notices := []Notice{
		toRoomExcept(memberID, event.Event{Type: event.MemberLeft, Room: rm.code, MemberID: memberID}),
	}
	if wasHost {
		rm.members[0].Host = true
		snap := rm.snapshot()
		notices = append(notices,
			toRoomExcept(memberID, event.Event{Type: event.MembershipUpdated, Room: rm.code, Members: snap.Members}))
		logCtx.WithField("new_host", rm.members[0].ID).Info("Host left, authority migrated")
	}
	rm.mu.Unlock()

	logCtx.Info("Member left room")
	return notices
}

// Kick forcibly removes target from the room. It is a silent no-op unless
// the requester currently holds host authority: unauthorized kicks change
// nothing and surface no error. On success the target alone is told it was
// kicked before the regular leave path runs.
func (reg *Registry) Kick(code, requesterID, targetID string) []Notice {
	rm, ok := reg.lookup(code)
	if !ok {
		return nil
	}

	rm.mu.Lock()
	authorized := rm.isHost(requesterID) && rm.memberIndex(targetID) >= 0 && requesterID != targetID
	rm.mu.Unlock()
	if !authorized {
		logrus.WithFields(logrus.Fields{
			"component": "session",
			"room":      rm.code,
			"member_id": requesterID,
		}).Debug("Ignoring kick from non-host")
		return nil
	}

	notices := []Notice{
		toMember(targetID, event.Event{Type: event.Kicked, Room: rm.code}),
	}
	return append(notices, reg.Leave(code, targetID)...)
}

// StartGame broadcasts the session start signal. Only the host may start;
// anyone else is silently ignored. No further bookkeeping is attached.
func (reg *Registry) StartGame(code, requesterID string) []Notice {
	rm, ok := reg.lookup(code)
	if !ok {
		return nil
	}
	rm.mu.Lock()
	authorized := rm.isHost(requesterID)
	rm.mu.Unlock()
	if !authorized {
		return nil
	}
	return []Notice{toRoom(event.Event{Type: event.GameStarted, Room: rm.code})}
}

// Append records a durable action and returns the historyAction broadcast
// for every member of the room, the author included. Self-echo is safe
// because rendering an action is idempotent.
func (reg *Registry) Append(code, memberID string, action domain.Action) ([]Notice, error) {
	rm, ok := reg.lookup(code)
	if !ok {
		return nil, ErrRoomNotFound
	}

	action.AuthorID = memberID
	if err := action.Validate(); err != nil {
		return nil, err
	}

	rm.mu.Lock()
	if rm.memberIndex(memberID) < 0 {
		rm.mu.Unlock()
		return nil, ErrNotMember
	}
	evicted := rm.log.Append(action)
	rm.mu.Unlock()

	logCtx := logrus.WithFields(logrus.Fields{
		"component":   "session",
		"room":        rm.code,
		"member_id":   memberID,
		"action_type": action.Type,
	})
	if evicted {
		logCtx.Debug("History at capacity, evicted oldest action")
	}
	logCtx.Debug("Action appended")

	return []Notice{toRoom(event.Event{Type: event.HistoryAction, Room: rm.code, Action: &action})}, nil
}

// Undo pops the room's most recent action and broadcasts the entire
// remaining history as a full resync. Undo authority is global: any member
// may undo any member's latest action. A no-op on empty history.
func (reg *Registry) Undo(code, memberID string) []Notice {
	return reg.timeline(code, memberID, func(l *history.Log) ([]domain.Action, bool) { return l.Undo() })
}

// Redo re-applies the most recently undone action and broadcasts the
// resulting history as a full resync. A no-op on an empty redo stack.
func (reg *Registry) Redo(code, memberID string) []Notice {
	return reg.timeline(code, memberID, func(l *history.Log) ([]domain.Action, bool) { return l.Redo() })
}

func (reg *Registry) timeline(code, memberID string, op func(*history.Log) ([]domain.Action, bool)) []Notice {
	rm, ok := reg.lookup(code)
	if !ok {
		return nil
	}
	rm.mu.Lock()
	if rm.memberIndex(memberID) < 0 {
		rm.mu.Unlock()
		return nil
	}
	hist, changed := op(rm.log)
	rm.mu.Unlock()
	if !changed {
		return nil
	}
	return []Notice{toRoom(event.Event{Type: event.HistorySync, Room: rm.code, History: hist})}
}

// DrawSegment fans an ephemeral in-progress stroke segment out to every
// member except the sender. Segments are never logged and never replayed.
func (reg *Registry) DrawSegment(code, memberID string, seg event.Segment) []Notice {
	if !reg.isMember(code, memberID) {
		return nil
	}
	return []Notice{toRoomExcept(memberID, event.Event{
		Type: event.DrawSegment, Room: domain.NormalizeRoomCode(code), MemberID: memberID, Segment: &seg,
	})}
}

// Cursor fans an ephemeral cursor position out to every member except the
// sender.
func (reg *Registry) Cursor(code, memberID string, cur event.Cursor) []Notice {
	if !reg.isMember(code, memberID) {
		return nil
	}
	cur.MemberID = memberID
	return []Notice{toRoomExcept(memberID, event.Event{
		Type: event.CursorMoved, Room: domain.NormalizeRoomCode(code), MemberID: memberID, Cursor: &cur,
	})}
}

// Chat passes an opaque chat payload through to every member, sender
// included. The core does not interpret it.
func (reg *Registry) Chat(code, memberID string, payload []byte) []Notice {
	if !reg.isMember(code, memberID) {
		return nil
	}
	return []Notice{toRoom(event.Event{
		Type: event.ChatMessage, Room: domain.NormalizeRoomCode(code), MemberID: memberID, Chat: payload,
	})}
}

// Room returns a point-in-time snapshot of a room's code and membership.
func (reg *Registry) Room(code string) (domain.Room, bool) {
	rm, ok := reg.lookup(code)
	if !ok {
		return domain.Room{}, false
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.closed {
		return domain.Room{}, false
	}
	return rm.snapshot(), true
}

// History returns a copy of a room's current durable action log.
func (reg *Registry) History(code string) ([]domain.Action, bool) {
	rm, ok := reg.lookup(code)
	if !ok {
		return nil, false
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.log.Actions(), true
}

func (reg *Registry) lookup(code string) (*room, bool) {
	reg.mu.RLock()
	rm, ok := reg.rooms[domain.NormalizeRoomCode(code)]
	reg.mu.RUnlock()
	return rm, ok
}

func (reg *Registry) isMember(code, memberID string) bool {
	rm, ok := reg.lookup(code)
	if !ok {
		return false
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.memberIndex(memberID) >= 0
}

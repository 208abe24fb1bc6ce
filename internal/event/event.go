// Package event defines the closed sets of inbound commands and outbound
// events exchanged between clients and the authoritative session registry.
// Both relay and local transports speak exactly these envelopes, so the
// payload shape per event is fixed at compile time instead of being keyed
// by arbitrary strings.
package event

import (
	"encoding/json"

	"github.com/KyamichProjects/copaint/internal/domain"
)

// Type enumerates every outbound event the core can emit.
type Type string

const (
	// RoomJoined goes to the joiner only, paired with a HistorySync.
	RoomJoined Type = "room_joined"
	// MemberJoined goes to the existing members of the room.
	MemberJoined Type = "member_joined"
	// MemberLeft goes to the remaining members after a leave or kick.
	MemberLeft Type = "member_left"
	// MembershipUpdated carries the full member list after host migration.
	MembershipUpdated Type = "membership_updated"
	// GameStarted is the host's session start signal.
	GameStarted Type = "game_started"
	// HistoryAction announces one durable append to everyone in the room,
	// including its author (self-echo).
	HistoryAction Type = "history_action"
	// HistorySync carries the entire current history. Sent to the joiner on
	// join and to everyone on undo/redo; receivers rebuild their raster
	// from scratch.
	HistorySync Type = "history_sync"
	// DrawSegment is an ephemeral in-progress stroke segment, delivered to
	// everyone except the sender and never logged.
	DrawSegment Type = "draw_segment"
	// CursorMoved is an ephemeral cursor position, delivered to everyone
	// except the sender.
	CursorMoved Type = "cursor_moved"
	// ChatMessage is an opaque chat payload echoed to everyone including
	// the sender.
	ChatMessage Type = "chat_message"
	// Kicked goes to the removed member only.
	Kicked Type = "kicked"
	// ErrRoomNotFound goes to the caller of a failed join only.
	ErrRoomNotFound Type = "error_room_not_found"

	// Connected and Disconnected are transport-level lifecycle signals
	// emitted locally by a transport implementation, never by the
	// registry.
	Connected    Type = "connected"
	Disconnected Type = "disconnected"
)

// Segment is a transient point-to-point preview of a stroke in progress.
type Segment struct {
	From  domain.Point `json:"from"`
	To    domain.Point `json:"to"`
	Color string       `json:"color"`
	Width float64      `json:"width"`
}

// Cursor is a member's pointer position on the canvas.
type Cursor struct {
	MemberID string       `json:"member_id,omitempty"`
	Position domain.Point `json:"position"`
}

// Event is the single outbound envelope. Type selects which of the
// optional fields are populated.
type Event struct {
	Type Type   `json:"type"`
	Room string `json:"room,omitempty"`

	Members  []domain.Member `json:"members,omitempty"`
	Member   *domain.Member  `json:"member,omitempty"`
	MemberID string          `json:"member_id,omitempty"`

	Action  *domain.Action  `json:"action,omitempty"`
	History []domain.Action `json:"history,omitempty"`

	Segment *Segment        `json:"segment,omitempty"`
	Cursor  *Cursor         `json:"cursor,omitempty"`
	Chat    json.RawMessage `json:"chat,omitempty"`
}

package event

import (
	"encoding/json"
	"errors"

	"github.com/KyamichProjects/copaint/internal/domain"
)

// CommandType enumerates every inbound intent a client can issue.
type CommandType string

const (
	CmdCreateRoom   CommandType = "create_room"
	CmdJoinRoom     CommandType = "join_room"
	CmdLeaveRoom    CommandType = "leave_room"
	CmdKickUser     CommandType = "kick_user"
	CmdStartGame    CommandType = "start_game"
	CmdSubmitAction CommandType = "submit_action"
	CmdUndo         CommandType = "undo"
	CmdRedo         CommandType = "redo"
	CmdDrawSegment  CommandType = "draw_segment"
	CmdCursor       CommandType = "cursor"
	CmdChat         CommandType = "chat"
)

// Command is the single inbound envelope. Room is required for everything
// except create_room; the remaining fields are populated per Type.
type Command struct {
	Type CommandType `json:"type"`
	Room string      `json:"room,omitempty"`

	Username string `json:"username,omitempty"`  // create_room, join_room
	TargetID string `json:"target_id,omitempty"` // kick_user

	Action  *domain.Action  `json:"action,omitempty"`  // submit_action
	Segment *Segment        `json:"segment,omitempty"` // draw_segment
	Cursor  *Cursor         `json:"cursor,omitempty"`  // cursor
	Chat    json.RawMessage `json:"chat,omitempty"`    // chat
}

var ErrUnknownCommand = errors.New("unknown command type")

// DecodeCommand parses and minimally validates one inbound frame.
func DecodeCommand(raw []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return Command{}, err
	}
	switch cmd.Type {
	case CmdCreateRoom, CmdJoinRoom, CmdLeaveRoom, CmdKickUser, CmdStartGame,
		CmdSubmitAction, CmdUndo, CmdRedo, CmdDrawSegment, CmdCursor, CmdChat:
		return cmd, nil
	default:
		return Command{}, ErrUnknownCommand
	}
}

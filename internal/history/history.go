// Package history implements the per-room action history manager: an
// append-only log with bounded retention and global undo/redo stacks.
package history

import "github.com/KyamichProjects/copaint/internal/domain"

// DefaultLimit is the history retention cap used when none is configured.
const DefaultLimit = 500

// Log owns one room's durable action timeline. It is not safe for
// concurrent use; the session registry serializes access per room.
type Log struct {
	limit   int
	actions []domain.Action
	redo    []domain.Action
}

// NewLog creates an empty log retaining at most limit actions. A
// non-positive limit falls back to DefaultLimit.
func NewLog(limit int) *Log {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Log{limit: limit}
}

// Append adds a durable action to the end of the log. Any pending redo
// timeline is invalidated, and the oldest entry is evicted once the log
// exceeds its cap. Eviction is irreversible: evicted entries can never be
// reached by undo again. Reports whether an entry was evicted.
func (l *Log) Append(a domain.Action) bool {
	l.actions = append(l.actions, a)
	l.redo = l.redo[:0]
	if len(l.actions) > l.limit {
		// Shift rather than reslice so evicted actions do not pin the
		// backing array.
		copy(l.actions, l.actions[1:])
		l.actions = l.actions[:l.limit]
		return true
	}
	return false
}

// Undo moves the most recent action onto the redo stack and returns the
// remaining history for a full resync broadcast. Reports false on an
// empty log, in which case nothing changes and nothing is broadcast.
func (l *Log) Undo() ([]domain.Action, bool) {
	if len(l.actions) == 0 {
		return nil, false
	}
	last := l.actions[len(l.actions)-1]
	l.actions = l.actions[:len(l.actions)-1]
	l.redo = append(l.redo, last)
	return l.Actions(), true
}

// Redo moves the top of the redo stack back onto the log and returns the
// resulting history for a full resync broadcast. Reports false on an
// empty redo stack.
func (l *Log) Redo() ([]domain.Action, bool) {
	if len(l.redo) == 0 {
		return nil, false
	}
	top := l.redo[len(l.redo)-1]
	l.redo = l.redo[:len(l.redo)-1]
	l.actions = append(l.actions, top)
	return l.Actions(), true
}

// Actions returns a copy of the current history in append order.
func (l *Log) Actions() []domain.Action {
	out := make([]domain.Action, len(l.actions))
	copy(out, l.actions)
	return out
}

// Len returns the number of retained actions.
func (l *Log) Len() int { return len(l.actions) }

// RedoLen returns the depth of the redo stack.
func (l *Log) RedoLen() int { return len(l.redo) }

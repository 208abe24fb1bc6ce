package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ActionType tags the payload variant carried by an Action.
type ActionType string

const (
	ActionStroke ActionType = "stroke"
	ActionShape  ActionType = "shape"
	ActionFill   ActionType = "fill"
	ActionClear  ActionType = "clear"
)

// StrokeKind selects the stroke sub-tool.
type StrokeKind string

const (
	StrokeFreehand StrokeKind = "freehand"
	StrokeLine     StrokeKind = "line"
	StrokeErase    StrokeKind = "erase"
)

// ShapeKind selects the shape primitive.
type ShapeKind string

const (
	ShapeRectangle ShapeKind = "rectangle"
	ShapeCircle    ShapeKind = "circle"
	ShapeTriangle  ShapeKind = "triangle"
)

// Point is a canvas coordinate. Float because clients report sub-pixel
// pointer positions.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// StrokePayload is a polyline painted with round caps and joins. A stroke
// with fewer than two points renders nothing.
type StrokePayload struct {
	Points []Point    `json:"points"`
	Color  string     `json:"color"`
	Width  float64    `json:"width"`
	Kind   StrokeKind `json:"kind"`
}

// ShapePayload is a stroked outline between two corner points. Filled is
// reserved: it is carried on the wire but has no rendering effect.
type ShapePayload struct {
	Kind   ShapeKind `json:"kind"`
	Start  Point     `json:"start"`
	End    Point     `json:"end"`
	Color  string    `json:"color"`
	Width  float64   `json:"width"`
	Filled bool      `json:"filled"`
}

// FillPayload is a flood fill seeded at a single point.
type FillPayload struct {
	Seed  Point  `json:"seed"`
	Color string `json:"color"`
}

// Action is one durable drawing operation. Exactly one payload pointer is
// set, selected by Type; Clear carries no payload. Actions are immutable
// once created and move between history and the redo stack as whole units.
type Action struct {
	ID        string     `json:"id"`
	Type      ActionType `json:"type"`
	AuthorID  string     `json:"author_id"`
	CreatedAt time.Time  `json:"created_at"`

	Stroke *StrokePayload `json:"stroke,omitempty"`
	Shape  *ShapePayload  `json:"shape,omitempty"`
	Fill   *FillPayload   `json:"fill,omitempty"`
}

var ErrInvalidAction = errors.New("action payload does not match its type")

// Validate checks that the payload variant agrees with the type tag.
func (a *Action) Validate() error {
	switch a.Type {
	case ActionStroke:
		if a.Stroke == nil || a.Shape != nil || a.Fill != nil {
			return ErrInvalidAction
		}
	case ActionShape:
		if a.Shape == nil || a.Stroke != nil || a.Fill != nil {
			return ErrInvalidAction
		}
	case ActionFill:
		if a.Fill == nil || a.Stroke != nil || a.Shape != nil {
			return ErrInvalidAction
		}
	case ActionClear:
		if a.Stroke != nil || a.Shape != nil || a.Fill != nil {
			return ErrInvalidAction
		}
	default:
		return ErrInvalidAction
	}
	return nil
}

func newAction(t ActionType, authorID string) Action {
	return Action{
		ID:        uuid.NewString(),
		Type:      t,
		AuthorID:  authorID,
		CreatedAt: time.Now().UTC(),
	}
}

// NewStroke creates a durable stroke action.
func NewStroke(authorID string, p StrokePayload) Action {
	a := newAction(ActionStroke, authorID)
	a.Stroke = &p
	return a
}

// NewShape creates a durable shape action.
func NewShape(authorID string, p ShapePayload) Action {
	a := newAction(ActionShape, authorID)
	a.Shape = &p
	return a
}

// NewFill creates a durable flood-fill action.
func NewFill(authorID string, p FillPayload) Action {
	a := newAction(ActionFill, authorID)
	a.Fill = &p
	return a
}

// NewClear creates a durable clear action. Clear blanks the visible raster
// but does not truncate history.
func NewClear(authorID string) Action {
	return newAction(ActionClear, authorID)
}

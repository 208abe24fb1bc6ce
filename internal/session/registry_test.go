package session_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KyamichProjects/copaint/internal/domain"
	"github.com/KyamichProjects/copaint/internal/event"
	"github.com/KyamichProjects/copaint/internal/raster"
	"github.com/KyamichProjects/copaint/internal/session"
)

func newRoomWithHost(t *testing.T, reg *session.Registry, hostID string) string {
	t.Helper()
	code, notices, err := reg.CreateRoom(hostID, "host-"+hostID)
	require.NoError(t, err)
	require.NotEmpty(t, code)
	require.Len(t, notices, 2)
	return code
}

// noticesOfType filters a batch down to one event type.
func noticesOfType(notices []session.Notice, t event.Type) []session.Notice {
	var out []session.Notice
	for _, n := range notices {
		if n.Event.Type == t {
			out = append(out, n)
		}
	}
	return out
}

func rectAction() domain.Action {
	return domain.NewShape("", domain.ShapePayload{
		Kind:  domain.ShapeRectangle,
		Start: domain.Point{X: 10, Y: 10},
		End:   domain.Point{X: 50, Y: 40},
		Color: "#FF0000",
		Width: 2,
	})
}

func circleAction() domain.Action {
	return domain.NewShape("", domain.ShapePayload{
		Kind:  domain.ShapeCircle,
		Start: domain.Point{X: 100, Y: 100},
		End:   domain.Point{X: 120, Y: 100},
		Color: "#0000FF",
		Width: 2,
	})
}

func TestCreateRoomMakesCreatorHost(t *testing.T) {
	reg := session.NewRegistry(0)

	code, notices, err := reg.CreateRoom("alice", "alice")
	require.NoError(t, err)

	joined := noticesOfType(notices, event.RoomJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, session.ToMember, joined[0].Audience)
	assert.Equal(t, "alice", joined[0].MemberID)
	require.Len(t, joined[0].Event.Members, 1)
	assert.True(t, joined[0].Event.Members[0].Host)
	assert.Equal(t, domain.Palette[0], joined[0].Event.Members[0].Color)

	sync := noticesOfType(notices, event.HistorySync)
	require.Len(t, sync, 1)
	assert.Empty(t, sync[0].Event.History, "a fresh room has no history")

	room, ok := reg.Room(code)
	require.True(t, ok)
	assert.Equal(t, code, room.Code)
}

func TestJoinUnknownRoomFails(t *testing.T) {
	reg := session.NewRegistry(0)

	_, err := reg.JoinRoom("NOSUCH", "bob", "bob")

	assert.ErrorIs(t, err, session.ErrRoomNotFound)
}

func TestJoinRoomNotifiesExistingAndSyncsJoiner(t *testing.T) {
	reg := session.NewRegistry(0)
	code := newRoomWithHost(t, reg, "alice")

	notices, err := reg.JoinRoom(code, "bob", "bob")
	require.NoError(t, err)

	joinedBroadcast := noticesOfType(notices, event.MemberJoined)
	require.Len(t, joinedBroadcast, 1)
	assert.Equal(t, session.ToRoomExcept, joinedBroadcast[0].Audience)
	assert.Equal(t, "bob", joinedBroadcast[0].MemberID, "the joiner does not get its own memberJoined")

	snapshot := noticesOfType(notices, event.RoomJoined)
	require.Len(t, snapshot, 1)
	assert.Equal(t, "bob", snapshot[0].MemberID)
	require.Len(t, snapshot[0].Event.Members, 2)
	assert.Equal(t, "alice", snapshot[0].Event.Members[0].ID, "member order is join order")
	assert.False(t, snapshot[0].Event.Members[1].Host)

	sync := noticesOfType(notices, event.HistorySync)
	require.Len(t, sync, 1)
	assert.Equal(t, "bob", sync[0].MemberID, "only the joiner receives the history sync")
}

func TestRoomCodesCompareCaseInsensitively(t *testing.T) {
	reg := session.NewRegistry(0)
	code := newRoomWithHost(t, reg, "alice")

	// Codes are generated upper case; joining with the lower-cased form
	// must land in the same room.
	_, err := reg.JoinRoom(strings.ToLower(code), "bob", "bob")
	require.NoError(t, err)

	room, ok := reg.Room(code)
	require.True(t, ok)
	assert.Len(t, room.Members, 2)
}

func TestHostMigrationPicksFirstRemainingInJoinOrder(t *testing.T) {
	reg := session.NewRegistry(0)
	code := newRoomWithHost(t, reg, "h")
	_, err := reg.JoinRoom(code, "b", "b")
	require.NoError(t, err)
	_, err = reg.JoinRoom(code, "c", "c")
	require.NoError(t, err)

	notices := reg.Leave(code, "h")

	updated := noticesOfType(notices, event.MembershipUpdated)
	require.Len(t, updated, 1, "host departure broadcasts the updated membership")

	room, ok := reg.Room(code)
	require.True(t, ok)
	var hosts []string
	for _, m := range room.Members {
		if m.Host {
			hosts = append(hosts, m.ID)
		}
	}
	assert.Equal(t, []string{"b"}, hosts, "exactly one host, the first remaining joiner")
}

func TestLastLeaveDiscardsRoom(t *testing.T) {
	reg := session.NewRegistry(0)
	code := newRoomWithHost(t, reg, "alice")

	notices := reg.Leave(code, "alice")
	assert.Empty(t, notices, "nobody is left to notify")

	_, ok := reg.Room(code)
	assert.False(t, ok)
	_, err := reg.JoinRoom(code, "bob", "bob")
	assert.ErrorIs(t, err, session.ErrRoomNotFound, "a discarded room code is unknown again")
}

func TestKickByNonHostChangesNothing(t *testing.T) {
	reg := session.NewRegistry(0)
	code := newRoomWithHost(t, reg, "alice")
	_, err := reg.JoinRoom(code, "bob", "bob")
	require.NoError(t, err)

	notices := reg.Kick(code, "bob", "alice")

	assert.Empty(t, notices, "unauthorized kicks are silently ignored")
	room, ok := reg.Room(code)
	require.True(t, ok)
	assert.Len(t, room.Members, 2)
}

func TestKickByHostRemovesTargetAndSignalsIt(t *testing.T) {
	reg := session.NewRegistry(0)
	code := newRoomWithHost(t, reg, "alice")
	_, err := reg.JoinRoom(code, "bob", "bob")
	require.NoError(t, err)

	notices := reg.Kick(code, "alice", "bob")

	require.NotEmpty(t, notices)
	assert.Equal(t, event.Kicked, notices[0].Event.Type, "the target learns it was kicked first")
	assert.Equal(t, session.ToMember, notices[0].Audience)
	assert.Equal(t, "bob", notices[0].MemberID)

	room, ok := reg.Room(code)
	require.True(t, ok)
	require.Len(t, room.Members, 1)
	assert.Equal(t, "alice", room.Members[0].ID)
}

func TestStartGameRequiresHost(t *testing.T) {
	reg := session.NewRegistry(0)
	code := newRoomWithHost(t, reg, "alice")
	_, err := reg.JoinRoom(code, "bob", "bob")
	require.NoError(t, err)

	assert.Empty(t, reg.StartGame(code, "bob"))

	notices := reg.StartGame(code, "alice")
	require.Len(t, notices, 1)
	assert.Equal(t, event.GameStarted, notices[0].Event.Type)
	assert.Equal(t, session.ToRoom, notices[0].Audience)
}

func TestAppendEchoesToEveryoneIncludingAuthor(t *testing.T) {
	reg := session.NewRegistry(0)
	code := newRoomWithHost(t, reg, "alice")

	notices, err := reg.Append(code, "alice", rectAction())
	require.NoError(t, err)

	require.Len(t, notices, 1)
	assert.Equal(t, session.ToRoom, notices[0].Audience, "durable actions self-echo")
	assert.Equal(t, event.HistoryAction, notices[0].Event.Type)
	require.NotNil(t, notices[0].Event.Action)
	assert.Equal(t, "alice", notices[0].Event.Action.AuthorID)
}

func TestAppendRejectsNonMember(t *testing.T) {
	reg := session.NewRegistry(0)
	code := newRoomWithHost(t, reg, "alice")

	_, err := reg.Append(code, "stranger", rectAction())

	assert.ErrorIs(t, err, session.ErrNotMember)
}

func TestAppendRejectsMismatchedPayload(t *testing.T) {
	reg := session.NewRegistry(0)
	code := newRoomWithHost(t, reg, "alice")

	bad := rectAction()
	bad.Type = domain.ActionFill // payload is still a shape

	_, err := reg.Append(code, "alice", bad)
	assert.ErrorIs(t, err, domain.ErrInvalidAction)
}

func TestUndoOnEmptyHistoryEmitsNothing(t *testing.T) {
	reg := session.NewRegistry(0)
	code := newRoomWithHost(t, reg, "alice")

	assert.Empty(t, reg.Undo(code, "alice"))
	assert.Empty(t, reg.Redo(code, "alice"))
}

func TestCursorExcludesSender(t *testing.T) {
	reg := session.NewRegistry(0)
	code := newRoomWithHost(t, reg, "alice")

	notices := reg.Cursor(code, "alice", event.Cursor{Position: domain.Point{X: 3, Y: 4}})

	require.Len(t, notices, 1)
	assert.Equal(t, session.ToRoomExcept, notices[0].Audience)
	assert.Equal(t, "alice", notices[0].MemberID)
	require.NotNil(t, notices[0].Event.Cursor)
	assert.Equal(t, "alice", notices[0].Event.Cursor.MemberID)
}

func TestChatEchoesToSender(t *testing.T) {
	reg := session.NewRegistry(0)
	code := newRoomWithHost(t, reg, "alice")

	notices := reg.Chat(code, "alice", []byte(`{"text":"hi"}`))

	require.Len(t, notices, 1)
	assert.Equal(t, session.ToRoom, notices[0].Audience)
}

// TestUndoThenLateJoinScenario walks the full collaboration scenario:
// two members draw, one undoes, and a late joiner must see exactly the
// surviving prefix of the timeline.
func TestUndoThenLateJoinScenario(t *testing.T) {
	reg := session.NewRegistry(0)
	code := newRoomWithHost(t, reg, "alice")
	_, err := reg.JoinRoom(code, "bob", "bob")
	require.NoError(t, err)

	_, err = reg.Append(code, "alice", rectAction())
	require.NoError(t, err)
	_, err = reg.Append(code, "bob", circleAction())
	require.NoError(t, err)

	undo := reg.Undo(code, "alice")
	require.Len(t, undo, 1)
	assert.Equal(t, event.HistorySync, undo[0].Event.Type)
	assert.Equal(t, session.ToRoom, undo[0].Audience, "undo resyncs everyone")
	require.Len(t, undo[0].Event.History, 1)
	assert.Equal(t, domain.ShapeRectangle, undo[0].Event.History[0].Shape.Kind)

	joinNotices, err := reg.JoinRoom(code, "carol", "carol")
	require.NoError(t, err)
	sync := noticesOfType(joinNotices, event.HistorySync)
	require.Len(t, sync, 1)
	require.Len(t, sync[0].Event.History, 1)

	// Carol reconstructs her raster from the sync: the rectangle is there,
	// the undone circle is not.
	img := raster.Reconstruct(sync[0].Event.History, 200, 150)
	red := raster.ParseColor("#FF0000")
	assert.Equal(t, red, img.RGBAAt(10, 25), "rectangle outline is rendered")
	assert.Equal(t, raster.Background, img.RGBAAt(120, 100), "undone circle leaves no trace")

	// Redo restores the circle for everyone.
	redo := reg.Redo(code, "bob")
	require.Len(t, redo, 1)
	require.Len(t, redo[0].Event.History, 2)
}

func TestAppendAfterUndoForeclosesRedo(t *testing.T) {
	reg := session.NewRegistry(0)
	code := newRoomWithHost(t, reg, "alice")

	_, err := reg.Append(code, "alice", rectAction())
	require.NoError(t, err)
	require.Len(t, reg.Undo(code, "alice"), 1)

	_, err = reg.Append(code, "alice", circleAction())
	require.NoError(t, err)

	assert.Empty(t, reg.Redo(code, "alice"), "a new append invalidates the redo timeline")
	hist, ok := reg.History(code)
	require.True(t, ok)
	require.Len(t, hist, 1)
	assert.Equal(t, domain.ShapeCircle, hist[0].Shape.Kind)
}

func TestHistoryCapIsEnforcedPerRoom(t *testing.T) {
	reg := session.NewRegistry(3)
	code := newRoomWithHost(t, reg, "alice")

	for i := 0; i < 5; i++ {
		_, err := reg.Append(code, "alice", rectAction())
		require.NoError(t, err)
	}

	hist, ok := reg.History(code)
	require.True(t, ok)
	assert.Len(t, hist, 3)
}

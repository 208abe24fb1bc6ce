package session

import "github.com/KyamichProjects/copaint/internal/event"

// Audience selects who in a room receives a notice.
type Audience int

const (
	// ToRoom delivers to every current member, sender included.
	ToRoom Audience = iota
	// ToMember delivers to the single member named by MemberID.
	ToMember
	// ToRoomExcept delivers to every member except the one named by
	// MemberID; used for ephemeral events, which never echo to the sender.
	ToRoomExcept
)

// Notice pairs one outbound event with its delivery scope. The registry
// returns notices; the transport layer is responsible for actually moving
// them to member connections.
type Notice struct {
	Audience Audience
	MemberID string
	Event    event.Event
}

func toRoom(ev event.Event) Notice {
	return Notice{Audience: ToRoom, Event: ev}
}

func toMember(memberID string, ev event.Event) Notice {
	return Notice{Audience: ToMember, MemberID: memberID, Event: ev}
}

func toRoomExcept(memberID string, ev event.Event) Notice {
	return Notice{Audience: ToRoomExcept, MemberID: memberID, Event: ev}
}

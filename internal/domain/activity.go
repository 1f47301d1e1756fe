package domain

// EventKind distinguishes inbound activity types from the channel adapter.
type EventKind string

const (
	EventMessage    EventKind = "message"
	EventMemberJoin EventKind = "memberJoin"
)

// Activity is the normalized inbound event consumed by the turn service.
type Activity struct {
	ConversationID string
	UserID         string
	Text           string
	EventKind      EventKind
}

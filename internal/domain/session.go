package domain

// SequenceID names a registered step sequence.
type SequenceID string

const (
	SequenceIntent  SequenceID = "intent"
	SequenceProfile SequenceID = "profile"
)

// SessionStatus is the lifecycle state of a conversation session.
type SessionStatus string

const (
	StatusIdle      SessionStatus = "idle"
	StatusActive    SessionStatus = "active"
	StatusSuspended SessionStatus = "suspended"
	StatusCompleted SessionStatus = "completed"
)

// ConversationSession tracks where a single conversation is in its dialog.
type ConversationSession struct {
	ConversationID string
	ActiveSequence SequenceID
	Cursor         int
	Status         SessionStatus
}

// NewSession returns an Idle session for a conversation. The dialog machine
// activates it and positions the cursor on first resume.
func NewSession(conversationID string) ConversationSession {
	return ConversationSession{
		ConversationID: conversationID,
		Status:         StatusIdle,
	}
}

// SessionRecord is the unit of persistence for one conversation: the
// session, its exclusively-owned profile, and the revision used for
// conditional writes.
type SessionRecord struct {
	Session  ConversationSession
	Profile  UserProfile
	Revision int64
	TTL      int64
}

// Intent is the routed purpose of a conversation.
type Intent string

const (
	IntentOrderPickup       Intent = "OrderPickup"
	IntentSpeakToPharmacist Intent = "SpeakToPharmacist"
	IntentOther             Intent = "Other"
)

// UserProfile holds the fields collected by the profile sequence. A field is
// only set after its validator accepted the raw input.
type UserProfile struct {
	Intent        Intent
	FirstName     string
	LastName      string
	Address       string
	PhoneLastFour string
}

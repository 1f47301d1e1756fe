package domain

import "errors"

// ErrConversationConflict reports a session write that lost a revision race
// with a concurrent turn for the same conversation.
var ErrConversationConflict = errors.New("domain: conversation session conflict")

package dialog

import "errors"

var (
	// ErrInvalidSessionState marks a persisted cursor or sequence id that no
	// longer resolves to a registered step. Callers reset the session rather
	// than failing the conversation.
	ErrInvalidSessionState = errors.New("dialog: invalid session state")

	// ErrRecognizerUnavailable wraps transport failures from the recognizer.
	// The step that hit it keeps its cursor so the turn can be retried.
	ErrRecognizerUnavailable = errors.New("dialog: recognizer unavailable")
)

package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"drivethru-bot/internal/dialog"
	"drivethru-bot/internal/domain"
)

const (
	defaultMaxText = 300

	// Sent when the recognizer is unreachable; the session is left where it
	// was so the user can simply repeat the answer.
	msgTurnTrouble = "Oops. Something went wrong! Please say that again."
)

// SessionStore persists one record per conversation. PutSession must reject
// writes whose revision does not match the stored record with
// domain.ErrConversationConflict.
type SessionStore interface {
	GetSession(ctx context.Context, conversationID string) (domain.SessionRecord, bool, error)
	PutSession(ctx context.Context, rec domain.SessionRecord) error
}

// DialogMachine is the step sequencer driven once per inbound activity.
type DialogMachine interface {
	Resume(ctx context.Context, session *domain.ConversationSession, profile *domain.UserProfile, input string, hasInput bool) ([]string, bool, error)
}

// TurnOutput is the ordered set of outgoing messages for one turn.
type TurnOutput struct {
	ConversationID string
	Messages       []string
}

// TurnService routes inbound activities: it loads the conversation session,
// drives the dialog machine to completion or suspension, and persists the
// result. Turns for the same conversation are serialized; turns for
// different conversations run in parallel.
type TurnService struct {
	store   SessionStore
	machine DialogMachine
	maxText int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewTurnService(store SessionStore, machine DialogMachine, maxTextLen int) (*TurnService, error) {
	if store == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if machine == nil {
		return nil, errors.New("usecase: dialog machine must not be nil")
	}
	if maxTextLen <= 0 {
		maxTextLen = defaultMaxText
	}
	return &TurnService{
		store:   store,
		machine: machine,
		maxText: maxTextLen,
		locks:   map[string]*sync.Mutex{},
	}, nil
}

// Handle processes one inbound activity and returns the outgoing messages.
func (s *TurnService) Handle(ctx context.Context, in domain.Activity) (TurnOutput, error) {
	switch in.EventKind {
	case domain.EventMessage:
		if strings.TrimSpace(in.Text) == "" {
			return TurnOutput{}, newError(ErrorInvalidInput, "empty_text", nil)
		}
		if len(in.Text) > s.maxText {
			return TurnOutput{}, newError(ErrorInvalidInput, "text_too_long", nil)
		}
	case domain.EventMemberJoin:
		// no text required
	default:
		return TurnOutput{}, newError(ErrorInvalidInput, "unknown_event_kind", nil)
	}

	convID := strings.TrimSpace(in.ConversationID)
	if convID == "" {
		convID = newUUID()
	}

	unlock := s.lockConversation(convID)
	defer unlock()

	rec, found, err := s.store.GetSession(ctx, convID)
	if err != nil {
		return TurnOutput{}, newError(ErrorInternal, "session_load_error", err)
	}
	if !found || rec.Session.Status == domain.StatusCompleted {
		// First contact, or a finished conversation starting over.
		rec = domain.SessionRecord{Session: domain.NewSession(convID), Revision: rec.Revision}
	}

	// The triggering activity of a brand-new session carries no dialog
	// input: the opening step prompts and the next message answers it.
	hasInput := in.EventKind == domain.EventMessage && rec.Session.Status != domain.StatusIdle

	messages, _, err := s.machine.Resume(ctx, &rec.Session, &rec.Profile, in.Text, hasInput)
	if errors.Is(err, dialog.ErrRecognizerUnavailable) {
		// Session intentionally not persisted: the step keeps its cursor.
		return TurnOutput{ConversationID: convID, Messages: []string{msgTurnTrouble}}, nil
	}
	if errors.Is(err, dialog.ErrInvalidSessionState) {
		// Corrupted cursor or sequence id. Self-heal: restart the dialog so
		// the user sees the opening prompt again.
		rec.Session = domain.NewSession(convID)
		rec.Profile = domain.UserProfile{}
		messages, _, err = s.machine.Resume(ctx, &rec.Session, &rec.Profile, "", false)
	}
	if err != nil {
		return TurnOutput{}, newError(ErrorInternal, "dialog_resume_error", err)
	}

	if err := s.store.PutSession(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrConversationConflict) {
			return TurnOutput{}, newError(ErrorConversationBusy, "session_revision_conflict", err)
		}
		return TurnOutput{}, newError(ErrorInternal, "session_save_error", err)
	}

	return TurnOutput{ConversationID: convID, Messages: messages}, nil
}

// lockConversation serializes turns per conversation id. Lock entries are
// kept for the process lifetime, which is bounded in this runtime.
func (s *TurnService) lockConversation(conversationID string) func() {
	s.mu.Lock()
	l, ok := s.locks[conversationID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[conversationID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

var newUUID = func() string {
	return uuid.NewString()
}

package dialog

import (
	"context"
	"errors"
	"fmt"

	"drivethru-bot/internal/domain"
)

type outcomeKind int

const (
	outcomeAdvance outcomeKind = iota
	outcomeBranch
	outcomeRepeat
	outcomeTerminate
)

// Outcome tells the machine what to do after a step has run.
type Outcome struct {
	kind     outcomeKind
	index    int
	sequence domain.SequenceID
}

// AdvanceTo moves the cursor to index i within the active sequence. An index
// past the end of the sequence completes it.
func AdvanceTo(i int) Outcome {
	return Outcome{kind: outcomeAdvance, index: i}
}

// Advance moves the cursor to the next step in the active sequence.
func Advance() Outcome {
	return Outcome{kind: outcomeAdvance, index: -1}
}

// BranchTo switches the session to the first step of another sequence.
func BranchTo(seq domain.SequenceID) Outcome {
	return Outcome{kind: outcomeBranch, sequence: seq}
}

// Repeat keeps the cursor in place so the same step handles the next message.
func Repeat() Outcome {
	return Outcome{kind: outcomeRepeat}
}

// Terminate completes the session.
func Terminate() Outcome {
	return Outcome{kind: outcomeTerminate}
}

// Flow is the per-turn execution context handed to each step. It carries the
// session, the profile being collected, the user input for this turn, and
// the outgoing messages accumulated so far.
type Flow struct {
	Session *domain.ConversationSession
	Profile *domain.UserProfile

	input    string
	hasInput bool
	messages []string
}

// Input returns the user input routed to this step. The second return is
// false for steps that run without consuming input.
func (f *Flow) Input() (string, bool) {
	return f.input, f.hasInput
}

// Say queues an outgoing message for this turn.
func (f *Flow) Say(msg string) {
	f.messages = append(f.messages, msg)
}

// StepFunc is the logic of a single dialog step.
type StepFunc func(ctx context.Context, f *Flow) (Outcome, error)

// Step is one entry in a sequence. Steps with NeedsInput set suspend the
// machine until the next inbound message arrives.
type Step struct {
	ID         string
	NeedsInput bool
	Run        StepFunc
}

// Sequence is a fixed, ordered list of steps addressed by cursor index.
type Sequence struct {
	ID    domain.SequenceID
	Steps []Step
}

// Machine is the step sequencer. It holds the immutable sequence table and
// no per-conversation state; all mutable state lives on the session passed
// into Resume, so a single Machine serves every conversation.
type Machine struct {
	sequences map[domain.SequenceID]Sequence
	initial   domain.SequenceID
}

// NewMachine builds a machine from the given sequences, starting new
// sessions at the first step of the initial sequence.
func NewMachine(initial domain.SequenceID, sequences ...Sequence) (*Machine, error) {
	if len(sequences) == 0 {
		return nil, errors.New("dialog: at least one sequence is required")
	}
	table := make(map[domain.SequenceID]Sequence, len(sequences))
	for _, seq := range sequences {
		if len(seq.Steps) == 0 {
			return nil, fmt.Errorf("dialog: sequence %q has no steps", seq.ID)
		}
		if _, dup := table[seq.ID]; dup {
			return nil, fmt.Errorf("dialog: duplicate sequence %q", seq.ID)
		}
		table[seq.ID] = seq
	}
	if _, ok := table[initial]; !ok {
		return nil, fmt.Errorf("dialog: initial sequence %q is not registered", initial)
	}
	return &Machine{sequences: table, initial: initial}, nil
}

// Resume continues a session with the latest user input, or with no input on
// session creation. It runs steps until one suspends awaiting the next
// message, repeats, or terminates, and returns the outgoing messages in
// order plus whether the session completed.
//
// Exactly one input-consuming step runs per call; prompt-only and branch
// steps chain within the same call. Resuming a suspended session without
// input is a no-op.
func (m *Machine) Resume(ctx context.Context, session *domain.ConversationSession, profile *domain.UserProfile, input string, hasInput bool) ([]string, bool, error) {
	if session.Status == domain.StatusCompleted {
		return nil, true, nil
	}
	if session.Status == domain.StatusIdle {
		session.Status = domain.StatusActive
		session.ActiveSequence = m.initial
		session.Cursor = 0
	}

	flow := &Flow{Session: session, Profile: profile}
	for {
		seq, ok := m.sequences[session.ActiveSequence]
		if !ok {
			return flow.messages, false, fmt.Errorf("%w: unknown sequence %q", ErrInvalidSessionState, session.ActiveSequence)
		}
		if session.Cursor < 0 || session.Cursor >= len(seq.Steps) {
			return flow.messages, false, fmt.Errorf("%w: cursor %d out of range for %q", ErrInvalidSessionState, session.Cursor, seq.ID)
		}
		step := seq.Steps[session.Cursor]

		if step.NeedsInput && !hasInput {
			session.Status = domain.StatusSuspended
			return flow.messages, false, nil
		}
		if step.NeedsInput {
			flow.input, flow.hasInput = input, true
			hasInput = false
		} else {
			flow.input, flow.hasInput = "", false
		}

		out, err := step.Run(ctx, flow)
		if err != nil {
			return flow.messages, false, fmt.Errorf("step %s/%s: %w", seq.ID, step.ID, err)
		}

		switch out.kind {
		case outcomeAdvance:
			next := out.index
			if next < 0 {
				next = session.Cursor + 1
			}
			if next >= len(seq.Steps) {
				session.Status = domain.StatusCompleted
				return flow.messages, true, nil
			}
			session.Cursor = next
		case outcomeBranch:
			if _, ok := m.sequences[out.sequence]; !ok {
				return flow.messages, false, fmt.Errorf("%w: branch to unknown sequence %q", ErrInvalidSessionState, out.sequence)
			}
			session.ActiveSequence = out.sequence
			session.Cursor = 0
		case outcomeRepeat:
			session.Status = domain.StatusSuspended
			return flow.messages, false, nil
		case outcomeTerminate:
			session.Status = domain.StatusCompleted
			return flow.messages, true, nil
		}
	}
}

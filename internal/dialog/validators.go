package dialog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"drivethru-bot/internal/domain"
)

// Recognizer is the single-round-trip NLU call used by validators and the
// intent routing step.
type Recognizer interface {
	Recognize(ctx context.Context, utterance string) (domain.Recognition, error)
}

// FieldKind selects the validation rule applied to a raw utterance.
type FieldKind string

const (
	FieldName          FieldKind = "Name"
	FieldAddress       FieldKind = "Address"
	FieldPhoneLastFour FieldKind = "PhoneLastFour"
	FieldConfirmation  FieldKind = "Confirmation"
)

// Retry and closing messages owned by the validators; the machine never
// duplicates messaging for rejected input.
const (
	msgRetryName    = "Sorry, I didn't understand that. Can you please spell it for me?"
	msgRetryAddress = "Sorry, I couldn't find that address. Please try again."
	msgRetryPhone   = "Could not identify valid last four digits of phone number. Please try again."
	msgDeclined     = "Got it, just a moment while we connect you with an employee who can help."
)

// ValidationResult is the outcome of validating one field. Rejected results
// carry the message to send back; Terminate marks the rejection that ends
// the interaction instead of retrying.
type ValidationResult struct {
	Accepted  bool
	Value     string
	Message   string
	Terminate bool
}

// Validators applies per-field acceptance rules, consulting the recognizer
// for entity-backed fields.
type Validators struct {
	rec Recognizer
}

func NewValidators(rec Recognizer) (*Validators, error) {
	if rec == nil {
		return nil, errors.New("dialog: recognizer must not be nil")
	}
	return &Validators{rec: rec}, nil
}

// Validate checks a raw utterance against the rule for kind.
func (v *Validators) Validate(ctx context.Context, kind FieldKind, raw string) (ValidationResult, error) {
	switch kind {
	case FieldName:
		return v.validateEntity(ctx, raw, string(FieldName), msgRetryName, capitalizeFirst)
	case FieldAddress:
		return v.validateEntity(ctx, raw, string(FieldAddress), msgRetryAddress, nil)
	case FieldPhoneLastFour:
		return v.validatePhone(ctx, raw)
	case FieldConfirmation:
		return validateConfirmation(raw), nil
	default:
		return ValidationResult{}, fmt.Errorf("dialog: unknown field kind %q", kind)
	}
}

// validateEntity accepts the input iff the recognizer extracted a non-empty
// entity of the given name. The first extracted value is used, optionally
// normalized.
func (v *Validators) validateEntity(ctx context.Context, raw, entity, retry string, normalize func(string) string) (ValidationResult, error) {
	result, err := v.rec.Recognize(ctx, raw)
	if err != nil {
		return ValidationResult{}, recognizeErr(err)
	}
	value, ok := result.Entity(entity)
	if !ok || value == "" {
		return ValidationResult{Message: retry}, nil
	}
	if normalize != nil {
		value = normalize(value)
	}
	return ValidationResult{Accepted: true, Value: value}, nil
}

func (v *Validators) validatePhone(ctx context.Context, raw string) (ValidationResult, error) {
	result, err := v.rec.Recognize(ctx, raw)
	if err != nil {
		return ValidationResult{}, recognizeErr(err)
	}
	value, ok := result.Entity(string(FieldPhoneLastFour))
	if !ok || !isFourDigits(value) {
		return ValidationResult{Message: msgRetryPhone}, nil
	}
	return ValidationResult{Accepted: true, Value: value}, nil
}

// validateConfirmation needs no recognizer call: anything but a trimmed,
// case-insensitive "yes" ends the interaction.
func validateConfirmation(raw string) ValidationResult {
	if strings.EqualFold(strings.TrimSpace(raw), "yes") {
		return ValidationResult{Accepted: true, Value: "yes"}
	}
	return ValidationResult{Message: msgDeclined, Terminate: true}
}

func recognizeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrRecognizerUnavailable, err)
}

func isFourDigits(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// capitalizeFirst upper-cases the first rune only; the rest of the value is
// kept exactly as extracted.
func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError && size <= 1 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

package dialog

import (
	"context"
	"errors"
	"fmt"

	"drivethru-bot/internal/domain"
)

const (
	msgGreeting     = "Hi, Welcome to Contoso Drive-Thru!"
	msgAskPurpose   = "How can I help you?"
	msgOrderAck     = "Great, let's get your order started."
	msgPharmacist   = "Just a moment while we connect you with the pharmacist."
	msgUnrecognized = "Sorry, I can't help with that at the window. Please come inside and see the front counter."
	msgAskLastName  = "What is your last name?"
	msgAskFirstName = "What is your first name?"
	msgAskAddress   = "What is your address?"
	msgAskPhone     = "What are the last four digits of your phone number?"
)

// Config wires the external collaborators into the drive-thru sequences.
type Config struct {
	Recognizer Recognizer
	// Catalog defaults to DefaultCatalog, Rand to the shared source.
	Catalog []domain.CartItem
	Rand    Rand
}

// NewDriveThruMachine assembles the two drive-thru sequences: intent routing
// and profile collection ending in checkout.
func NewDriveThruMachine(cfg Config) (*Machine, error) {
	if cfg.Recognizer == nil {
		return nil, errors.New("dialog: recognizer must not be nil")
	}
	validators, err := NewValidators(cfg.Recognizer)
	if err != nil {
		return nil, err
	}
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = DefaultCatalog
	}
	return NewMachine(
		domain.SequenceIntent,
		intentSequence(cfg.Recognizer),
		profileSequence(validators, catalog, cfg.Rand),
	)
}

// intentSequence greets, asks for the visit purpose, and routes on the
// recognized top intent. Order pickups branch into profile collection;
// everything else ends after a single response.
func intentSequence(rec Recognizer) Sequence {
	return Sequence{
		ID: domain.SequenceIntent,
		Steps: []Step{
			{
				ID: "ask-purpose",
				Run: func(_ context.Context, f *Flow) (Outcome, error) {
					f.Say(msgGreeting)
					f.Say(msgAskPurpose)
					return Advance(), nil
				},
			},
			{
				ID:         "route-intent",
				NeedsInput: true,
				Run: func(ctx context.Context, f *Flow) (Outcome, error) {
					raw, _ := f.Input()
					result, err := rec.Recognize(ctx, raw)
					if err != nil {
						return Outcome{}, recognizeErr(err)
					}
					switch result.TopIntent {
					case string(domain.IntentOrderPickup):
						f.Profile.Intent = domain.IntentOrderPickup
						f.Say(msgOrderAck)
						return BranchTo(domain.SequenceProfile), nil
					case string(domain.IntentSpeakToPharmacist):
						f.Profile.Intent = domain.IntentSpeakToPharmacist
						f.Say(msgPharmacist)
						return Terminate(), nil
					default:
						f.Profile.Intent = domain.IntentOther
						f.Say(msgUnrecognized)
						return Terminate(), nil
					}
				},
			},
		},
	}
}

// profileSequence collects last name, first name, address, and phone last
// four in fixed order, confirms the summary, then presents the generated
// cart. Each collect step stores its value only after the validator accepts
// it; the stored value is reused downstream without a second recognizer
// call.
func profileSequence(v *Validators, catalog []domain.CartItem, rng Rand) Sequence {
	return Sequence{
		ID: domain.SequenceProfile,
		Steps: []Step{
			promptStep("ask-last-name", msgAskLastName),
			collectStep("collect-last-name", v, FieldName, func(p *domain.UserProfile, val string) {
				p.LastName = val
			}),
			promptStep("ask-first-name", msgAskFirstName),
			collectStep("collect-first-name", v, FieldName, func(p *domain.UserProfile, val string) {
				p.FirstName = val
			}),
			promptStep("ask-address", msgAskAddress),
			collectStep("collect-address", v, FieldAddress, func(p *domain.UserProfile, val string) {
				p.Address = val
			}),
			promptStep("ask-phone", msgAskPhone),
			collectStep("collect-phone", v, FieldPhoneLastFour, func(p *domain.UserProfile, val string) {
				p.PhoneLastFour = val
			}),
			{
				ID: "confirm",
				Run: func(_ context.Context, f *Flow) (Outcome, error) {
					f.Say(confirmationPrompt(f.Profile))
					return Advance(), nil
				},
			},
			collectStep("collect-confirmation", v, FieldConfirmation, nil),
			{
				ID: "checkout",
				Run: func(_ context.Context, f *Flow) (Outcome, error) {
					cart := GenerateCart(catalog, rng)
					f.Say(CartSummary(cart))
					f.Say(fmt.Sprintf("Your order will be ready at the pickup window. Thanks, %s!", f.Profile.FirstName))
					return Terminate(), nil
				},
			},
		},
	}
}

func promptStep(id, msg string) Step {
	return Step{
		ID: id,
		Run: func(_ context.Context, f *Flow) (Outcome, error) {
			f.Say(msg)
			return Advance(), nil
		},
	}
}

func collectStep(id string, v *Validators, kind FieldKind, assign func(*domain.UserProfile, string)) Step {
	return Step{
		ID:         id,
		NeedsInput: true,
		Run: func(ctx context.Context, f *Flow) (Outcome, error) {
			raw, _ := f.Input()
			result, err := v.Validate(ctx, kind, raw)
			if err != nil {
				return Outcome{}, err
			}
			if !result.Accepted {
				f.Say(result.Message)
				if result.Terminate {
					return Terminate(), nil
				}
				return Repeat(), nil
			}
			if assign != nil {
				assign(f.Profile, result.Value)
			}
			return Advance(), nil
		},
	}
}

func confirmationPrompt(p *domain.UserProfile) string {
	return fmt.Sprintf("I have %s %s at %s, phone ending in %s. Is that correct?",
		p.FirstName, p.LastName, p.Address, p.PhoneLastFour)
}

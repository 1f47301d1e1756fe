package dialog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"drivethru-bot/internal/domain"
)

// routingRecognizer maps exact utterances to canned recognitions.
type routingRecognizer struct {
	results map[string]domain.Recognition
	err     error
}

func (r *routingRecognizer) Recognize(_ context.Context, utterance string) (domain.Recognition, error) {
	if r.err != nil {
		return domain.Recognition{}, r.err
	}
	return r.results[utterance], nil
}

func newDriveThru(t *testing.T, rec Recognizer, rng Rand) *Machine {
	t.Helper()
	m, err := NewDriveThruMachine(Config{Recognizer: rec, Rand: rng})
	require.NoError(t, err)
	return m
}

func TestNewDriveThruMachine_NilRecognizer(t *testing.T) {
	_, err := NewDriveThruMachine(Config{})
	require.Error(t, err)
}

func TestDriveThru_GreetingTurn(t *testing.T) {
	m := newDriveThru(t, &routingRecognizer{}, nil)
	session := domain.NewSession("c1")
	profile := domain.UserProfile{}

	msgs, done, err := m.Resume(context.Background(), &session, &profile, "", false)
	require.NoError(t, err)
	require.False(t, done)
	require.Equal(t, []string{msgGreeting, msgAskPurpose}, msgs)
	require.Equal(t, domain.SequenceIntent, session.ActiveSequence)
}

func TestDriveThru_OrderPickupFullFlow(t *testing.T) {
	rec := &routingRecognizer{results: map[string]domain.Recognition{
		"I'd like to pick up my order": {TopIntent: "OrderPickup"},
		"smith":                        {Entities: map[string][]string{"Name": {"smith"}}},
		"jane":                         {Entities: map[string][]string{"Name": {"jane"}}},
		"123 main st":                  {Entities: map[string][]string{"Address": {"123 main st"}}},
		"5309":                         {Entities: map[string][]string{"PhoneLastFour": {"5309"}}},
	}}
	// Target count 1, first flip heads: cart is the first catalog item.
	rng := &scriptedRand{vals: []int{0, 1}}
	m := newDriveThru(t, rec, rng)

	session := domain.NewSession("c1")
	profile := domain.UserProfile{}
	ctx := context.Background()

	_, _, err := m.Resume(ctx, &session, &profile, "", false)
	require.NoError(t, err)

	// The pickup intent branches straight into the profile sequence: the
	// last-name prompt arrives without another inbound message.
	msgs, done, err := m.Resume(ctx, &session, &profile, "I'd like to pick up my order", true)
	require.NoError(t, err)
	require.False(t, done)
	require.Equal(t, []string{msgOrderAck, msgAskLastName}, msgs)
	require.Equal(t, domain.SequenceProfile, session.ActiveSequence)
	require.Equal(t, domain.IntentOrderPickup, profile.Intent)

	msgs, _, err = m.Resume(ctx, &session, &profile, "smith", true)
	require.NoError(t, err)
	require.Equal(t, []string{msgAskFirstName}, msgs)
	require.Equal(t, "Smith", profile.LastName)

	msgs, _, err = m.Resume(ctx, &session, &profile, "jane", true)
	require.NoError(t, err)
	require.Equal(t, []string{msgAskAddress}, msgs)
	require.Equal(t, "Jane", profile.FirstName)

	msgs, _, err = m.Resume(ctx, &session, &profile, "123 main st", true)
	require.NoError(t, err)
	require.Equal(t, []string{msgAskPhone}, msgs)
	require.Equal(t, "123 main st", profile.Address)

	msgs, _, err = m.Resume(ctx, &session, &profile, "5309", true)
	require.NoError(t, err)
	require.Equal(t, []string{"I have Jane Smith at 123 main st, phone ending in 5309. Is that correct?"}, msgs)
	require.Equal(t, "5309", profile.PhoneLastFour)

	msgs, done, err = m.Resume(ctx, &session, &profile, "yes", true)
	require.NoError(t, err)
	require.True(t, done)
	require.Len(t, msgs, 2)
	require.Equal(t, "You have 1 item ready for pickup:\n- Ibuprofen 200mg ($8.99)\nTotal: $8.99", msgs[0])
	require.Equal(t, "Your order will be ready at the pickup window. Thanks, Jane!", msgs[1])
	require.Equal(t, domain.StatusCompleted, session.Status)
}

func TestDriveThru_SpeakToPharmacistTerminatesAfterOneExchange(t *testing.T) {
	rec := &routingRecognizer{results: map[string]domain.Recognition{
		"can I talk to the pharmacist": {TopIntent: "SpeakToPharmacist"},
	}}
	m := newDriveThru(t, rec, nil)

	session := domain.NewSession("c1")
	profile := domain.UserProfile{}
	ctx := context.Background()

	_, _, err := m.Resume(ctx, &session, &profile, "", false)
	require.NoError(t, err)

	msgs, done, err := m.Resume(ctx, &session, &profile, "can I talk to the pharmacist", true)
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, []string{msgPharmacist}, msgs)
	require.Equal(t, domain.IntentSpeakToPharmacist, profile.Intent)
}

func TestDriveThru_UnrecognizedIntentTerminates(t *testing.T) {
	rec := &routingRecognizer{results: map[string]domain.Recognition{
		"what's the weather": {TopIntent: "None"},
	}}
	m := newDriveThru(t, rec, nil)

	session := domain.NewSession("c1")
	profile := domain.UserProfile{}
	ctx := context.Background()

	_, _, err := m.Resume(ctx, &session, &profile, "", false)
	require.NoError(t, err)

	msgs, done, err := m.Resume(ctx, &session, &profile, "what's the weather", true)
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, []string{msgUnrecognized}, msgs)
	require.Equal(t, domain.IntentOther, profile.Intent)
}

func TestDriveThru_NameRetryRepeatsStep(t *testing.T) {
	rec := &routingRecognizer{results: map[string]domain.Recognition{
		"pickup": {TopIntent: "OrderPickup"},
		"mumble": {},
		"garcia": {Entities: map[string][]string{"Name": {"garcia"}}},
	}}
	m := newDriveThru(t, rec, nil)

	session := domain.NewSession("c1")
	profile := domain.UserProfile{}
	ctx := context.Background()

	_, _, err := m.Resume(ctx, &session, &profile, "", false)
	require.NoError(t, err)
	_, _, err = m.Resume(ctx, &session, &profile, "pickup", true)
	require.NoError(t, err)

	cursor := session.Cursor
	msgs, done, err := m.Resume(ctx, &session, &profile, "mumble", true)
	require.NoError(t, err)
	require.False(t, done)
	require.Equal(t, []string{msgRetryName}, msgs)
	require.Equal(t, cursor, session.Cursor)
	require.Empty(t, profile.LastName)

	msgs, _, err = m.Resume(ctx, &session, &profile, "garcia", true)
	require.NoError(t, err)
	require.Equal(t, []string{msgAskFirstName}, msgs)
	require.Equal(t, "Garcia", profile.LastName)
}

func TestDriveThru_ConfirmationDeclinedEndsInteraction(t *testing.T) {
	rec := &routingRecognizer{results: map[string]domain.Recognition{
		"pickup": {TopIntent: "OrderPickup"},
		"smith":  {Entities: map[string][]string{"Name": {"smith"}}},
		"jane":   {Entities: map[string][]string{"Name": {"jane"}}},
		"addr":   {Entities: map[string][]string{"Address": {"addr"}}},
		"1234":   {Entities: map[string][]string{"PhoneLastFour": {"1234"}}},
	}}
	m := newDriveThru(t, rec, nil)

	session := domain.NewSession("c1")
	profile := domain.UserProfile{}
	ctx := context.Background()

	_, _, err := m.Resume(ctx, &session, &profile, "", false)
	require.NoError(t, err)
	for _, input := range []string{"pickup", "smith", "jane", "addr", "1234"} {
		_, _, err = m.Resume(ctx, &session, &profile, input, true)
		require.NoError(t, err)
	}

	msgs, done, err := m.Resume(ctx, &session, &profile, "no", true)
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, []string{msgDeclined}, msgs)
	require.Equal(t, domain.StatusCompleted, session.Status)
}

func TestDriveThru_RecognizerDownSurfacesSentinel(t *testing.T) {
	rec := &routingRecognizer{err: errors.New("dial tcp: timeout")}
	m := newDriveThru(t, rec, nil)

	session := domain.NewSession("c1")
	profile := domain.UserProfile{}
	ctx := context.Background()

	_, _, err := m.Resume(ctx, &session, &profile, "", false)
	require.NoError(t, err)

	cursor := session.Cursor
	_, _, err = m.Resume(ctx, &session, &profile, "pickup", true)
	require.ErrorIs(t, err, ErrRecognizerUnavailable)
	require.Equal(t, cursor, session.Cursor)
}

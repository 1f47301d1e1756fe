package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"drivethru-bot/internal/domain"
	"drivethru-bot/internal/usecase"
)

type stubUseCase struct {
	out usecase.TurnOutput
	err error
	in  domain.Activity
}

func (s *stubUseCase) Handle(_ context.Context, in domain.Activity) (usecase.TurnOutput, error) {
	s.in = in
	return s.out, s.err
}

func makeEvent(body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Path:       "/messages",
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func TestNewHandler_ValidatesDependency(t *testing.T) {
	_, err := NewHandler(nil)
	require.Error(t, err)
}

func TestHandle_HappyPath(t *testing.T) {
	uc := &stubUseCase{out: usecase.TurnOutput{
		ConversationID: "conv-1",
		Messages:       []string{"What is your last name?"},
	}}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(`{"conversationId":"conv-1","userId":"u1","text":"pick up my order"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, domain.Activity{
		ConversationID: "conv-1",
		UserID:         "u1",
		Text:           "pick up my order",
		EventKind:      domain.EventMessage,
	}, uc.in)

	out := parseBody[turnResponse](t, resp.Body)
	require.Equal(t, "conv-1", out.ConversationID)
	require.Equal(t, []string{"What is your last name?"}, out.Messages)
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
}

func TestHandle_MemberJoinEventKind(t *testing.T) {
	uc := &stubUseCase{out: usecase.TurnOutput{ConversationID: "conv-1"}}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	_, err = h.Handle(context.Background(), makeEvent(`{"conversationId":"conv-1","eventKind":"memberJoin"}`))
	require.NoError(t, err)
	require.Equal(t, domain.EventMemberJoin, uc.in.EventKind)
}

func TestHandle_InvalidBody(t *testing.T) {
	uc := &stubUseCase{}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(`not-json`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	out := parseBody[errorResponse](t, resp.Body)
	require.Equal(t, string(usecase.ErrorInvalidInput), out.Error)
}

func TestHandle_MapsUseCaseErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "invalid input", err: &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "empty_text"}, status: http.StatusBadRequest, code: string(usecase.ErrorInvalidInput)},
		{name: "busy", err: &usecase.Error{Code: usecase.ErrorConversationBusy, Reason: "session_revision_conflict"}, status: http.StatusConflict, code: string(usecase.ErrorConversationBusy)},
		{name: "upstream", err: &usecase.Error{Code: usecase.ErrorUpstream, Reason: "recognizer_error"}, status: http.StatusBadGateway, code: string(usecase.ErrorUpstream)},
		{name: "internal", err: &usecase.Error{Code: usecase.ErrorInternal, Reason: "session_save_error"}, status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, code: string(usecase.ErrorInternal)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			uc := &stubUseCase{err: tc.err}
			h, err := NewHandler(uc)
			require.NoError(t, err)

			resp, err := h.Handle(context.Background(), makeEvent(`{"conversationId":"conv-1","text":"hello"}`))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			out := parseBody[errorResponse](t, resp.Body)
			require.Equal(t, tc.code, out.Error)
		})
	}
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	uc := &stubUseCase{out: usecase.TurnOutput{ConversationID: "conv-1"}}
	h, err := NewHandler(uc)
	require.NoError(t, err)

	event := makeEvent(`{"conversationId":"conv-1","text":"hello"}`)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}

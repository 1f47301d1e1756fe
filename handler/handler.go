package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"drivethru-bot/internal/domain"
	"drivethru-bot/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// TurnUseCase is the turn service consumed by the handler.
type TurnUseCase interface {
	Handle(ctx context.Context, in domain.Activity) (usecase.TurnOutput, error)
}

type turnRequest struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	Text           string `json:"text"`
	EventKind      string `json:"eventKind"`
}

type turnResponse struct {
	ConversationID string   `json:"conversationId"`
	Messages       []string `json:"messages"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler adapts API Gateway proxy events to the turn service.
type Handler struct {
	uc TurnUseCase
}

func NewHandler(uc TurnUseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	return &Handler{uc: uc}, nil
}

// Handle decodes the inbound activity, runs one conversation turn, and maps
// typed service errors to HTTP statuses.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := resolveCorrelationID(event.Headers)

	var req turnRequest
	if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
		return respondError(correlationID, http.StatusBadRequest, usecase.ErrorInvalidInput), nil
	}

	eventKind := domain.EventKind(req.EventKind)
	if eventKind == "" {
		eventKind = domain.EventMessage
	}

	out, err := h.uc.Handle(ctx, domain.Activity{
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		Text:           req.Text,
		EventKind:      eventKind,
	})
	if err != nil {
		status, code := mapError(err)
		slog.Error("turn failed",
			"correlationId", correlationID,
			"conversationId", req.ConversationID,
			"code", code,
			"err", err,
		)
		return respondError(correlationID, status, code), nil
	}

	return respondJSON(correlationID, http.StatusOK, turnResponse{
		ConversationID: out.ConversationID,
		Messages:       out.Messages,
	}), nil
}

func mapError(err error) (int, usecase.ErrorCode) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return http.StatusInternalServerError, usecase.ErrorInternal
	}
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, ucErr.Code
	case usecase.ErrorConversationBusy:
		return http.StatusConflict, ucErr.Code
	case usecase.ErrorUpstream:
		return http.StatusBadGateway, ucErr.Code
	default:
		return http.StatusInternalServerError, usecase.ErrorInternal
	}
}

func resolveCorrelationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return uuid.NewString()
}

func respondJSON(correlationID string, status int, body any) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		// Marshal of these shapes cannot realistically fail; degrade anyway.
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Headers:    responseHeaders(correlationID),
			Body:       `{"error":"INTERNAL_ERROR"}`,
		}
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    responseHeaders(correlationID),
		Body:       string(raw),
	}
}

func respondError(correlationID string, status int, code usecase.ErrorCode) events.APIGatewayProxyResponse {
	return respondJSON(correlationID, status, errorResponse{Error: string(code)})
}

func responseHeaders(correlationID string) map[string]string {
	return map[string]string{
		"Content-Type":    "application/json",
		correlationHeader: correlationID,
	}
}

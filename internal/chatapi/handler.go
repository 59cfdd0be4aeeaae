package chatapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"chatmemory/internal/httpserver"
	"chatmemory/internal/llm"
	"chatmemory/internal/middleware"
	"chatmemory/internal/storage"

	"github.com/go-chi/chi/v5"
)

const (
	serviceTitle       = "Conversational Chat Bot"
	serviceVersion     = "2.1.0"
	serviceDescription = "Conversational chatbot with memory and session management"
)

var serviceFeatures = []string{
	"Conversational Responses",
	"Conversation Memory",
	"Session Management",
}

// ConversationService операции разговора, которые нужны HTTP слою.
type ConversationService interface {
	Generate(ctx context.Context, req llm.GenerateRequest) (llm.Reply, error)
	History(ctx context.Context, sessionID string) ([]storage.ChatMessage, error)
	ClearHistory(ctx context.Context, sessionID string) error
	DeleteSession(ctx context.Context, sessionID string) error
	ActiveSessions() []string
	SessionNames(ctx context.Context) ([]storage.SessionName, error)
	ConfiguredModel() string
	Model() string
}

type HandlerDeps struct {
	Conversations ConversationService
	Logger        *slog.Logger
}

type Handler struct {
	conversations ConversationService
	logger        *slog.Logger
}

func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{
		conversations: deps.Conversations,
		logger:        deps.Logger,
	}
}

// Register вешает маршруты API на роутер.
func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.handleRoot)
	r.Post("/generate", h.handleGenerate)
	r.Post("/clear_history", h.handleClearHistory)
	r.Post("/get_history", h.handleGetHistory)
	r.Get("/sessions", h.handleActiveSessions)
	r.Delete("/sessions/{sessionID}", h.handleDeleteSession)
	r.Get("/session_names", h.handleSessionNames)
	r.Get("/health", h.handleHealth)
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	httpserver.WriteJSON(w, http.StatusOK, rootResponse{
		Status:      "ok",
		Title:       serviceTitle,
		Version:     serviceVersion,
		Model:       h.conversations.ConfiguredModel(),
		Description: serviceDescription,
		Features:    serviceFeatures,
	})
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpserver.WriteJSONError(w, http.StatusBadRequest, "bad_request", "cannot parse request body")
		return
	}
	if req.Prompt == "" {
		httpserver.WriteJSONError(w, http.StatusBadRequest, "bad_request", "prompt is required")
		return
	}
	if req.MaxHistory != nil && *req.MaxHistory < 0 {
		httpserver.WriteJSONError(w, http.StatusBadRequest, "bad_request", "max_history must not be negative")
		return
	}

	reply, err := h.conversations.Generate(r.Context(), llm.GenerateRequest{
		Prompt:     req.Prompt,
		SessionID:  req.SessionID,
		MaxHistory: req.MaxHistory,
	})
	if errors.Is(err, llm.ErrModelUnavailable) {
		httpserver.WriteJSONError(w, http.StatusServiceUnavailable, "model_unavailable", err.Error())
		return
	}
	if err != nil {
		h.logger.Error("generate failed",
			slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
			slog.String("session_id", req.SessionID),
			slog.String("error", err.Error()))
		httpserver.WriteJSONError(w, http.StatusInternalServerError, "generation_error", fmt.Sprintf("Generation error: %v", err))
		return
	}

	httpserver.WriteJSON(w, http.StatusOK, generateResponse{
		Response:    reply.Response,
		MessageType: reply.MessageType,
		SessionID:   reply.SessionID,
		Timestamp:   unixSeconds(reply.Timestamp),
		Code:        reply.Code,
	})
}

func (h *Handler) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.decodeSessionID(w, r)
	if !ok {
		return
	}
	if err := h.conversations.ClearHistory(r.Context(), sessionID); err != nil {
		h.internalError(w, r, "clear history failed", sessionID, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, statusResponse{
		Status:  "success",
		Message: "Conversation history cleared",
	})
}

func (h *Handler) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.decodeSessionID(w, r)
	if !ok {
		return
	}
	msgs, err := h.conversations.History(r.Context(), sessionID)
	if err != nil {
		h.internalError(w, r, "get history failed", sessionID, err)
		return
	}
	if len(msgs) == 0 {
		httpserver.WriteJSON(w, http.StatusOK, statusResponse{
			Status:  "not_found",
			Message: "Session ID not found",
		})
		return
	}

	history := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		history = append(history, msg.Sender+": "+msg.Content)
	}
	httpserver.WriteJSON(w, http.StatusOK, historyResponse{Status: "success", History: history})
}

func (h *Handler) handleActiveSessions(w http.ResponseWriter, r *http.Request) {
	ids := h.conversations.ActiveSessions()
	httpserver.WriteJSON(w, http.StatusOK, activeSessionsResponse{
		ActiveSessions: ids,
		TotalSessions:  len(ids),
	})
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.conversations.DeleteSession(r.Context(), sessionID); err != nil {
		h.internalError(w, r, "delete session failed", sessionID, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, statusResponse{
		Status:  "success",
		Message: fmt.Sprintf("Session %s deleted", sessionID),
	})
}

func (h *Handler) handleSessionNames(w http.ResponseWriter, r *http.Request) {
	names, err := h.conversations.SessionNames(r.Context())
	if err != nil {
		h.internalError(w, r, "list session names failed", "", err)
		return
	}

	out := make([]sessionNameResponse, 0, len(names))
	for _, n := range names {
		item := sessionNameResponse{SessionID: n.SessionID, ChatName: n.ChatName}
		if !n.CreatedAt.IsZero() {
			created := n.CreatedAt.UTC().Format(time.RFC3339Nano)
			item.CreatedAt = &created
		}
		out = append(out, item)
	}
	httpserver.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:         "healthy",
		ActiveSessions: len(h.conversations.ActiveSessions()),
	}
	if model := h.conversations.Model(); model != "" {
		resp.Model = &model
	}
	httpserver.WriteJSON(w, http.StatusOK, resp)
}

// decodeSessionID читает тело {session_id}. При ошибке сам пишет ответ 400.
func (h *Handler) decodeSessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req historyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpserver.WriteJSONError(w, http.StatusBadRequest, "bad_request", "cannot parse request body")
		return "", false
	}
	if req.SessionID == "" {
		httpserver.WriteJSONError(w, http.StatusBadRequest, "bad_request", "session_id is required")
		return "", false
	}
	return req.SessionID, true
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, msg, sessionID string, err error) {
	h.logger.Error(msg,
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("session_id", sessionID),
		slog.String("error", err.Error()))
	httpserver.WriteJSONError(w, http.StatusInternalServerError, "internal_error", fmt.Sprintf("Internal error: %v", err))
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

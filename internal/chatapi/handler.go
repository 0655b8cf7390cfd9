package chatapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/af-corp/chatcenter/internal/config"
	"github.com/af-corp/chatcenter/internal/history"
	"github.com/af-corp/chatcenter/internal/httputil"
	"github.com/af-corp/chatcenter/internal/types"
)

// historyPageSize caps how many turns a single history read returns.
const historyPageSize = 200

// ChatService produces a chat result for a validated request.
type ChatService interface {
	ProcessChat(ctx context.Context, req *types.ChatRequest) (*types.ChatResult, error)
}

// Handler holds dependencies for the chat HTTP handlers.
type Handler struct {
	service   ChatService
	store     history.Store
	modelsCfg func() *config.ModelsConfig
}

func NewHandler(service ChatService, store history.Store, modelsCfg func() *config.ModelsConfig) *Handler {
	return &Handler{
		service:   service,
		store:     store,
		modelsCfg: modelsCfg,
	}
}

// Chat handles POST /v1/chat
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	receivedAt := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, "Failed to read request body")
		return
	}
	defer r.Body.Close()

	var chatReq types.ChatRequest
	if err := json.Unmarshal(body, &chatReq); err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid JSON: "+err.Error())
		return
	}
	chatReq.ReceivedAt = receivedAt

	result, err := h.service.ProcessChat(r.Context(), &chatReq)
	if err != nil {
		if errors.Is(err, types.ErrEmptyMessage) {
			httputil.WriteBadRequestError(w, reqID, "message is required")
			return
		}
		slog.Error("chat processing failed", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to process chat request")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// SessionHistory handles GET /v1/sessions/{sessionID}/history
func (h *Handler) SessionHistory(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		httputil.WriteBadRequestError(w, reqID, "session id is required")
		return
	}

	turns, err := h.store.SessionHistory(r.Context(), sessionID, historyPageSize)
	if err != nil {
		slog.Error("failed to load session history", "request_id", reqID, "session_id", sessionID, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to load session history")
		return
	}
	if len(turns) == 0 {
		httputil.WriteNotFoundError(w, reqID, "Session not found: "+sessionID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessionHistoryResponse{
		SessionID: sessionID,
		Turns:     turns,
	})
}

// ListModels handles GET /v1/models
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	modelsCfg := h.modelsCfg()

	models := make([]modelObject, 0, len(modelsCfg.Models))
	for name := range modelsCfg.Models {
		models = append(models, modelObject{
			ID:      name,
			Object:  "model",
			Default: name == modelsCfg.DefaultModel,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(modelListResponse{
		Object: "list",
		Data:   models,
	})
}

type sessionHistoryResponse struct {
	SessionID string       `json:"session_id"`
	Turns     []types.Turn `json:"turns"`
}

type modelObject struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Default bool   `json:"default"`
}

type modelListResponse struct {
	Object string        `json:"object"`
	Data   []modelObject `json:"data"`
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"

	"github.com/pharmassist/pharmassist/internal/db"
	"github.com/pharmassist/pharmassist/internal/llm"
	"github.com/pharmassist/pharmassist/internal/models"
)

const defaultUserID = "anonymous"

type Handler struct {
	store  *db.Store
	llm    *llm.Service
	logger *zap.Logger
}

func NewHandler(store *db.Store, llmService *llm.Service, logger *zap.Logger) *Handler {
	return &Handler{
		store:  store,
		llm:    llmService,
		logger: logger,
	}
}

type ChatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

func (r ChatRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Message, validation.Required.Error("message is required")),
	)
}

type ChatResponse struct {
	Response string            `json:"response"`
	Debug    models.DebugTrace `json:"debug"`
}

type HistoryResponse struct {
	Conversations []models.ConversationListItem `json:"conversations"`
}

// HandleChat serves POST /api/chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID := req.UserID
	if userID == "" {
		userID = defaultUserID
	}

	response, debug, err := h.llm.Chat(r.Context(), req.Message, userID)
	if err != nil {
		h.logger.Error("failed to process message",
			zap.String("userId", userID),
			zap.Error(err))
		if errors.Is(err, llm.ErrEmptyResponse) {
			writeError(w, http.StatusBadGateway, llm.ErrEmptyResponse.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to process message")
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Response: response, Debug: debug})
}

// HandleHistory serves GET /api/history?userId=.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "Query parameter 'userId' is required")
		return
	}

	items := h.store.All(userID)
	h.logger.Debug("retrieved history",
		zap.String("userId", userID),
		zap.Int("count", len(items)))

	writeJSON(w, http.StatusOK, HistoryResponse{Conversations: items})
}

// HandleHealth serves GET /api/health.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

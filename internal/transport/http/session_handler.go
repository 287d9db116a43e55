package http

import (
	"encoding/json"
	"net/http"

	"game-session-service/internal/app"
	"game-session-service/internal/domain"
)

// SessionHandler exposes the REST surface for session setup. Live play happens
// over the websocket; creation is a plain POST so tooling can script it.
type SessionHandler struct {
	service *app.GameService
}

func NewSessionHandler(service *app.GameService) *SessionHandler {
	return &SessionHandler{service: service}
}

type createSessionRequest struct {
	AccessCode string `json:"accessCode"`
	QuizID     string `json:"quizId"`
	Mode       string `json:"mode"`
}

func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.AccessCode == "" || req.QuizID == "" {
		http.Error(w, "missing accessCode or quizId", http.StatusBadRequest)
		return
	}
	mode := domain.PlayMode(req.Mode)
	if mode == "" {
		mode = domain.ModeLive
	}
	switch mode {
	case domain.ModeLive, domain.ModeQuiz, domain.ModeDeferred:
	default:
		http.Error(w, "unknown mode", http.StatusBadRequest)
		return
	}

	session, err := h.service.Orchestrator.CreateSession(r.Context(), req.AccessCode, req.QuizID, mode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(session)
}

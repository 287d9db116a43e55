package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"game-session-service/internal/app"
	"game-session-service/internal/domain"
)

// Connection roles. The role picks the audience room and the set of commands
// the connection may issue.
const (
	RoleParticipant = "participant"
	RoleModerator   = "moderator"
	RoleProjection  = "projection"
)

type WSHandler struct {
	service  *app.GameService
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService, hub *Hub) *WSHandler {
	return &WSHandler{
		service: service,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionUID string   `json:"questionUid"`
	Selected    []int    `json:"selected,omitempty"`
	Text        string   `json:"text,omitempty"`
	Number      *float64 `json:"number,omitempty"`
	Attempt     int      `json:"attempt,omitempty"`
}

type advancePayload struct {
	Index int `json:"index"`
}

type statsPayload struct {
	QuestionUID string `json:"questionUid"`
}

type errorPayload struct {
	Message string `json:"message"`
	Reason  string `json:"reason"`
}

func errorEvent(err error) app.Event {
	return app.Event{Type: "error", Payload: errorPayload{Message: err.Error(), Reason: domain.ReasonCode(err)}}
}

func audienceFor(role string) app.Audience {
	switch role {
	case RoleModerator:
		return app.AudienceDashboard
	case RoleProjection:
		return app.AudienceProjection
	default:
		return app.AudienceParticipants
	}
}

// ServeWS upgrades the request and runs the connection's read loop. One writer
// goroutine owns the socket; everything else funnels through the send channel.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	accessCode := r.URL.Query().Get("code")
	userID := r.URL.Query().Get("userId")
	displayName := r.URL.Query().Get("name")
	role := r.URL.Query().Get("role")
	if role == "" {
		role = RoleParticipant
	}
	if accessCode == "" || (role == RoleParticipant && (userID == "" || displayName == "")) {
		http.Error(w, "missing code, userId, or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	send := make(chan app.Event, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Msg("ws write error")
				return
			}
		}
	}()

	updates, unsubscribe := h.hub.Subscribe(accessCode, audienceFor(role))
	defer unsubscribe()

	updatesDone := make(chan struct{})
	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- update:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	switch role {
	case RoleParticipant:
		joined, err := h.service.Orchestrator.Join(r.Context(), accessCode, userID, displayName)
		if err != nil {
			send <- errorEvent(err)
			h.drain(closeSignals, updatesDone, send, writerDone)
			return
		}
		send <- app.Event{Type: "joined", Payload: joined}
	case RoleModerator:
		session, err := h.service.Orchestrator.Session(r.Context(), accessCode)
		if err != nil {
			send <- errorEvent(err)
			h.drain(closeSignals, updatesDone, send, writerDone)
			return
		}
		send <- app.Event{Type: "joined", Payload: session}
		if lb, err := h.service.Orchestrator.LiveRanking(r.Context(), accessCode); err == nil {
			send <- app.Event{Type: "live_ranking", Payload: lb}
		}
	case RoleProjection:
		session, err := h.service.Orchestrator.Session(r.Context(), accessCode)
		if err != nil {
			send <- errorEvent(err)
			h.drain(closeSignals, updatesDone, send, writerDone)
			return
		}
		send <- app.Event{Type: "joined", Payload: session}
		if lb, err := h.service.Leaderboard.Snapshot(r.Context(), accessCode); err == nil {
			send <- app.Event{Type: "leaderboard", Payload: lb}
		}
	}

	var replay *app.ReplaySession
	replayDone := make(chan struct{})
	close(replayDone)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch role {
		case RoleParticipant:
			replay = h.handleParticipant(r, accessCode, userID, displayName, inbound, send, closeSignals, replay, &replayDone)
		case RoleModerator:
			h.handleModerator(r, accessCode, inbound, send)
		default:
			send <- errorEvent(domain.ErrInvalidAnswer)
		}
	}

	if replay != nil {
		replay.Cancel()
	}
	h.drain(closeSignals, updatesDone, send, writerDone)
	<-replayDone
}

func (h *WSHandler) drain(closeSignals, updatesDone chan struct{}, send chan app.Event, writerDone chan struct{}) {
	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) handleParticipant(r *http.Request, accessCode, userID, displayName string, inbound inboundMessage, send chan app.Event, closeSignals chan struct{}, replay *app.ReplaySession, replayDone *chan struct{}) *app.ReplaySession {
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- errorEvent(domain.ErrInvalidAnswer)
			return replay
		}
		result, err := h.service.SubmitAnswer(r.Context(), accessCode, userID, domain.AnswerSubmission{
			QuestionUID: payload.QuestionUID,
			Value: domain.AnswerValue{
				Selected: payload.Selected,
				Text:     payload.Text,
				Number:   payload.Number,
			},
			Attempt: payload.Attempt,
		})
		if err != nil {
			send <- errorEvent(err)
			return replay
		}
		if !h.service.Orchestrator.RevealPolicy().SelfScore {
			result.ScoreDelta = 0
			result.TotalScore = 0
			result.Correctness = 0
		}
		send <- app.Event{Type: "answer_result", Payload: result}
	case "start_replay":
		rs, err := h.service.Replays.StartReplay(r.Context(), accessCode, userID, displayName)
		if err != nil {
			send <- errorEvent(err)
			return replay
		}
		done := make(chan struct{})
		*replayDone = done
		go func() {
			defer close(done)
			for event := range rs.Events() {
				select {
				case send <- app.Event{Type: event.Type, Payload: event}:
				case <-closeSignals:
					return
				}
			}
		}()
		return rs
	default:
		send <- errorEvent(domain.ErrInvalidAnswer)
	}
	return replay
}

func (h *WSHandler) handleModerator(r *http.Request, accessCode string, inbound inboundMessage, send chan app.Event) {
	ctx := r.Context()
	switch inbound.Type {
	case "advance":
		var payload advancePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- errorEvent(domain.ErrQuestionNotFound)
			return
		}
		session, err := h.service.Orchestrator.AdvanceQuestion(ctx, accessCode, payload.Index)
		if err != nil {
			send <- errorEvent(err)
			return
		}
		send <- app.Event{Type: "session", Payload: session}
	case "lock":
		if err := h.service.Orchestrator.LockAnswers(ctx, accessCode); err != nil {
			send <- errorEvent(err)
		}
	case "unlock":
		if err := h.service.Orchestrator.UnlockAnswers(ctx, accessCode); err != nil {
			send <- errorEvent(err)
		}
	case "pause_timer":
		state, err := h.service.Orchestrator.PauseTimer(ctx, accessCode)
		if err != nil {
			send <- errorEvent(err)
			return
		}
		send <- app.Event{Type: "timer", Payload: state}
	case "resume_timer":
		state, err := h.service.Orchestrator.ResumeTimer(ctx, accessCode)
		if err != nil {
			send <- errorEvent(err)
			return
		}
		send <- app.Event{Type: "timer", Payload: state}
	case "stop_timer":
		state, err := h.service.Orchestrator.StopTimer(ctx, accessCode)
		if err != nil {
			send <- errorEvent(err)
			return
		}
		send <- app.Event{Type: "timer", Payload: state}
	case "reveal_leaderboard":
		lb, err := h.service.Orchestrator.RevealLeaderboard(ctx, accessCode)
		if err != nil {
			send <- errorEvent(err)
			return
		}
		send <- app.Event{Type: "leaderboard", Payload: lb}
	case "live_ranking":
		lb, err := h.service.Orchestrator.LiveRanking(ctx, accessCode)
		if err != nil {
			send <- errorEvent(err)
			return
		}
		send <- app.Event{Type: "live_ranking", Payload: lb}
	case "reveal_stats":
		var payload statsPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			send <- errorEvent(domain.ErrQuestionNotFound)
			return
		}
		stats, err := h.service.Orchestrator.RevealAnswerStats(ctx, accessCode, payload.QuestionUID)
		if err != nil {
			send <- errorEvent(err)
			return
		}
		send <- app.Event{Type: "answer_stats", Payload: stats}
	case "end":
		lb, err := h.service.Orchestrator.EndSession(ctx, accessCode)
		if err != nil {
			send <- errorEvent(err)
			return
		}
		send <- app.Event{Type: "final_leaderboard", Payload: lb}
	default:
		send <- errorEvent(domain.ErrInvalidAnswer)
	}
}

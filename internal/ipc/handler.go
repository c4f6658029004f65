// Package ipc provides the HTTP API for the Tandem engine.
package ipc

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tandemlabs/tandem-engine/internal/activity"
	"github.com/tandemlabs/tandem-engine/internal/domain"
	"github.com/tandemlabs/tandem-engine/internal/flow"
	"github.com/tandemlabs/tandem-engine/internal/pairing"
	"github.com/tandemlabs/tandem-engine/internal/store"
)

// Handler holds all dependencies for the HTTP handlers.
type Handler struct {
	Pairing      *pairing.Manager
	Machine      *activity.Machine
	DB           *sql.DB
	Journal      *store.JournalRepo
	Activities   *store.ActivityRepo
	SnapshotPoll time.Duration
}

// CreateSessionRequest is the body for POST /api/v1/sessions.
type CreateSessionRequest struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	PartnerID   string `json:"partner_id"`
}

// JoinRequest is the body for POST /api/v1/sessions/{sessionID}/join.
type JoinRequest struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// LeaveRequest is the body for POST /api/v1/sessions/{sessionID}/leave.
type LeaveRequest struct {
	UserID string `json:"user_id"`
}

// StartActivityRequest is the body for POST /api/v1/sessions/{sessionID}/activities.
// An empty variant starts whatever the experience flow expects next.
type StartActivityRequest struct {
	UserID  string `json:"user_id"`
	Variant string `json:"variant,omitempty"`
}

// TurnRequest is the body for POST /api/v1/activities/{activityID}/turns.
type TurnRequest struct {
	UserID     string                `json:"user_id"`
	Submission domain.TurnSubmission `json:"submission"`
}

// FlowProgress summarizes where a session stands in the curriculum.
type FlowProgress struct {
	Step       int        `json:"step"`
	TotalSteps int        `json:"total_steps"`
	Completed  bool       `json:"completed"`
	NextStep   *flow.Step `json:"next_step,omitempty"`
}

// SessionView is the session snapshot returned by the API.
type SessionView struct {
	Session *domain.Session `json:"session"`
	Flow    FlowProgress    `json:"flow"`
}

// SessionSnapshot is one SSE frame: the session plus its current
// activity, if one is in progress.
type SessionSnapshot struct {
	Session  *domain.Session  `json:"session"`
	Activity *domain.Activity `json:"activity,omitempty"`
}

// APIError is a structured error response.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateSession handles POST /api/v1/sessions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "user_id is required"})
		return
	}

	sess, err := h.Pairing.Create(r.Context(), req.UserID, req.DisplayName, req.PartnerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.sessionView(sess))
}

// GetSession handles GET /api/v1/sessions/{sessionID}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Pairing.Get(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.sessionView(sess))
}

// JoinSession handles POST /api/v1/sessions/{sessionID}/join.
func (h *Handler) JoinSession(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return
	}
	sess, err := h.Pairing.Join(r.Context(), r.PathValue("sessionID"), req.UserID, req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.sessionView(sess))
}

// LeaveSession handles POST /api/v1/sessions/{sessionID}/leave.
func (h *Handler) LeaveSession(w http.ResponseWriter, r *http.Request) {
	var req LeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return
	}
	if err := h.Pairing.Leave(r.Context(), r.PathValue("sessionID"), req.UserID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RestartExperience handles POST /api/v1/sessions/{sessionID}/restart.
func (h *Handler) RestartExperience(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Machine.RestartExperience(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.sessionView(sess))
}

// StartActivity handles POST /api/v1/sessions/{sessionID}/activities. With
// no explicit variant the experience flow picks the next step; once the
// curriculum is complete an explicit variant is required to free-play.
func (h *Handler) StartActivity(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")
	var req StartActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return
	}

	variant := domain.ActivityVariant(req.Variant)
	if variant == "" {
		sess, err := h.Pairing.Get(r.Context(), sessionID)
		if err != nil {
			writeError(w, err)
			return
		}
		next := flow.NextStep(sess.ExperienceStep)
		if next == nil {
			writeError(w, domain.ErrExperienceComplete)
			return
		}
		variant = next.Variant
	}

	a, err := h.Machine.Start(r.Context(), sessionID, req.UserID, variant)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// GetActivity handles GET /api/v1/activities/{activityID}.
func (h *Handler) GetActivity(w http.ResponseWriter, r *http.Request) {
	a, err := h.Activities.GetByID(r.Context(), h.DB, r.PathValue("activityID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// SubmitTurn handles POST /api/v1/activities/{activityID}/turns.
func (h *Handler) SubmitTurn(w http.ResponseWriter, r *http.Request) {
	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "user_id is required"})
		return
	}

	a, err := h.Machine.SubmitTurn(r.Context(), r.PathValue("activityID"), req.UserID, req.Submission)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ListJournal handles GET /api/v1/sessions/{sessionID}/journal.
func (h *Handler) ListJournal(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")
	if _, err := h.Pairing.Get(r.Context(), sessionID); err != nil {
		writeError(w, err)
		return
	}
	entries, err := h.Journal.ListBySession(r.Context(), h.DB, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// StreamSession handles GET /api/v1/sessions/{sessionID}/stream (SSE). A
// snapshot is sent immediately, then whenever the session or its current
// activity changes version.
func (h *Handler) StreamSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, APIError{Code: 500, Message: "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	snap, err := h.snapshot(r, sessionID)
	if err != nil {
		writeSSEError(w, flusher, err)
		return
	}
	writeSSESnapshot(w, flusher, snap)
	lastSession := snap.Session.StateVersion
	lastActivity := int64(0)
	if snap.Activity != nil {
		lastActivity = snap.Activity.StateVersion
	}

	ctx := r.Context()
	poll := h.SnapshotPoll
	if poll <= 0 {
		poll = time.Second
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := h.snapshot(r, sessionID)
			if err != nil {
				return
			}
			actVersion := int64(0)
			if snap.Activity != nil {
				actVersion = snap.Activity.StateVersion
			}
			if snap.Session.StateVersion == lastSession && actVersion == lastActivity {
				continue
			}
			writeSSESnapshot(w, flusher, snap)
			lastSession = snap.Session.StateVersion
			lastActivity = actVersion
		}
	}
}

func (h *Handler) snapshot(r *http.Request, sessionID string) (*SessionSnapshot, error) {
	sess, err := h.Pairing.Get(r.Context(), sessionID)
	if err != nil {
		return nil, err
	}
	snap := &SessionSnapshot{Session: sess}
	if sess.CurrentActivityID != "" {
		a, err := h.Activities.GetByID(r.Context(), h.DB, sess.CurrentActivityID)
		if err == nil {
			snap.Activity = a
		}
	}
	return snap, nil
}

func (h *Handler) sessionView(sess *domain.Session) SessionView {
	return SessionView{
		Session: sess,
		Flow: FlowProgress{
			Step:       flow.ClampStep(sess.ExperienceStep),
			TotalSteps: len(flow.Steps),
			Completed:  sess.ExperienceCompleted,
			NextStep:   flow.NextStep(sess.ExperienceStep),
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	if engErr, ok := err.(*domain.EngineError); ok {
		status := http.StatusInternalServerError
		switch {
		case engErr.Code <= -32300 && engErr.Code > -32330:
			status = http.StatusNotFound
		case engErr.Code <= -32270 && engErr.Code > -32300:
			status = http.StatusConflict
		case engErr.Code <= -32240 && engErr.Code > -32270:
			status = http.StatusConflict
		case engErr.Code <= -32210 && engErr.Code > -32240:
			status = http.StatusUnprocessableEntity
		case engErr.Code == domain.ErrTurnConflict.Code || engErr.Code == domain.ErrVersionConflict.Code:
			status = http.StatusConflict
		}
		writeJSON(w, status, APIError{Code: engErr.Code, Message: engErr.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, APIError{Code: -1, Message: err.Error()})
}

func writeSSESnapshot(w http.ResponseWriter, f http.Flusher, snap *SessionSnapshot) {
	data, _ := json.Marshal(snap)
	fmt.Fprintf(w, "data: %s\n\n", data)
	f.Flush()
}

func writeSSEError(w http.ResponseWriter, f http.Flusher, err error) {
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", err.Error())
	f.Flush()
}

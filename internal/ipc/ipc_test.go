package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/tandemlabs/tandem-engine/internal/activity"
	"github.com/tandemlabs/tandem-engine/internal/domain"
	"github.com/tandemlabs/tandem-engine/internal/pairing"
	"github.com/tandemlabs/tandem-engine/internal/store"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := store.NewDB(dbPath)
	if err != nil {
		t.Fatalf("create db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return &Handler{
		Pairing:      pairing.NewManager(db),
		Machine:      activity.NewMachine(db, activity.DefaultConfig()),
		DB:           db,
		Journal:      &store.JournalRepo{},
		Activities:   &store.ActivityRepo{},
		SnapshotPoll: 20 * time.Millisecond,
	}
}

func createTestSession(t *testing.T, h *Handler) *domain.Session {
	t.Helper()
	sess, err := h.Pairing.Create(context.Background(), "solo", "Sam", domain.TestPartnerSentinel)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return sess
}

func TestCreateSession_Success(t *testing.T) {
	h := newTestHandler(t)
	body := `{"user_id":"alice","display_name":"Alice","partner_id":"bob"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.CreateSession(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var view SessionView
	json.NewDecoder(w.Body).Decode(&view)
	if view.Session.ParticipantA != "alice" {
		t.Errorf("ParticipantA = %q, want alice", view.Session.ParticipantA)
	}
	if view.Session.Status != domain.StatusPendingPartner {
		t.Errorf("Status = %q, want pending_partner_join", view.Session.Status)
	}
	if view.Flow.TotalSteps == 0 || view.Flow.NextStep == nil {
		t.Errorf("Flow = %+v, want populated progress", view.Flow)
	}
}

func TestCreateSession_InvalidBody(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewBufferString("not json"))
	w := httptest.NewRecorder()

	h.CreateSession(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCreateSession_SelfPairing422(t *testing.T) {
	h := newTestHandler(t)
	body := `{"user_id":"alice","display_name":"Alice","partner_id":"alice"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	h.CreateSession(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
	var apiErr APIError
	json.NewDecoder(w.Body).Decode(&apiErr)
	if apiErr.Code != domain.ErrSelfPairing.Code {
		t.Errorf("Code = %d, want %d", apiErr.Code, domain.ErrSelfPairing.Code)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/nonexistent", nil)
	req.SetPathValue("sessionID", "nonexistent")
	w := httptest.NewRecorder()

	h.GetSession(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestJoinSession_Full409(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()
	sess, err := h.Pairing.Create(ctx, "alice", "Alice", "bob")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.Pairing.Join(ctx, sess.ID, "bob", "Bob"); err != nil {
		t.Fatalf("join: %v", err)
	}

	body := `{"user_id":"carol","display_name":"Carol"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+sess.ID+"/join", bytes.NewBufferString(body))
	req.SetPathValue("sessionID", sess.ID)
	w := httptest.NewRecorder()

	h.JoinSession(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestStartActivity_FollowsFlow(t *testing.T) {
	h := newTestHandler(t)
	sess := createTestSession(t, h)

	body := `{"user_id":"solo"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+sess.ID+"/activities", bytes.NewBufferString(body))
	req.SetPathValue("sessionID", sess.ID)
	w := httptest.NewRecorder()

	h.StartActivity(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var a domain.Activity
	json.NewDecoder(w.Body).Decode(&a)
	// First curriculum step.
	if a.Variant != domain.VariantCoinToss {
		t.Errorf("Variant = %q, want coin-toss", a.Variant)
	}
}

func TestStartActivity_SecondIs409(t *testing.T) {
	h := newTestHandler(t)
	sess := createTestSession(t, h)

	start := func() *httptest.ResponseRecorder {
		body := `{"user_id":"solo"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+sess.ID+"/activities", bytes.NewBufferString(body))
		req.SetPathValue("sessionID", sess.ID)
		w := httptest.NewRecorder()
		h.StartActivity(w, req)
		return w
	}

	if w := start(); w.Code != http.StatusCreated {
		t.Fatalf("first start: expected 201, got %d", w.Code)
	}
	if w := start(); w.Code != http.StatusConflict {
		t.Fatalf("second start: expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSubmitTurn_RoundTrip(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()
	sess := createTestSession(t, h)

	a, err := h.Machine.Start(ctx, sess.ID, "solo", domain.VariantCheckIn)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	body := `{"user_id":"solo","submission":{"mood":4,"note":"doing well"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/activities/"+a.ID+"/turns", bytes.NewBufferString(body))
	req.SetPathValue("activityID", a.ID)
	w := httptest.NewRecorder()

	h.SubmitTurn(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var got domain.Activity
	json.NewDecoder(w.Body).Decode(&got)
	if got.Status != domain.ActivityInProgress {
		t.Errorf("Status = %q, want in-progress after first entry", got.Status)
	}
	if got.Notice == nil {
		t.Error("expected a turn notice")
	}
}

func TestSubmitTurn_OffTurn422(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()
	sess, err := h.Pairing.Create(ctx, "alice", "Alice", "bob")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.Pairing.Join(ctx, sess.ID, "bob", "Bob"); err != nil {
		t.Fatalf("join: %v", err)
	}
	a, err := h.Machine.Start(ctx, sess.ID, "alice", domain.VariantStory)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	offTurn := "alice"
	if a.Turn == "alice" {
		offTurn = "bob"
	}

	body := `{"user_id":"` + offTurn + `","submission":{"sentence":"out of turn"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/activities/"+a.ID+"/turns", bytes.NewBufferString(body))
	req.SetPathValue("activityID", a.ID)
	w := httptest.NewRecorder()

	h.SubmitTurn(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
	var apiErr APIError
	json.NewDecoder(w.Body).Decode(&apiErr)
	if apiErr.Code != domain.ErrNotYourTurn.Code {
		t.Errorf("Code = %d, want %d", apiErr.Code, domain.ErrNotYourTurn.Code)
	}
}

func TestListJournal(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()
	sess := createTestSession(t, h)

	a, err := h.Machine.Start(ctx, sess.ID, "solo", domain.VariantCoinToss)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := h.Machine.SubmitTurn(ctx, a.ID, "solo", domain.TurnSubmission{Action: activity.ActionToss}); err != nil {
		t.Fatalf("toss: %v", err)
	}
	if _, err := h.Machine.SubmitTurn(ctx, a.ID, "solo", domain.TurnSubmission{Action: activity.ActionContinue}); err != nil {
		t.Fatalf("continue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+sess.ID+"/journal", nil)
	req.SetPathValue("sessionID", sess.ID)
	w := httptest.NewRecorder()

	h.ListJournal(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var entries []domain.JournalEntry
	json.NewDecoder(w.Body).Decode(&entries)
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].ActivityName != "Coin Toss Challenge" {
		t.Errorf("ActivityName = %q", entries[0].ActivityName)
	}
}

func TestListJournal_EmptyArray(t *testing.T) {
	h := newTestHandler(t)
	sess := createTestSession(t, h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+sess.ID+"/journal", nil)
	req.SetPathValue("sessionID", sess.ID)
	w := httptest.NewRecorder()

	h.ListJournal(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Body.String(); got == "null\n" {
		t.Error("expected [] for empty journal, got null")
	}
}

func TestRestartExperience(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()
	sess := createTestSession(t, h)

	a, err := h.Machine.Start(ctx, sess.ID, "solo", domain.VariantCoinToss)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := h.Machine.SubmitTurn(ctx, a.ID, "solo", domain.TurnSubmission{Action: activity.ActionToss}); err != nil {
		t.Fatalf("toss: %v", err)
	}
	if _, err := h.Machine.SubmitTurn(ctx, a.ID, "solo", domain.TurnSubmission{Action: activity.ActionContinue}); err != nil {
		t.Fatalf("continue: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+sess.ID+"/restart", nil)
	req.SetPathValue("sessionID", sess.ID)
	w := httptest.NewRecorder()

	h.RestartExperience(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var view SessionView
	json.NewDecoder(w.Body).Decode(&view)
	if view.Flow.Step != 0 {
		t.Errorf("Flow.Step = %d, want 0 after restart", view.Flow.Step)
	}
}

func TestStreamSession_SSE_FirstSnapshot(t *testing.T) {
	h := newTestHandler(t)
	sess := createTestSession(t, h)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+sess.ID+"/stream", nil).WithContext(ctx)
	req.SetPathValue("sessionID", sess.ID)
	w := httptest.NewRecorder()

	h.StreamSession(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %s", ct)
	}
	if w.Body.Len() == 0 {
		t.Error("expected SSE data in body")
	}
}

func TestCORSHeaders(t *testing.T) {
	h := newTestHandler(t)
	srv := NewServer(h, ":0")

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions/x", nil)
	w := httptest.NewRecorder()

	srv.httpServer.Handler.ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS origin *")
	}
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204 for OPTIONS, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()

	h.Health(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/tandemlabs/tandem-engine/internal/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testSession(id string) domain.Session {
	now := time.Now().Unix()
	return domain.Session{
		ID:            id,
		ParticipantA:  "user-a",
		ParticipantB:  "user-b",
		DisplayNameA:  "Alex",
		DisplayNameB:  "Blair",
		Status:        domain.StatusActive,
		StateVersion:  1,
		CreatedAtUnix: now,
		UpdatedAtUnix: now,
	}
}

func TestSessionRepo_CreateAndGet(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := &SessionRepo{}

	s := testSession("sess-001")
	s.CompletedVariants = []domain.ActivityVariant{domain.VariantCoinToss}
	if err := repo.Create(ctx, db, s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(ctx, db, "sess-001")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ParticipantA != "user-a" || got.ParticipantB != "user-b" {
		t.Errorf("participants = %q/%q, want user-a/user-b", got.ParticipantA, got.ParticipantB)
	}
	if got.Status != domain.StatusActive {
		t.Errorf("Status = %q, want %q", got.Status, domain.StatusActive)
	}
	if got.StateVersion != 1 {
		t.Errorf("StateVersion = %d, want 1", got.StateVersion)
	}
	if len(got.CompletedVariants) != 1 || got.CompletedVariants[0] != domain.VariantCoinToss {
		t.Errorf("CompletedVariants = %v, want [coin-toss]", got.CompletedVariants)
	}
}

func TestSessionRepo_GetByID_NotFound(t *testing.T) {
	db := openTestDB(t)
	repo := &SessionRepo{}

	_, err := repo.GetByID(context.Background(), db, "nonexistent")
	if err != domain.ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionRepo_FindByParticipant(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := &SessionRepo{}

	s := testSession("sess-002")
	if err := repo.Create(ctx, db, s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, uid := range []string{"user-a", "user-b"} {
		got, err := repo.FindByParticipant(ctx, db, uid)
		if err != nil {
			t.Fatalf("FindByParticipant(%s): %v", uid, err)
		}
		if got.ID != "sess-002" {
			t.Errorf("FindByParticipant(%s) = %q, want sess-002", uid, got.ID)
		}
	}

	if _, err := repo.FindByParticipant(ctx, db, "stranger"); err != domain.ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound for stranger, got %v", err)
	}
}

func TestSessionRepo_UpdateState_OptimisticLock(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := &SessionRepo{}

	s := testSession("sess-003")
	if err := repo.Create(ctx, db, s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Update with correct version should succeed and bump the version.
	s.Score = 18
	if err := repo.UpdateState(ctx, db, s); err != nil {
		t.Fatalf("UpdateState: %v", err)
	}
	got, err := repo.GetByID(ctx, db, "sess-003")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Score != 18 {
		t.Errorf("Score = %d, want 18", got.Score)
	}
	if got.StateVersion != 2 {
		t.Errorf("StateVersion = %d, want 2", got.StateVersion)
	}

	// Update with stale version should be rejected with nothing written.
	s.Score = 99
	// s.StateVersion is still 1 but DB is now 2
	if err := repo.UpdateState(ctx, db, s); err != domain.ErrVersionConflict {
		t.Errorf("expected ErrVersionConflict, got %v", err)
	}
	got, err = repo.GetByID(ctx, db, "sess-003")
	if err != nil {
		t.Fatalf("GetByID after conflict: %v", err)
	}
	if got.Score != 18 {
		t.Errorf("Score after rejected write = %d, want 18", got.Score)
	}
}

func TestSessionRepo_Delete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := &SessionRepo{}

	s := testSession("sess-004")
	if err := repo.Create(ctx, db, s); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Delete(ctx, db, "sess-004"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, db, "sess-004"); err != domain.ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound after delete, got %v", err)
	}

	// Deleting an absent session is a no-op.
	if err := repo.Delete(ctx, db, "sess-004"); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

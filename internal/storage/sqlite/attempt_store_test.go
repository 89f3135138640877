package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Ip-59/teachai/internal/attemptlog"
	"github.com/Ip-59/teachai/internal/domain"
)

func newAttempt(cellID string, success bool) *attemptlog.Attempt {
	return &attemptlog.Attempt{
		ID:        uuid.NewString(),
		CellID:    cellID,
		Code:      "print(1)",
		Output:    "1",
		Success:   success,
		Verdict:   "correct",
		Duration:  120 * time.Millisecond,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestAttemptStore_Insert_Get(t *testing.T) {
	db := openTestDB(t)
	store := NewAttemptStore(db)
	ctx := context.Background()

	a := newAttempt("cell-1", true)
	if err := store.Insert(ctx, a); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	loaded, err := store.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if loaded.CellID != "cell-1" {
		t.Errorf("CellID = %q; want cell-1", loaded.CellID)
	}
	if !loaded.Success {
		t.Error("Success = false; want true")
	}
	if loaded.Duration != 120*time.Millisecond {
		t.Errorf("Duration = %v; want 120ms", loaded.Duration)
	}
	if loaded.Details != nil {
		t.Errorf("Details = %s; want nil", loaded.Details)
	}
}

func TestAttemptStore_DetailsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	store := NewAttemptStore(db)
	ctx := context.Background()

	a := newAttempt("cell-1", false)
	a.Details = []byte(`{"is_correct":false,"actual_variable":6}`)
	if err := store.Insert(ctx, a); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	loaded, err := store.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(loaded.Details) != string(a.Details) {
		t.Errorf("Details = %s; want %s", loaded.Details, a.Details)
	}
}

func TestAttemptStore_Get_NotFound(t *testing.T) {
	db := openTestDB(t)
	store := NewAttemptStore(db)

	_, err := store.Get(context.Background(), "nonexistent")
	if !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Errorf("Get() error = %v; want ErrAttemptNotFound", err)
	}
}

func TestAttemptStore_Insert_DuplicateID(t *testing.T) {
	db := openTestDB(t)
	store := NewAttemptStore(db)
	ctx := context.Background()

	a := newAttempt("cell-1", true)
	if err := store.Insert(ctx, a); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := store.Insert(ctx, a); err == nil {
		t.Error("Insert(duplicate) should fail, log is append-only")
	}
}

func TestAttemptStore_List(t *testing.T) {
	db := openTestDB(t)
	store := NewAttemptStore(db)
	ctx := context.Background()

	first := newAttempt("cell-1", false)
	first.CreatedAt = time.Now().UTC().Add(-time.Minute)
	second := newAttempt("cell-1", true)
	other := newAttempt("cell-2", true)

	for _, a := range []*attemptlog.Attempt{second, first, other} {
		if err := store.Insert(ctx, a); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	attempts, err := store.List(ctx, "cell-1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("List() returned %d items; want 2", len(attempts))
	}
	if attempts[0].ID != first.ID {
		t.Error("List() not in submission order")
	}
}

func TestAttemptStore_List_Empty(t *testing.T) {
	db := openTestDB(t)
	store := NewAttemptStore(db)

	attempts, err := store.List(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(attempts) != 0 {
		t.Errorf("List() returned %d items; want 0", len(attempts))
	}
}

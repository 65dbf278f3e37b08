package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestService_AppendRequiresTypeAndKey(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if err := svc.Append(context.Background(), Event{ContactID: "1"}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent without type, got %v", err)
	}
	if err := svc.Append(context.Background(), Event{Type: EventTypeEngagementUnassociated}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent without key, got %v", err)
	}
}

func TestService_EngagementUnassociated(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	svc.clock = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	if err := svc.EngagementUnassociated(context.Background(), "9001", "123", "RE1", errors.New("502 from crm")); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	e := evs[0]
	if e.Type != EventTypeEngagementUnassociated || e.EngagementID != "9001" || e.ContactID != "123" {
		t.Fatalf("unexpected event %+v", e)
	}
	if e.ID == "" || !e.CreatedAt.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("expected id and timestamp filled: %+v", e)
	}
	var meta map[string]string
	if err := json.Unmarshal([]byte(e.Metadata), &meta); err != nil || meta["error"] != "502 from crm" {
		t.Fatalf("unexpected metadata %q", e.Metadata)
	}
}

func TestService_EngagementCreateFailed(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.EngagementCreateFailed(context.Background(), "123", "agent1", "", errors.New("boom")); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	evs := repo.Events()
	if len(evs) != 1 || evs[0].Type != EventTypeEngagementCreateFailed || evs[0].OwnerID != "agent1" {
		t.Fatalf("unexpected events %+v", evs)
	}
}

func TestService_NoRepository(t *testing.T) {
	if err := NewService(nil).Append(context.Background(), Event{Type: EventTypeEngagementCreateFailed, ContactID: "1"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMemoryRepo_OfType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_ = svc.EngagementCreateFailed(ctx, "1", "agent1", "RE1", errors.New("x"))
	_ = svc.EngagementUnassociated(ctx, "9001", "2", "RE2", errors.New("y"))
	_ = svc.EngagementUnassociated(ctx, "9002", "3", "RE3", errors.New("z"))

	pending := repo.OfType(EventTypeEngagementUnassociated)
	if len(pending) != 2 || pending[0].EngagementID != "9001" || pending[1].EngagementID != "9002" {
		t.Fatalf("unexpected unassociated events %+v", pending)
	}
	if len(repo.Events()) != 3 {
		t.Fatalf("expected all 3 events, got %d", len(repo.Events()))
	}
}

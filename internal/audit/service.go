package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It is append-only; there are no Update/Delete methods.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records reconciliation failures. Callers treat it as best-effort:
// a failed append is logged and never changes the callback response.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}
	// a sweep needs something to key on
	if e.ContactID == "" && e.EngagementID == "" && e.RecordingSID == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// EngagementCreateFailed records a recording that produced no CRM engagement.
func (s *Service) EngagementCreateFailed(ctx context.Context, contactID, ownerID, recordingSID string, cause error) error {
	return s.Append(ctx, Event{
		Type:         EventTypeEngagementCreateFailed,
		ContactID:    contactID,
		OwnerID:      ownerID,
		RecordingSID: recordingSID,
		Message:      "engagement create failed",
		Metadata:     causeMetadata(cause),
	})
}

// EngagementUnassociated records an engagement left without its contact link.
// Association is keyed by engagement id and safe to retry.
func (s *Service) EngagementUnassociated(ctx context.Context, engagementID, contactID, recordingSID string, cause error) error {
	return s.Append(ctx, Event{
		Type:         EventTypeEngagementUnassociated,
		ContactID:    contactID,
		EngagementID: engagementID,
		RecordingSID: recordingSID,
		Message:      "engagement association failed",
		Metadata:     causeMetadata(cause),
	})
}

func causeMetadata(cause error) string {
	if cause == nil {
		return ""
	}
	b, err := json.Marshal(map[string]string{"error": cause.Error()})
	if err != nil {
		return ""
	}
	return string(b)
}

package calls

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"call-bridge/internal/crm"
	"call-bridge/pkg/logger"
)

type EngagementWriter interface {
	CreateCall(ctx context.Context, e crm.CallEngagement) (string, error)
	AssociateCallWithContact(ctx context.Context, callID, contactID string) error
}

// FailureRecorder keeps a durable trail of partial writes for an out-of-band sweep.
type FailureRecorder interface {
	EngagementCreateFailed(ctx context.Context, contactID, ownerID, recordingSID string, cause error) error
	EngagementUnassociated(ctx context.Context, engagementID, contactID, recordingSID string, cause error) error
}

// Deduper reports whether key is seen for the first time. Forget drops a
// claim so a later delivery of the same key is processed again.
type Deduper interface {
	FirstSeen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

type EngagementRecorder interface {
	EngagementRecorded(result string)
}

// Engagement outcomes, used as metric labels.
const (
	ResultAssociated   = "associated"
	ResultCreated      = "created"
	ResultUnassociated = "unassociated"
	ResultFailed       = "failed"
	ResultDuplicate    = "duplicate"
	ResultSkipped      = "skipped"
)

const (
	engagementTitle     = "Outbound call via Twilio"
	completedBody       = "Call completed"
	recordingFileSuffix = ".mp3"

	recordingCompleted = "completed"

	// maxDurationSeconds keeps the call start computable as a time.Duration.
	maxDurationSeconds = int64(math.MaxInt64 / time.Second)
)

// RecordingEvent is one recording-completed callback.
type RecordingEvent struct {
	ContactID string
	OwnerID   string

	CallSID string
	// RecordingStatus is empty or "completed" for the events we register for.
	RecordingStatus string

	RecordingSID      string
	RecordingURL      string
	RecordingDuration string

	From string
	To   string
}

type Outcome struct {
	Result       string
	EngagementID string
}

// Reconciler turns a completed recording into a CRM call engagement on the contact.
type Reconciler struct {
	CRM EngagementWriter

	// Optional collaborators.
	Failures FailureRecorder
	Dedupe   Deduper
	Metrics  EngagementRecorder

	Now func() time.Time
}

func NewReconciler(w EngagementWriter) *Reconciler {
	return &Reconciler{CRM: w, Now: time.Now}
}

// Reconcile creates the engagement, then associates it with the contact when
// both an engagement id and a contact id exist. A failed association leaves
// the engagement in place and is recorded for the sweep; nothing is rolled back.
// A failed create releases the dedupe claim so the platform's retry can write it.
func (r *Reconciler) Reconcile(ctx context.Context, ev RecordingEvent) (Outcome, error) {
	log := logger.From(ctx).With("contact_id", ev.ContactID, "call_sid", ev.CallSID, "recording_sid", ev.RecordingSID)

	if ev.RecordingStatus != "" && ev.RecordingStatus != recordingCompleted {
		r.count(ResultSkipped)
		log.Info("recording callback ignored", "recording_status", ev.RecordingStatus)
		return Outcome{Result: ResultSkipped}, nil
	}

	claimKey := ""
	if ev.RecordingSID != "" && r.Dedupe != nil {
		key := "recording:" + ev.RecordingSID
		first, err := r.Dedupe.FirstSeen(ctx, key)
		switch {
		case err != nil:
			log.Warn("recording dedupe unavailable", "err", err)
		case !first:
			r.count(ResultDuplicate)
			log.Info("duplicate recording callback ignored")
			return Outcome{Result: ResultDuplicate}, nil
		default:
			claimKey = key
		}
	}

	e := BuildEngagement(ev, r.now())

	id, err := r.CRM.CreateCall(ctx, e)
	if err != nil {
		r.count(ResultFailed)
		if claimKey != "" {
			if ferr := r.Dedupe.Forget(ctx, claimKey); ferr != nil {
				log.Warn("recording dedupe release failed", "err", ferr)
			}
		}
		if r.Failures != nil {
			if aerr := r.Failures.EngagementCreateFailed(ctx, ev.ContactID, ev.OwnerID, ev.RecordingSID, err); aerr != nil {
				log.Error("audit append failed", "err", aerr)
			}
		}
		return Outcome{Result: ResultFailed}, &UpstreamError{Op: "create engagement", Err: err}
	}

	if id == "" || ev.ContactID == "" {
		r.count(ResultCreated)
		return Outcome{Result: ResultCreated, EngagementID: id}, nil
	}

	if err := r.CRM.AssociateCallWithContact(ctx, id, ev.ContactID); err != nil {
		r.count(ResultUnassociated)
		if r.Failures != nil {
			if aerr := r.Failures.EngagementUnassociated(ctx, id, ev.ContactID, ev.RecordingSID, err); aerr != nil {
				log.Error("audit append failed", "err", aerr)
			}
		}
		return Outcome{Result: ResultUnassociated, EngagementID: id}, &UpstreamError{Op: "associate engagement", Err: err}
	}

	r.count(ResultAssociated)
	log.Info("engagement logged", "engagement_id", id, "duration_ms", e.DurationMs)
	return Outcome{Result: ResultAssociated, EngagementID: id}, nil
}

// BuildEngagement derives the CRM record for ev as received at now.
// The call start is now minus the recording duration.
func BuildEngagement(ev RecordingEvent, now time.Time) crm.CallEngagement {
	durMs := durationSeconds(ev.RecordingDuration) * 1000

	body := completedBody
	if ev.RecordingURL != "" {
		body = "Recording: " + ev.RecordingURL + recordingFileSuffix
	}

	return crm.CallEngagement{
		Timestamp:  now.Add(-time.Duration(durMs) * time.Millisecond),
		Title:      engagementTitle,
		Body:       body,
		DurationMs: durMs,
		Status:     crm.CallStatusCompleted,
		Direction:  crm.CallDirectionOutbound,
		FromNumber: ev.From,
		ToNumber:   ev.To,
		OwnerID:    ev.OwnerID,
	}
}

// durationSeconds reads the leading integer of s. Missing, negative,
// non-numeric or out-of-range input is 0.
func durationSeconds(s string) int64 {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil || n > maxDurationSeconds {
		return 0
	}
	return n
}

func (r *Reconciler) count(result string) {
	if r.Metrics != nil {
		r.Metrics.EngagementRecorded(result)
	}
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

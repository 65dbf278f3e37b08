package calls

import (
	"context"
	"errors"
	"testing"
	"time"

	"call-bridge/internal/crm"
)

type stubCRM struct {
	created    []crm.CallEngagement
	associated [][2]string

	createID  string
	createErr error
	assocErr  error

	// failCreates fails that many creates before succeeding.
	failCreates int
	attempts    int
}

func (s *stubCRM) CreateCall(ctx context.Context, e crm.CallEngagement) (string, error) {
	s.attempts++
	if s.createErr != nil {
		return "", s.createErr
	}
	if s.failCreates > 0 {
		s.failCreates--
		return "", errors.New("hubspot 502")
	}
	s.created = append(s.created, e)
	return s.createID, nil
}

func (s *stubCRM) AssociateCallWithContact(ctx context.Context, callID, contactID string) error {
	if s.assocErr != nil {
		return s.assocErr
	}
	s.associated = append(s.associated, [2]string{callID, contactID})
	return nil
}

type failureLog struct {
	createFailed []string
	unassociated []string
}

func (f *failureLog) EngagementCreateFailed(ctx context.Context, contactID, ownerID, recordingSID string, cause error) error {
	f.createFailed = append(f.createFailed, contactID)
	return nil
}

func (f *failureLog) EngagementUnassociated(ctx context.Context, engagementID, contactID, recordingSID string, cause error) error {
	f.unassociated = append(f.unassociated, engagementID)
	return nil
}

type memDeduper struct{ seen map[string]bool }

func (m *memDeduper) FirstSeen(ctx context.Context, key string) (bool, error) {
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func (m *memDeduper) Forget(ctx context.Context, key string) error {
	delete(m.seen, key)
	return nil
}

type resultCounter map[string]int

func (r resultCounter) EngagementRecorded(result string) { r[result]++ }

var fixedNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newTestReconciler(w EngagementWriter) *Reconciler {
	r := NewReconciler(w)
	r.Now = func() time.Time { return fixedNow }
	return r
}

func TestBuildEngagement_DurationRules(t *testing.T) {
	cases := []struct {
		raw    string
		wantMs int64
	}{
		{"", 0},
		{"0", 0},
		{"abc", 0},
		{"-5", 0},
		{"30", 30000},
		{" 12 ", 12000},
		{"7.9", 7000},
		{"9223372036", 9223372036000},
		{"9223372037", 0},
		{"9300000000000000", 0},
		{"99999999999999999999", 0},
	}
	for _, tc := range cases {
		e := BuildEngagement(RecordingEvent{RecordingDuration: tc.raw}, fixedNow)
		if e.DurationMs != tc.wantMs {
			t.Fatalf("%q: expected %dms, got %d", tc.raw, tc.wantMs, e.DurationMs)
		}
		if want := fixedNow.Add(-time.Duration(tc.wantMs) * time.Millisecond); !e.Timestamp.Equal(want) {
			t.Fatalf("%q: expected start %s, got %s", tc.raw, want, e.Timestamp)
		}
	}
}

func TestBuildEngagement_BodyAndFixedFields(t *testing.T) {
	e := BuildEngagement(RecordingEvent{RecordingURL: "https://x/y", OwnerID: "agent1", From: "+1", To: "+2"}, fixedNow)
	if e.Body != "Recording: https://x/y.mp3" {
		t.Fatalf("unexpected body %q", e.Body)
	}
	if e.Status != crm.CallStatusCompleted || e.Direction != crm.CallDirectionOutbound {
		t.Fatalf("unexpected status/direction %q %q", e.Status, e.Direction)
	}
	if e.Title != "Outbound call via Twilio" || e.OwnerID != "agent1" || e.FromNumber != "+1" || e.ToNumber != "+2" {
		t.Fatalf("unexpected engagement %+v", e)
	}

	if got := BuildEngagement(RecordingEvent{}, fixedNow).Body; got != "Call completed" {
		t.Fatalf("expected completed marker, got %q", got)
	}
}

func TestReconcile_CreatesThenAssociates(t *testing.T) {
	w := &stubCRM{createID: "9001"}
	metrics := resultCounter{}
	r := newTestReconciler(w)
	r.Metrics = metrics

	out, err := r.Reconcile(context.Background(), RecordingEvent{ContactID: "123", OwnerID: "agent1", RecordingDuration: "30"})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if out.Result != ResultAssociated || out.EngagementID != "9001" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if len(w.created) != 1 || len(w.associated) != 1 || w.associated[0] != [2]string{"9001", "123"} {
		t.Fatalf("unexpected writes: %+v %+v", w.created, w.associated)
	}
	if !w.created[0].Timestamp.Equal(fixedNow.Add(-30 * time.Second)) {
		t.Fatalf("unexpected start %s", w.created[0].Timestamp)
	}
	if metrics[ResultAssociated] != 1 {
		t.Fatalf("expected associated metric, got %v", metrics)
	}
}

func TestReconcile_SkipsAssociationWithoutContactOrID(t *testing.T) {
	w := &stubCRM{createID: "9001"}
	out, err := newTestReconciler(w).Reconcile(context.Background(), RecordingEvent{OwnerID: "a"})
	if err != nil || out.Result != ResultCreated {
		t.Fatalf("unexpected %+v %v", out, err)
	}
	w = &stubCRM{}
	out, err = newTestReconciler(w).Reconcile(context.Background(), RecordingEvent{ContactID: "1"})
	if err != nil || out.Result != ResultCreated || len(w.associated) != 0 {
		t.Fatalf("expected no association without an engagement id: %+v %v", out, err)
	}
}

func TestReconcile_AssociationFailureKeepsEngagement(t *testing.T) {
	w := &stubCRM{createID: "9001", assocErr: errors.New("timeout")}
	failures := &failureLog{}
	r := newTestReconciler(w)
	r.Failures = failures

	out, err := r.Reconcile(context.Background(), RecordingEvent{ContactID: "123"})
	var upErr *UpstreamError
	if !errors.As(err, &upErr) || upErr.Op != "associate engagement" {
		t.Fatalf("expected association UpstreamError, got %v", err)
	}
	if out.Result != ResultUnassociated || out.EngagementID != "9001" || len(w.created) != 1 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if len(failures.unassociated) != 1 || failures.unassociated[0] != "9001" {
		t.Fatalf("expected unassociated record, got %+v", failures.unassociated)
	}
}

func TestReconcile_CreateFailureIsRecorded(t *testing.T) {
	w := &stubCRM{createErr: errors.New("400")}
	failures := &failureLog{}
	r := newTestReconciler(w)
	r.Failures = failures

	out, err := r.Reconcile(context.Background(), RecordingEvent{ContactID: "123"})
	if err == nil || out.Result != ResultFailed {
		t.Fatalf("expected failure, got %+v %v", out, err)
	}
	if len(failures.createFailed) != 1 || len(w.associated) != 0 {
		t.Fatalf("unexpected side effects: %+v", failures)
	}
}

func TestReconcile_DuplicateRecordingWritesOnce(t *testing.T) {
	w := &stubCRM{createID: "1"}
	r := newTestReconciler(w)
	r.Dedupe = &memDeduper{seen: map[string]bool{}}

	ev := RecordingEvent{ContactID: "123", RecordingSID: "RE1"}
	if _, err := r.Reconcile(context.Background(), ev); err != nil {
		t.Fatalf("first: %v", err)
	}
	out, err := r.Reconcile(context.Background(), ev)
	if err != nil || out.Result != ResultDuplicate {
		t.Fatalf("expected duplicate, got %+v %v", out, err)
	}
	if len(w.created) != 1 {
		t.Fatalf("expected one engagement, got %d", len(w.created))
	}
}

func TestReconcile_FailedCreateIsRetriedOnRedelivery(t *testing.T) {
	w := &stubCRM{createID: "9001", failCreates: 1}
	r := newTestReconciler(w)
	r.Dedupe = &memDeduper{seen: map[string]bool{}}

	ev := RecordingEvent{ContactID: "123", RecordingSID: "RE1"}
	out, err := r.Reconcile(context.Background(), ev)
	if err == nil || out.Result != ResultFailed {
		t.Fatalf("expected first delivery to fail, got %+v %v", out, err)
	}

	out, err = r.Reconcile(context.Background(), ev)
	if err != nil || out.Result != ResultAssociated {
		t.Fatalf("expected redelivery to write, got %+v %v", out, err)
	}
	if w.attempts != 2 || len(w.created) != 1 {
		t.Fatalf("expected 2 create attempts and 1 engagement, got %d %d", w.attempts, len(w.created))
	}

	out, _ = r.Reconcile(context.Background(), ev)
	if out.Result != ResultDuplicate {
		t.Fatalf("expected duplicate after success, got %+v", out)
	}
}

func TestReconcile_IgnoresNonCompletedStatus(t *testing.T) {
	w := &stubCRM{createID: "9001"}
	metrics := resultCounter{}
	r := newTestReconciler(w)
	r.Metrics = metrics

	out, err := r.Reconcile(context.Background(), RecordingEvent{ContactID: "123", RecordingStatus: "in-progress"})
	if err != nil || out.Result != ResultSkipped {
		t.Fatalf("expected skipped, got %+v %v", out, err)
	}
	if w.attempts != 0 || metrics[ResultSkipped] != 1 {
		t.Fatalf("expected no CRM write, got %d attempts %v", w.attempts, metrics)
	}

	out, err = r.Reconcile(context.Background(), RecordingEvent{ContactID: "123", RecordingStatus: "completed"})
	if err != nil || out.Result != ResultAssociated {
		t.Fatalf("expected completed to write, got %+v %v", out, err)
	}
}

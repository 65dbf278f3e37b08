package crm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetContact_ReadsDialProperties(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/crm/v3/objects/contacts/123" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("properties"); got != "phone,mobilephone,hubspot_owner_id,assigned_agent_name" {
			t.Fatalf("unexpected properties %q", got)
		}
		if r.Header.Get("Authorization") != "Bearer pat-1" {
			t.Fatalf("missing bearer token")
		}
		_, _ = w.Write([]byte(`{"id":"123","properties":{"phone":" +15551110000 ","mobilephone":"+15552220000","hubspot_owner_id":"77","assigned_agent_name":"bob"}}`))
	}))
	defer srv.Close()

	c := NewHubSpotClient(srv.URL, "pat-1", time.Second)
	got, err := c.GetContact(context.Background(), "123")
	if err != nil {
		t.Fatalf("get contact: %v", err)
	}
	want := Contact{ID: "123", Phone: "+15551110000", MobilePhone: "+15552220000", OwnerID: "77", AssignedAgentName: "bob"}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestGetContact_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":"error","message":"Object not found","category":"OBJECT_NOT_FOUND"}`))
	}))
	defer srv.Close()

	_, err := NewHubSpotClient(srv.URL, "t", time.Second).GetContact(context.Background(), "404")
	if !errors.Is(err, ErrContactNotFound) {
		t.Fatalf("expected ErrContactNotFound, got %v", err)
	}
}

func TestGetContact_ServerErrorIsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHubSpotClient(srv.URL, "t", time.Second).GetContact(context.Background(), "1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected APIError 502, got %v", err)
	}
	if errors.Is(err, ErrContactNotFound) {
		t.Fatalf("5xx must not read as not-found")
	}
}

func TestCreateCall_SendsEngagementProperties(t *testing.T) {
	var props map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/crm/v3/objects/calls" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Properties map[string]string `json:"properties"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		props = body.Properties
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"9001","properties":{}}`))
	}))
	defer srv.Close()

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	id, err := NewHubSpotClient(srv.URL, "t", time.Second).CreateCall(context.Background(), CallEngagement{
		Timestamp:  ts,
		Title:      "Outbound call via Twilio",
		Body:       "Recording: https://x/r.mp3",
		DurationMs: 30000,
		Status:     CallStatusCompleted,
		Direction:  CallDirectionOutbound,
		FromNumber: "+15550000001",
		ToNumber:   "+15550000002",
		OwnerID:    "alice",
	})
	if err != nil {
		t.Fatalf("create call: %v", err)
	}
	if id != "9001" {
		t.Fatalf("expected id 9001, got %q", id)
	}
	want := map[string]string{
		"hs_timestamp":        "2024-03-01T12:00:00.000Z",
		"hs_call_duration":    "30000",
		"hs_call_status":      "COMPLETED",
		"hs_call_direction":   "OUTBOUND",
		"hs_call_body":        "Recording: https://x/r.mp3",
		"hs_call_from_number": "+15550000001",
		"hs_call_to_number":   "+15550000002",
		"hubspot_owner_id":    "alice",
	}
	for k, v := range want {
		if props[k] != v {
			t.Fatalf("property %s: expected %q, got %q", k, v, props[k])
		}
	}
}

func TestAssociateCallWithContact(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	if err := NewHubSpotClient(srv.URL, "t", time.Second).AssociateCallWithContact(context.Background(), "9001", "123"); err != nil {
		t.Fatalf("associate: %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/crm/v3/objects/calls/9001/associations/contacts/123/call_to_contact" {
		t.Fatalf("unexpected request %s %s", gotMethod, gotPath)
	}
}

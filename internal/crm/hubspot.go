package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Contact is the subset of CRM contact properties the call flow reads.
type Contact struct {
	ID                string
	Phone             string
	MobilePhone       string
	OwnerID           string
	AssignedAgentName string
}

// CallEngagement is a logged call on a contact's timeline.
type CallEngagement struct {
	Timestamp  time.Time
	Title      string
	Body       string
	DurationMs int64
	Status     string
	Direction  string
	FromNumber string
	ToNumber   string
	OwnerID    string
}

const (
	CallStatusCompleted   = "COMPLETED"
	CallDirectionOutbound = "OUTBOUND"
)

var ErrContactNotFound = errors.New("crm: contact not found")

// APIError is a non-2xx response from the CRM API.
type APIError struct {
	StatusCode    int
	Status        string `json:"status"`
	Message       string `json:"message"`
	Category      string `json:"category"`
	CorrelationID string `json:"correlationId"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("crm: api error (status %d, %s): %s", e.StatusCode, e.Category, e.Message)
	}
	return fmt.Sprintf("crm: api returned status %d", e.StatusCode)
}

// HubSpotClient is an HTTP client for the CRM v3 objects API.
type HubSpotClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewHubSpotClient creates a client rooted at baseURL (e.g. "https://api.hubapi.com").
// token is a private-app bearer token. Calls are never retried here.
func NewHubSpotClient(baseURL, token string, timeout time.Duration) *HubSpotClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HubSpotClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

var contactProperties = []string{"phone", "mobilephone", "hubspot_owner_id", "assigned_agent_name"}

type objectResponse struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

func (c *HubSpotClient) GetContact(ctx context.Context, contactID string) (Contact, error) {
	if contactID == "" {
		return Contact{}, errors.New("crm: contact id required")
	}
	q := url.Values{}
	q.Set("properties", strings.Join(contactProperties, ","))
	path := "/crm/v3/objects/contacts/" + url.PathEscape(contactID) + "?" + q.Encode()

	var out objectResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return Contact{}, fmt.Errorf("%w: %s", ErrContactNotFound, contactID)
		}
		return Contact{}, err
	}
	p := out.Properties
	return Contact{
		ID:                out.ID,
		Phone:             strings.TrimSpace(p["phone"]),
		MobilePhone:       strings.TrimSpace(p["mobilephone"]),
		OwnerID:           strings.TrimSpace(p["hubspot_owner_id"]),
		AssignedAgentName: strings.TrimSpace(p["assigned_agent_name"]),
	}, nil
}

// CreateCall writes an unassociated call engagement and returns its id.
func (c *HubSpotClient) CreateCall(ctx context.Context, e CallEngagement) (string, error) {
	body := map[string]any{"properties": engagementProperties(e)}
	var out objectResponse
	if err := c.do(ctx, http.MethodPost, "/crm/v3/objects/calls", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// AssociateCallWithContact links an engagement to a contact. Safe to repeat.
func (c *HubSpotClient) AssociateCallWithContact(ctx context.Context, callID, contactID string) error {
	if callID == "" || contactID == "" {
		return errors.New("crm: call id and contact id required")
	}
	path := fmt.Sprintf("/crm/v3/objects/calls/%s/associations/contacts/%s/call_to_contact",
		url.PathEscape(callID), url.PathEscape(contactID))
	return c.do(ctx, http.MethodPut, path, struct{}{}, nil)
}

func engagementProperties(e CallEngagement) map[string]string {
	return map[string]string{
		"hs_timestamp":        e.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
		"hs_call_title":       e.Title,
		"hs_call_body":        e.Body,
		"hs_call_duration":    strconv.FormatInt(e.DurationMs, 10),
		"hs_call_status":      e.Status,
		"hs_call_direction":   e.Direction,
		"hs_call_from_number": e.FromNumber,
		"hs_call_to_number":   e.ToNumber,
		"hubspot_owner_id":    e.OwnerID,
	}
}

func (c *HubSpotClient) do(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("crm: marshalling request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("crm: creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("crm: sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("crm: reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(body, apiErr)
		return apiErr
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("crm: decoding response: %w", err)
	}
	return nil
}

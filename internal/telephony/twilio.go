package telephony

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

// DefaultAPIBaseURL is where the SDK sends REST calls.
const DefaultAPIBaseURL = "https://api.twilio.com"

// Credentials authenticate REST calls for one account.
type Credentials struct {
	AccountSID string
	AuthToken  string
}

// CreateCallRequest places an outbound call. The platform fetches URL with
// Method once the callee answers.
type CreateCallRequest struct {
	From   string
	To     string
	URL    string
	Method string
}

// Call is the subset of the call resource we keep.
type Call struct {
	SID string
}

// APIError is a non-2xx response from the REST API.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
	MoreInfo   string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("telephony: api error (status %d, code %d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("telephony: api returned status %d", e.StatusCode)
}

// TwilioClient places calls through the Twilio SDK. A REST client is built
// per request because each identity carries its own account.
type TwilioClient struct {
	timeout   time.Duration
	transport http.RoundTripper
}

// NewTwilioClient creates a client. A baseURL other than DefaultAPIBaseURL
// redirects SDK traffic to that host. A zero timeout falls back to 10s;
// calls are never retried here.
func NewTwilioClient(baseURL string, timeout time.Duration) *TwilioClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &TwilioClient{timeout: timeout}
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL != "" && baseURL != DefaultAPIBaseURL {
		if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
			c.transport = rebase{target: u, next: http.DefaultTransport}
		}
	}
	return c
}

func (c *TwilioClient) rest(creds Credentials) *twilio.RestClient {
	base := &client.Client{
		Credentials: client.NewCredentials(creds.AccountSID, creds.AuthToken),
		HTTPClient:  &http.Client{Timeout: c.timeout, Transport: c.transport},
	}
	base.SetAccountSid(creds.AccountSID)
	return twilio.NewRestClientWithParams(twilio.ClientParams{Client: base})
}

// CreateCall asks the platform to dial req.To. The SDK call takes no
// context; the client timeout bounds it.
func (c *TwilioClient) CreateCall(ctx context.Context, creds Credentials, req CreateCallRequest) (Call, error) {
	if creds.AccountSID == "" || creds.AuthToken == "" {
		return Call{}, errors.New("telephony: credentials required")
	}
	if req.From == "" || req.To == "" || req.URL == "" {
		return Call{}, errors.New("telephony: from, to and url required")
	}
	if err := ctx.Err(); err != nil {
		return Call{}, err
	}
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	params := &api.CreateCallParams{}
	params.SetPathAccountSid(creds.AccountSID)
	params.SetFrom(req.From)
	params.SetTo(req.To)
	params.SetUrl(req.URL)
	params.SetMethod(method)

	resp, err := c.rest(creds).Api.CreateCall(params)
	if err != nil {
		var restErr *client.TwilioRestError
		if errors.As(err, &restErr) {
			return Call{}, &APIError{StatusCode: restErr.Status, Code: restErr.Code, Message: restErr.Message, MoreInfo: restErr.MoreInfo}
		}
		return Call{}, fmt.Errorf("telephony: create call: %w", err)
	}
	if resp == nil || resp.Sid == nil || *resp.Sid == "" {
		return Call{}, errors.New("telephony: create call returned no sid")
	}
	return Call{SID: *resp.Sid}, nil
}

// rebase sends every request to target's scheme and host, keeping the path.
type rebase struct {
	target *url.URL
	next   http.RoundTripper
}

func (r rebase) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = r.target.Scheme
	out.URL.Host = r.target.Host
	out.Host = r.target.Host
	return r.next.RoundTrip(out)
}

package calls

import (
	"net/url"
	"strings"

	"call-bridge/internal/registry"
)

// CallContext is the request-scoped view of one dial request. It is never persisted.
type CallContext struct {
	ContactID   string
	Destination string
	AgentKey    string
	Mode        registry.CallMode
}

// Query parameter names shared by the bridge and recording callback URLs.
const (
	ParamContactID = "contactId"
	ParamOwnerID   = "ownerId"
	ParamTo        = "to"
	ParamFrom      = "from"
)

// BridgeToken is the continuation state threaded through the platform between
// the agent answering and the bridge instruction request. The platform holds it
// as query parameters on a URL we build; nothing is stored locally.
type BridgeToken struct {
	ContactID string
	OwnerID   string
	To        string
	From      string
}

// Validate reports the first missing field, in contactId, ownerId, to, from order.
func (t BridgeToken) Validate() error {
	switch {
	case t.ContactID == "":
		return &InputError{Field: ParamContactID}
	case t.OwnerID == "":
		return &InputError{Field: ParamOwnerID}
	case t.To == "":
		return &InputError{Field: ParamTo}
	case t.From == "":
		return &InputError{Field: ParamFrom}
	}
	return nil
}

// Encode validates the token and serializes it as query parameters.
func (t BridgeToken) Encode() (url.Values, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set(ParamContactID, t.ContactID)
	q.Set(ParamOwnerID, t.OwnerID)
	q.Set(ParamTo, t.To)
	q.Set(ParamFrom, t.From)
	return q, nil
}

// DecodeBridgeToken parses and validates a token received on the bridge endpoint.
func DecodeBridgeToken(q url.Values) (BridgeToken, error) {
	t := BridgeToken{
		ContactID: strings.TrimSpace(q.Get(ParamContactID)),
		OwnerID:   strings.TrimSpace(q.Get(ParamOwnerID)),
		To:        restorePlus(q.Get(ParamTo)),
		From:      restorePlus(q.Get(ParamFrom)),
	}
	if err := t.Validate(); err != nil {
		return BridgeToken{}, err
	}
	return t, nil
}

// RecordingParams is the subset of the token the recording callback needs.
func (t BridgeToken) RecordingParams() url.Values {
	q := url.Values{}
	q.Set(ParamContactID, t.ContactID)
	q.Set(ParamOwnerID, t.OwnerID)
	return q
}

// restorePlus undoes a '+' that was sent unescaped and decoded as a space.
func restorePlus(s string) string {
	if strings.HasPrefix(s, " ") {
		if rest := strings.TrimSpace(s); rest != "" && rest[0] >= '0' && rest[0] <= '9' {
			return "+" + rest
		}
	}
	return strings.TrimSpace(s)
}

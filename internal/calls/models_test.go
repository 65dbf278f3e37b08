package calls

import (
	"errors"
	"net/url"
	"testing"
)

func TestBridgeToken_EncodeDecodeSymmetric(t *testing.T) {
	tok := BridgeToken{ContactID: "123", OwnerID: "agent1", To: "+15551234567", From: "+15559999999"}
	q, err := tok.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	parsed, err := url.ParseQuery(q.Encode())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got, err := DecodeBridgeToken(parsed)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != tok {
		t.Fatalf("expected %+v, got %+v", tok, got)
	}
}

func TestBridgeToken_MissingFieldNamesIt(t *testing.T) {
	cases := map[string]BridgeToken{
		ParamContactID: {OwnerID: "a", To: "+1", From: "+2"},
		ParamOwnerID:   {ContactID: "1", To: "+1", From: "+2"},
		ParamTo:        {ContactID: "1", OwnerID: "a", From: "+2"},
		ParamFrom:      {ContactID: "1", OwnerID: "a", To: "+1"},
	}
	for field, tok := range cases {
		_, err := tok.Encode()
		var inErr *InputError
		if !errors.As(err, &inErr) || inErr.Field != field {
			t.Fatalf("%s: expected InputError for field, got %v", field, err)
		}
		q := url.Values{}
		q.Set(ParamContactID, tok.ContactID)
		q.Set(ParamOwnerID, tok.OwnerID)
		q.Set(ParamTo, tok.To)
		q.Set(ParamFrom, tok.From)
		if _, err := DecodeBridgeToken(q); !errors.As(err, &inErr) || inErr.Field != field {
			t.Fatalf("%s: decode expected InputError, got %v", field, err)
		}
	}
}

func TestDecodeBridgeToken_RestoresUnescapedPlus(t *testing.T) {
	q, err := url.ParseQuery("contactId=1&ownerId=a&to=%2B15551234567&from=+15559999999")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	tok, err := DecodeBridgeToken(q)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tok.From != "+15559999999" || tok.To != "+15551234567" {
		t.Fatalf("unexpected numbers %q %q", tok.From, tok.To)
	}
}

func TestBridgeToken_RecordingParamsCarryContactAndOwner(t *testing.T) {
	q := BridgeToken{ContactID: "1", OwnerID: "a", To: "+1", From: "+2"}.RecordingParams()
	if q.Get(ParamContactID) != "1" || q.Get(ParamOwnerID) != "a" || q.Has(ParamTo) || q.Has(ParamFrom) {
		t.Fatalf("unexpected params %v", q)
	}
}

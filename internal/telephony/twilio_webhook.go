package telephony

import (
	"net/http"
	"strings"
)

// RecordingCallbackForm is the recording status callback body, sent
// form-encoded. From and To are the bridged leg's numbers.
type RecordingCallbackForm struct {
	AccountSid string
	CallSid    string

	RecordingSid      string
	RecordingURL      string
	RecordingStatus   string
	RecordingDuration string

	From string
	To   string
}

func ParseRecordingCallback(r *http.Request) (RecordingCallbackForm, error) {
	if err := r.ParseForm(); err != nil {
		return RecordingCallbackForm{}, err
	}
	field := func(k string) string { return strings.TrimSpace(r.PostFormValue(k)) }
	return RecordingCallbackForm{
		AccountSid:        field("AccountSid"),
		CallSid:           field("CallSid"),
		RecordingSid:      field("RecordingSid"),
		RecordingURL:      field("RecordingUrl"),
		RecordingStatus:   field("RecordingStatus"),
		RecordingDuration: field("RecordingDuration"),
		From:              field("From"),
		To:                field("To"),
	}, nil
}

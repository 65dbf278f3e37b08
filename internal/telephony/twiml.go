package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
)

// twimlResponse is the root of a Twilio Markup Language document. Only the
// verbs the call flow emits are modelled.
type twimlResponse struct {
	XMLName xml.Name   `xml:"Response"`
	Say     *twimlSay  `xml:"Say,omitempty"`
	Dial    *twimlDial `xml:"Dial,omitempty"`
}

type twimlSay struct {
	Text string `xml:",chardata"`
}

type twimlDial struct {
	CallerID string `xml:"callerId,attr,omitempty"`

	Record                        string `xml:"record,attr,omitempty"`
	RecordingStatusCallback       string `xml:"recordingStatusCallback,attr,omitempty"`
	RecordingStatusCallbackMethod string `xml:"recordingStatusCallbackMethod,attr,omitempty"`
	RecordingStatusCallbackEvent  string `xml:"recordingStatusCallbackEvent,attr,omitempty"`

	Number twimlNumber `xml:"Number"`
}

type twimlNumber struct {
	Value string `xml:",chardata"`
}

const (
	recordFromAnswer       = "record-from-answer"
	recordingEventComplete = "completed"
)

// DialInstruction describes a single dial-to-number directive.
type DialInstruction struct {
	CallerID string
	To       string

	// RecordingCallbackURL enables recording from answer with a single
	// POST to this URL once the recording completes. Empty disables recording.
	RecordingCallbackURL string
}

var ErrDialTargetRequired = errors.New("telephony: dial target required")

// RenderDial produces a document with exactly one Dial verb targeting d.To.
func RenderDial(d DialInstruction) (string, error) {
	if strings.TrimSpace(d.To) == "" {
		return "", ErrDialTargetRequired
	}
	dial := &twimlDial{CallerID: d.CallerID, Number: twimlNumber{Value: d.To}}
	if d.RecordingCallbackURL != "" {
		dial.Record = recordFromAnswer
		dial.RecordingStatusCallback = d.RecordingCallbackURL
		dial.RecordingStatusCallbackMethod = "POST"
		dial.RecordingStatusCallbackEvent = recordingEventComplete
	}
	return encode(twimlResponse{Dial: dial})
}

// RenderSay produces an error-flavored document. The platform reads message
// to whoever is on the line, so callers still get well-formed TwiML on failure.
func RenderSay(message string) string {
	out, err := encode(twimlResponse{Say: &twimlSay{Text: message}})
	if err != nil {
		// chardata encoding of a plain string does not fail
		return xml.Header + "<Response><Say>An application error occurred.</Say></Response>"
	}
	return out
}

func encode(r twimlResponse) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

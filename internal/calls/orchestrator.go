package calls

import (
	"context"
	"net/http"
	"strings"

	"call-bridge/internal/crm"
	"call-bridge/internal/registry"
	"call-bridge/internal/routing"
	"call-bridge/internal/telephony"
	"call-bridge/pkg/logger"
)

// Router resolves an agent key to an identity for one mode.
type Router interface {
	Resolve(ctx context.Context, agentKey string, mode registry.CallMode) (routing.Resolution, error)
}

type ContactFetcher interface {
	GetContact(ctx context.Context, contactID string) (crm.Contact, error)
}

type CallPlacer interface {
	CreateCall(ctx context.Context, creds telephony.Credentials, req telephony.CreateCallRequest) (telephony.Call, error)
}

// DispatchRecorder counts calls handed to the platform.
type DispatchRecorder interface {
	CallDispatched(mode registry.CallMode)
}

const (
	connectCallPath       = "/connect-call"
	recordingCallbackPath = "/recording-callback"
)

// Orchestrator drives both dial variants. It keeps no call state; two-leg
// continuation lives in the BridgeToken carried on the platform's callback.
type Orchestrator struct {
	Router   Router
	Contacts ContactFetcher
	Calls    CallPlacer

	// BaseURL is the public root the platform calls back on.
	BaseURL string

	Metrics DispatchRecorder
}

func NewOrchestrator(router Router, contacts ContactFetcher, placer CallPlacer, baseURL string) *Orchestrator {
	return &Orchestrator{
		Router:   router,
		Contacts: contacts,
		Calls:    placer,
		BaseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// TwoLegRequest triggers a call to the contact's agent, bridged to the contact.
type TwoLegRequest struct {
	ContactID string
	UseMobile bool
}

// Dispatch is the platform's acknowledgment of an agent-leg call.
type Dispatch struct {
	CallSID string
	Token   BridgeToken
}

// StartTwoLeg places the agent leg. Input and configuration problems are
// reported before anything is dialed; a failed placement is not retried.
func (o *Orchestrator) StartTwoLeg(ctx context.Context, req TwoLegRequest) (Dispatch, error) {
	if req.ContactID == "" {
		return Dispatch{}, &InputError{Field: ParamContactID}
	}

	contact, err := o.fetchContact(ctx, req.ContactID)
	if err != nil {
		return Dispatch{}, err
	}

	agentKey := contact.AssignedAgentName
	if agentKey == "" {
		agentKey = contact.OwnerID
	}
	dest := destination(contact, req.UseMobile)
	if dest == "" {
		return Dispatch{}, routing.ErrConfiguration
	}

	res, err := o.Router.Resolve(ctx, agentKey, registry.ModeTwoLeg)
	if err != nil {
		return Dispatch{}, err
	}

	tok := BridgeToken{
		ContactID: req.ContactID,
		OwnerID:   agentKey,
		To:        dest,
		From:      res.Identity.Number,
	}
	q, err := tok.Encode()
	if err != nil {
		return Dispatch{}, err
	}

	call, err := o.Calls.CreateCall(ctx,
		telephony.Credentials{AccountSID: res.Identity.AccountSID, AuthToken: res.Identity.AuthToken},
		telephony.CreateCallRequest{
			From:   res.Identity.Number,
			To:     res.Agent.Phone,
			URL:    o.BaseURL + connectCallPath + "?" + q.Encode(),
			Method: http.MethodGet,
		},
	)
	if err != nil {
		return Dispatch{}, &UpstreamError{Op: "place agent call", Err: err}
	}

	if o.Metrics != nil {
		o.Metrics.CallDispatched(registry.ModeTwoLeg)
	}
	logger.From(ctx).Info("agent leg dispatched",
		"call_sid", call.SID,
		"contact_id", tok.ContactID,
		"agent", agentKey,
	)
	return Dispatch{CallSID: call.SID, Token: tok}, nil
}

// OneLegRequest asks for the instruction connecting a browser caller to a contact.
type OneLegRequest struct {
	ContactID string
	AgentName string
	UseMobile bool
}

// OneLeg returns the dial document for a browser-originated call. There is
// no asynchronous step: the document is the whole call plan.
func (o *Orchestrator) OneLeg(ctx context.Context, req OneLegRequest) (string, error) {
	if req.ContactID == "" {
		return "", &InputError{Field: ParamContactID}
	}
	if req.AgentName == "" {
		return "", &InputError{Field: "agent"}
	}

	contact, err := o.fetchContact(ctx, req.ContactID)
	if err != nil {
		return "", err
	}
	dest := destination(contact, req.UseMobile)
	if dest == "" {
		return "", routing.ErrConfiguration
	}

	res, err := o.Router.Resolve(ctx, req.AgentName, registry.ModeOneLeg)
	if err != nil {
		return "", err
	}

	doc, err := telephony.RenderDial(telephony.DialInstruction{CallerID: res.Identity.Number, To: dest})
	if err != nil {
		return "", err
	}
	if o.Metrics != nil {
		o.Metrics.CallDispatched(registry.ModeOneLeg)
	}
	return doc, nil
}

// Bridge returns the document dialing the contact once the agent has answered,
// recording from answer with a completion callback back to us.
func (o *Orchestrator) Bridge(tok BridgeToken) (string, error) {
	if err := tok.Validate(); err != nil {
		return "", err
	}
	return telephony.RenderDial(telephony.DialInstruction{
		CallerID:             tok.From,
		To:                   tok.To,
		RecordingCallbackURL: o.RecordingCallbackURL(tok),
	})
}

func (o *Orchestrator) RecordingCallbackURL(tok BridgeToken) string {
	return o.BaseURL + recordingCallbackPath + "?" + tok.RecordingParams().Encode()
}

func (o *Orchestrator) fetchContact(ctx context.Context, contactID string) (crm.Contact, error) {
	contact, err := o.Contacts.GetContact(ctx, contactID)
	if err != nil {
		return crm.Contact{}, &UpstreamError{Op: "fetch contact", Err: err}
	}
	return contact, nil
}

func destination(c crm.Contact, useMobile bool) string {
	if useMobile {
		return c.MobilePhone
	}
	return c.Phone
}

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"call-bridge/internal/auth"
	"call-bridge/internal/calls"
	"call-bridge/internal/routing"
	"call-bridge/internal/telephony"
	"call-bridge/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// Handlers groups the call-flow HTTP handlers for dependency injection.
// They parse input, delegate to the calls and auth modules, and map errors.
type Handlers struct {
	Tokens     *auth.VoiceTokenIssuer
	Calls      *calls.Orchestrator
	Recordings *calls.Reconciler
}

const (
	mimeXML = "text/xml; charset=utf-8"

	msgConfiguration = "no valid configuration for agent"
	msgBridgeFailed  = "Call failed due to missing data"
)

// statusFor maps the call-flow error taxonomy onto HTTP. Any CRM failure,
// an unknown contact included, is an upstream error.
func statusFor(err error) (int, string) {
	var inErr *calls.InputError
	switch {
	case errors.As(err, &inErr):
		return http.StatusBadRequest, inErr.Error()
	case errors.Is(err, auth.ErrIdentityRequired):
		return http.StatusBadRequest, (&calls.InputError{Field: "agent"}).Error()
	case errors.Is(err, routing.ErrConfiguration):
		return http.StatusForbidden, msgConfiguration
	default:
		return http.StatusInternalServerError, ""
	}
}

func respondError(c *gin.Context, err error, failMsg string) {
	status, msg := statusFor(err)
	log := logger.FromGin(c)
	switch {
	case status >= 500:
		msg = failMsg
		log.Error("call flow failed", "err", err)
	case status == http.StatusForbidden:
		log.Warn("routing rejected", "err", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// respondTwiML keeps the platform-facing endpoints answering with a document
// even on failure, so callers hear a message instead of a generic error.
func respondTwiML(c *gin.Context, status int, doc string) {
	c.Data(status, mimeXML, []byte(doc))
}

// --- Token ---

func (h Handlers) Token(c *gin.Context) {
	if h.Tokens == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuer not configured"})
		return
	}
	agent := c.Query("agent")
	if agent == "" {
		respondError(c, &calls.InputError{Field: "agent"}, "")
		return
	}
	tok, err := h.Tokens.Issue(c.Request.Context(), agent)
	if err != nil {
		respondError(c, err, "token issuance failed")
		return
	}
	c.JSON(http.StatusOK, tok)
}

// --- Two-leg dial triggers ---

func (h Handlers) StartPhoneCall(c *gin.Context)  { h.startTwoLeg(c, false) }
func (h Handlers) StartMobileCall(c *gin.Context) { h.startTwoLeg(c, true) }

func (h Handlers) startTwoLeg(c *gin.Context, useMobile bool) {
	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "calls not configured"})
		return
	}
	fields := requestFields(c)
	d, err := h.Calls.StartTwoLeg(c.Request.Context(), calls.TwoLegRequest{
		ContactID: contactID(c, fields),
		UseMobile: useMobile,
	})
	if err != nil {
		respondError(c, err, "2-leg call failed")
		return
	}

	kind := "phone"
	if useMobile {
		kind = "mobile"
	}
	c.JSON(http.StatusOK, gin.H{"message": "2-leg " + kind + " call started", "callSid": d.CallSID})
}

// --- Platform-facing documents ---

// Voice answers the browser client's outbound request with a one-leg dial.
func (h Handlers) Voice(c *gin.Context) {
	if h.Calls == nil {
		respondTwiML(c, http.StatusInternalServerError, telephony.RenderSay("An application error occurred."))
		return
	}
	fields := requestFields(c)
	doc, err := h.Calls.OneLeg(c.Request.Context(), calls.OneLegRequest{
		ContactID: fields[calls.ParamContactID],
		AgentName: fields["agent"],
		UseMobile: fields["useMobile"] == "true",
	})
	if err != nil {
		status, msg := statusFor(err)
		if status >= 500 {
			msg = "An application error occurred."
			logger.FromGin(c).Error("one-leg dial failed", "err", err)
		}
		respondTwiML(c, status, telephony.RenderSay(msg))
		return
	}
	respondTwiML(c, http.StatusOK, doc)
}

// ConnectCall is fetched by the platform once the agent leg answers.
func (h Handlers) ConnectCall(c *gin.Context) {
	if h.Calls == nil {
		respondTwiML(c, http.StatusInternalServerError, telephony.RenderSay("An application error occurred."))
		return
	}
	tok, err := calls.DecodeBridgeToken(c.Request.URL.Query())
	if err != nil {
		logger.FromGin(c).Warn("bridge request rejected", "err", err)
		respondTwiML(c, http.StatusBadRequest, telephony.RenderSay(msgBridgeFailed))
		return
	}
	doc, err := h.Calls.Bridge(tok)
	if err != nil {
		logger.FromGin(c).Error("bridge render failed", "err", err)
		respondTwiML(c, http.StatusBadRequest, telephony.RenderSay(msgBridgeFailed))
		return
	}
	respondTwiML(c, http.StatusOK, doc)
}

// RecordingCallback always acknowledges with 200; the platform retries
// anything else. Failures are logged and recorded for the sweep.
func (h Handlers) RecordingCallback(c *gin.Context) {
	log := logger.FromGin(c)
	defer c.Status(http.StatusOK)

	if h.Recordings == nil {
		log.Error("recording reconciler not configured")
		return
	}
	form, err := telephony.ParseRecordingCallback(c.Request)
	if err != nil {
		log.Warn("recording callback form unreadable", "err", err)
	}
	log = log.With("account_sid", form.AccountSid)

	out, err := h.Recordings.Reconcile(logger.With(c.Request.Context(), log), calls.RecordingEvent{
		ContactID:         c.Query(calls.ParamContactID),
		OwnerID:           c.Query(calls.ParamOwnerID),
		CallSID:           form.CallSid,
		RecordingStatus:   form.RecordingStatus,
		RecordingSID:      form.RecordingSid,
		RecordingURL:      form.RecordingURL,
		RecordingDuration: form.RecordingDuration,
		From:              form.From,
		To:                form.To,
	})
	if err != nil {
		log.Error("recording reconciliation failed", "err", err, "result", out.Result, "engagement_id", out.EngagementID)
	}
}

// contactID reads body hs_object_id, then body contactId, then query contactId.
func contactID(c *gin.Context, fields map[string]string) string {
	if v := fields["hs_object_id"]; v != "" {
		return v
	}
	if v := fields[calls.ParamContactID]; v != "" {
		return v
	}
	return c.Query(calls.ParamContactID)
}

// requestFields flattens a JSON object or form body into strings. Numeric ids
// keep their exact digits. An unreadable body yields no fields.
func requestFields(c *gin.Context) map[string]string {
	out := map[string]string{}
	if c.Request.Body == nil {
		return out
	}

	if c.ContentType() == binding.MIMEJSON {
		dec := json.NewDecoder(c.Request.Body)
		dec.UseNumber()
		var m map[string]any
		if err := dec.Decode(&m); err != nil {
			return out
		}
		for k, v := range m {
			switch t := v.(type) {
			case string:
				out[k] = t
			case json.Number:
				out[k] = t.String()
			case bool:
				out[k] = strconv.FormatBool(t)
			}
		}
		return out
	}

	if err := c.Request.ParseForm(); err != nil {
		return out
	}
	for k := range c.Request.PostForm {
		out[k] = c.Request.PostForm.Get(k)
	}
	return out
}

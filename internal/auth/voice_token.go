package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"call-bridge/internal/registry"
	"call-bridge/internal/routing"

	"github.com/golang-jwt/jwt/v5"
	twiliojwt "github.com/twilio/twilio-go/client/jwt"
)

// AgentResolver is the routing capability the issuer needs.
type AgentResolver interface {
	Resolve(ctx context.Context, agentKey string, mode registry.CallMode) (routing.Resolution, error)
}

// VoiceTokenIssuer mints short-lived browser-calling credentials for agents
// with a one-leg assignment.
type VoiceTokenIssuer struct {
	Resolver AgentResolver

	// DefaultAppSID is used when the resolved identity has no outbound application.
	DefaultAppSID string
	TTL           time.Duration
}

type VoiceToken struct {
	Identity  string    `json:"identity"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"-"`
}

var ErrIdentityRequired = errors.New("auth: agent identity required")

func NewVoiceTokenIssuer(resolver AgentResolver, defaultAppSID string, ttl time.Duration) *VoiceTokenIssuer {
	return &VoiceTokenIssuer{Resolver: resolver, DefaultAppSID: defaultAppSID, TTL: ttl}
}

// Issue resolves the agent's one-leg identity and signs a token for it with
// the identity's API key. Resolution failures and identities without a key
// surface as routing.ErrConfiguration before anything is minted.
func (i *VoiceTokenIssuer) Issue(ctx context.Context, agentName string) (VoiceToken, error) {
	if agentName == "" {
		return VoiceToken{}, ErrIdentityRequired
	}
	if i.Resolver == nil {
		return VoiceToken{}, errors.New("auth: resolver not configured")
	}
	res, err := i.Resolver.Resolve(ctx, agentName, registry.ModeOneLeg)
	if err != nil {
		return VoiceToken{}, err
	}
	identity := res.Identity
	if identity.APIKeySID == "" || identity.APIKeySecret == "" {
		return VoiceToken{}, fmt.Errorf("%w: identity %s has no api key", routing.ErrConfiguration, identity.Number)
	}

	ttl := i.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	appSID := identity.TwiMLAppSID
	if appSID == "" {
		appSID = i.DefaultAppSID
	}

	token := twiliojwt.CreateAccessToken(twiliojwt.AccessTokenParams{
		AccountSid:    identity.AccountSID,
		SigningKeySid: identity.APIKeySID,
		Secret:        identity.APIKeySecret,
		Identity:      agentName,
		Ttl:           ttl.Seconds(),
	})
	token.AddGrant(&twiliojwt.VoiceGrant{
		Incoming: twiliojwt.Incoming{Allow: true},
		Outgoing: twiliojwt.Outgoing{ApplicationSid: appSID},
	})
	signed, err := token.ToJwt()
	if err != nil {
		return VoiceToken{}, fmt.Errorf("auth: sign voice token: %w", err)
	}

	exp, err := expiry(signed)
	if err != nil {
		return VoiceToken{}, err
	}
	return VoiceToken{Identity: agentName, Token: signed, ExpiresAt: exp}, nil
}

// expiry reads exp back from a token we just signed.
func expiry(signed string) (time.Time, error) {
	var claims VoiceClaims
	if _, _, err := jwt.NewParser().ParseUnverified(signed, &claims); err != nil {
		return time.Time{}, fmt.Errorf("auth: read voice token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("auth: voice token has no expiry")
	}
	return claims.ExpiresAt.Time, nil
}

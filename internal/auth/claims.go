package auth

import "github.com/golang-jwt/jwt/v5"

// contentType marks the JWT as a Twilio access token.
const contentType = "twilio-fpa;v=1"

// VoiceClaims is the access-token payload: issued by the API key, subject
// the account, with the named agent in Grants.Identity.
type VoiceClaims struct {
	jwt.RegisteredClaims

	Grants Grants `json:"grants"`
}

type Grants struct {
	Identity string     `json:"identity"`
	Voice    VoiceGrant `json:"voice"`
}

// VoiceGrant permits placing calls through an outbound application and,
// optionally, receiving calls addressed to Identity.
type VoiceGrant struct {
	Incoming *IncomingGrant `json:"incoming,omitempty"`
	Outgoing *OutgoingGrant `json:"outgoing,omitempty"`
}

type IncomingGrant struct {
	Allow bool `json:"allow"`
}

type OutgoingGrant struct {
	ApplicationSID string `json:"application_sid"`
}

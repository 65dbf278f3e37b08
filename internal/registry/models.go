package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// CallMode is how an agent's calls are placed.
type CallMode string

const (
	// ModeOneLeg is a browser-originated call using a minted voice token.
	ModeOneLeg CallMode = "1-leg"
	// ModeTwoLeg dials the agent's phone first, then bridges the customer.
	ModeTwoLeg CallMode = "2-leg"
)

func (m CallMode) Valid() bool {
	return m == ModeOneLeg || m == ModeTwoLeg
}

// TelephonyIdentity is a provisioned outbound caller identity.
// Number uniquely identifies the identity within the registry.
type TelephonyIdentity struct {
	AccountSID string `json:"sid" db:"account_sid" validate:"required"`
	AuthToken  string `json:"token" db:"auth_token" validate:"required"`
	Number     string `json:"number" db:"number" validate:"required,e164"`

	// TwiMLAppSID is the outbound application used by browser-originated calls.
	TwiMLAppSID string `json:"twimlAppSid,omitempty" db:"twiml_app_sid"`

	// APIKeySID and APIKeySecret sign voice access tokens. Identities behind
	// a one-leg assignment need both.
	APIKeySID    string `json:"apiKeySid,omitempty" db:"api_key_sid" validate:"required_with=APIKeySecret"`
	APIKeySecret string `json:"apiKeySecret,omitempty" db:"api_key_secret" validate:"required_with=APIKeySID"`
}

// Agent is a human call recipient. Name is the routing key.
type Agent struct {
	Name  string `json:"name" db:"name" validate:"required"`
	Phone string `json:"phone" db:"phone" validate:"required,e164"`
}

// Assignment binds an agent to an identity and a call mode.
type Assignment struct {
	AgentName      string   `json:"agent" db:"agent_name" validate:"required"`
	Mode           CallMode `json:"type" db:"mode" validate:"required,oneof=1-leg 2-leg"`
	IdentityNumber string   `json:"twilioNumber" db:"identity_number" validate:"required,e164"`
}

// Snapshot is the full registry content in storage order.
type Snapshot struct {
	TelephonyIdentities []TelephonyIdentity `json:"telephonyIdentities"`
	Agents              []Agent             `json:"agents"`
	Assignments         []Assignment        `json:"assignments"`
}

// Replacement carries the sets to overwrite. Nil sets are left untouched.
type Replacement struct {
	TelephonyIdentities *[]TelephonyIdentity `json:"telephonyIdentities,omitempty" validate:"omitempty,dive"`
	Agents              *[]Agent             `json:"agents,omitempty" validate:"omitempty,dive"`
	Assignments         *[]Assignment        `json:"assignments,omitempty" validate:"omitempty,dive"`
}

func (r Replacement) Empty() bool {
	return r.TelephonyIdentities == nil && r.Agents == nil && r.Assignments == nil
}

// Reader is the read capability the call core depends on.
// Implementations must reflect current storage on every call.
type Reader interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Writer replaces registry sets wholesale.
type Writer interface {
	Replace(ctx context.Context, r Replacement) error
}

// Store is a full registry backend.
type Store interface {
	Reader
	Writer
}

var ErrInvalidSnapshot = errors.New("registry: invalid records")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate rejects malformed records at the boundary.
// Referential integrity across sets is not enforced; a dangling assignment
// simply fails resolution.
func (r Replacement) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSnapshot, describe(err))
	}
	if r.TelephonyIdentities != nil {
		seen := make(map[string]struct{}, len(*r.TelephonyIdentities))
		for _, ti := range *r.TelephonyIdentities {
			if _, dup := seen[ti.Number]; dup {
				return fmt.Errorf("%w: duplicate identity number %s", ErrInvalidSnapshot, ti.Number)
			}
			seen[ti.Number] = struct{}{}
		}
	}
	if r.Agents != nil {
		seen := make(map[string]struct{}, len(*r.Agents))
		for _, a := range *r.Agents {
			if _, dup := seen[a.Name]; dup {
				return fmt.Errorf("%w: duplicate agent name %q", ErrInvalidSnapshot, a.Name)
			}
			seen[a.Name] = struct{}{}
		}
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	return fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
}

package routing

import (
	"context"
	"errors"
	"fmt"

	"call-bridge/internal/registry"
)

// ErrConfiguration means no usable assignment/identity/agent exists for the request.
// It deliberately does not say which lookup failed.
var ErrConfiguration = errors.New("routing: no valid configuration for agent")

// Resolution is the routing output for one call request.
type Resolution struct {
	AgentKey   string
	Mode       registry.CallMode
	Assignment registry.Assignment
	Identity   registry.TelephonyIdentity

	// Agent is only populated for two-leg resolutions.
	Agent registry.Agent
}

// Resolver maps {agent, mode} to a concrete telephony identity and agent.
//
// No side effects: configuration is read through Registry on every call and
// nothing is cached, so edits are visible to the next request.
type Resolver struct {
	Registry registry.Reader
}

func NewResolver(r registry.Reader) *Resolver {
	return &Resolver{Registry: r}
}

// Resolve selects the first assignment in registry order for agentKey.
//
// One-leg requests match on agent and mode together. Two-leg requests take the
// first assignment for the agent and reject it unless it is two-leg; a mode
// mismatch is never a fallback to another record.
func (r *Resolver) Resolve(ctx context.Context, agentKey string, mode registry.CallMode) (Resolution, error) {
	if agentKey == "" || !mode.Valid() {
		return Resolution{}, ErrConfiguration
	}
	if r.Registry == nil {
		return Resolution{}, errors.New("routing: registry not configured")
	}

	snap, err := r.Registry.Snapshot(ctx)
	if err != nil {
		return Resolution{}, fmt.Errorf("routing: read registry: %w", err)
	}

	asg, ok := findAssignment(snap.Assignments, agentKey, mode)
	if !ok {
		return Resolution{}, ErrConfiguration
	}

	identity, ok := findIdentity(snap.TelephonyIdentities, asg.IdentityNumber)
	if !ok {
		return Resolution{}, ErrConfiguration
	}

	res := Resolution{AgentKey: agentKey, Mode: mode, Assignment: asg, Identity: identity}
	if mode == registry.ModeTwoLeg {
		agent, ok := findAgent(snap.Agents, asg.AgentName)
		if !ok || agent.Phone == "" {
			return Resolution{}, ErrConfiguration
		}
		res.Agent = agent
	}
	return res, nil
}

func findAssignment(all []registry.Assignment, agentKey string, mode registry.CallMode) (registry.Assignment, bool) {
	for _, a := range all {
		if a.AgentName != agentKey {
			continue
		}
		if mode == registry.ModeOneLeg {
			if a.Mode == registry.ModeOneLeg {
				return a, true
			}
			continue
		}
		// Two-leg: first record for the agent decides.
		if a.Mode != registry.ModeTwoLeg {
			return registry.Assignment{}, false
		}
		return a, true
	}
	return registry.Assignment{}, false
}

func findIdentity(all []registry.TelephonyIdentity, number string) (registry.TelephonyIdentity, bool) {
	for _, ti := range all {
		if ti.Number == number {
			return ti, true
		}
	}
	return registry.TelephonyIdentity{}, false
}

func findAgent(all []registry.Agent, name string) (registry.Agent, bool) {
	for _, a := range all {
		if a.Name == name {
			return a, true
		}
	}
	return registry.Agent{}, false
}

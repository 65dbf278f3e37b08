package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"call-bridge/pkg/utils"
)

// NOTE: This store assumes the following tables exist:
//
//	telephony_identities (id BIGSERIAL, account_sid, auth_token, number UNIQUE, twiml_app_sid, api_key_sid, api_key_secret)
//	agents               (id BIGSERIAL, name UNIQUE, phone)
//	agent_assignments    (id BIGSERIAL, agent_name, mode, identity_number)
//
// Storage order is id order; resolution takes the first match in that order.

// PostgresStore reads the registry on every call; nothing is cached.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Snapshot(ctx context.Context) (Snapshot, error) {
	if s.db == nil {
		return Snapshot{}, errors.New("registry: database not configured")
	}
	var (
		snap Snapshot
		err  error
	)
	if snap.TelephonyIdentities, err = listIdentities(ctx, s.db); err != nil {
		return Snapshot{}, fmt.Errorf("registry: list identities: %w", err)
	}
	if snap.Agents, err = listAgents(ctx, s.db); err != nil {
		return Snapshot{}, fmt.Errorf("registry: list agents: %w", err)
	}
	if snap.Assignments, err = listAssignments(ctx, s.db); err != nil {
		return Snapshot{}, fmt.Errorf("registry: list assignments: %w", err)
	}
	return snap, nil
}

// Replace overwrites each present set in a single transaction.
func (s *PostgresStore) Replace(ctx context.Context, r Replacement) error {
	if s.db == nil {
		return errors.New("registry: database not configured")
	}
	if err := r.Validate(); err != nil {
		return err
	}
	if r.Empty() {
		return nil
	}
	return utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if r.TelephonyIdentities != nil {
			if err := replaceIdentities(ctx, tx, *r.TelephonyIdentities); err != nil {
				return fmt.Errorf("registry: replace identities: %w", err)
			}
		}
		if r.Agents != nil {
			if err := replaceAgents(ctx, tx, *r.Agents); err != nil {
				return fmt.Errorf("registry: replace agents: %w", err)
			}
		}
		if r.Assignments != nil {
			if err := replaceAssignments(ctx, tx, *r.Assignments); err != nil {
				return fmt.Errorf("registry: replace assignments: %w", err)
			}
		}
		return nil
	})
}

func listIdentities(ctx context.Context, db *sql.DB) ([]TelephonyIdentity, error) {
	const q = `
SELECT account_sid, auth_token, number, COALESCE(twiml_app_sid, ''),
       COALESCE(api_key_sid, ''), COALESCE(api_key_secret, '')
FROM telephony_identities
ORDER BY id
`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []TelephonyIdentity{}
	for rows.Next() {
		var ti TelephonyIdentity
		if err := rows.Scan(&ti.AccountSID, &ti.AuthToken, &ti.Number, &ti.TwiMLAppSID, &ti.APIKeySID, &ti.APIKeySecret); err != nil {
			return nil, err
		}
		out = append(out, ti)
	}
	return out, rows.Err()
}

func listAgents(ctx context.Context, db *sql.DB) ([]Agent, error) {
	const q = `
SELECT name, phone
FROM agents
ORDER BY id
`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Agent{}
	for rows.Next() {
		var a Agent
		if err := rows.Scan(&a.Name, &a.Phone); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func listAssignments(ctx context.Context, db *sql.DB) ([]Assignment, error) {
	const q = `
SELECT agent_name, mode, identity_number
FROM agent_assignments
ORDER BY id
`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Assignment{}
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.AgentName, &a.Mode, &a.IdentityNumber); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func replaceIdentities(ctx context.Context, tx *sql.Tx, in []TelephonyIdentity) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM telephony_identities`); err != nil {
		return err
	}
	const q = `
INSERT INTO telephony_identities (account_sid, auth_token, number, twiml_app_sid, api_key_sid, api_key_secret)
VALUES ($1,$2,$3,NULLIF($4,''),NULLIF($5,''),NULLIF($6,''))
`
	for _, ti := range in {
		if _, err := tx.ExecContext(ctx, q, ti.AccountSID, ti.AuthToken, ti.Number, ti.TwiMLAppSID, ti.APIKeySID, ti.APIKeySecret); err != nil {
			return err
		}
	}
	return nil
}

func replaceAgents(ctx context.Context, tx *sql.Tx, in []Agent) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM agents`); err != nil {
		return err
	}
	const q = `
INSERT INTO agents (name, phone)
VALUES ($1,$2)
`
	for _, a := range in {
		if _, err := tx.ExecContext(ctx, q, a.Name, a.Phone); err != nil {
			return err
		}
	}
	return nil
}

func replaceAssignments(ctx context.Context, tx *sql.Tx, in []Assignment) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM agent_assignments`); err != nil {
		return err
	}
	const q = `
INSERT INTO agent_assignments (agent_name, mode, identity_number)
VALUES ($1,$2,$3)
`
	for _, a := range in {
		if _, err := tx.ExecContext(ctx, q, a.AgentName, string(a.Mode), a.IdentityNumber); err != nil {
			return err
		}
	}
	return nil
}

// Copyright 2025 Blockscout
//
// Naming Repository - domains and their event history for the name
// resolver.

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// DomainRow is one stored name record.
type DomainRow struct {
	ID         string // namehash
	Name       string
	Owner      string
	ResolvedTo string
	Protocol   string
	ExpiresAt  time.Time
}

// DomainEventRow is one historical event against a domain.
type DomainEventRow struct {
	DomainID  string
	Kind      string
	TxHash    string
	Timestamp time.Time
}

// NamingRepository persists domains and domain_events rows.
type NamingRepository struct {
	client *Client
}

func NewNamingRepository(client *Client) *NamingRepository {
	return &NamingRepository{client: client}
}

// Upsert writes a domain record, replacing mutable fields on re-index.
func (r *NamingRepository) Upsert(ctx context.Context, tx *sql.Tx, d DomainRow) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO domains (id, name, owner, resolved_to, protocol, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			owner = EXCLUDED.owner,
			resolved_to = EXCLUDED.resolved_to,
			protocol = EXCLUDED.protocol,
			expires_at = EXCLUDED.expires_at`,
		d.ID, d.Name, d.Owner, d.ResolvedTo, d.Protocol, d.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to upsert domain %s: %w", d.Name, err)
	}
	return nil
}

// AppendEvent records one event against a domain.
func (r *NamingRepository) AppendEvent(ctx context.Context, tx *sql.Tx, e DomainEventRow) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO domain_events (domain_id, kind, tx_hash, occurred_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (domain_id, tx_hash, kind) DO NOTHING`,
		e.DomainID, e.Kind, e.TxHash, e.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append domain event for %s: %w", e.DomainID, err)
	}
	return nil
}

// GetByID returns a domain by namehash.
func (r *NamingRepository) GetByID(ctx context.Context, id string) (DomainRow, bool, error) {
	var d DomainRow
	err := r.client.db.QueryRowContext(ctx, `
		SELECT id, name, owner, resolved_to, protocol, expires_at
		FROM domains WHERE id = $1`, id,
	).Scan(&d.ID, &d.Name, &d.Owner, &d.ResolvedTo, &d.Protocol, &d.ExpiresAt)
	if err == sql.ErrNoRows {
		return DomainRow{}, false, nil
	}
	if err != nil {
		return DomainRow{}, false, fmt.Errorf("failed to get domain %s: %w", id, err)
	}
	return d, true, nil
}

// Lookup returns a page of domains whose name starts with prefix, in
// ascending name order after the cursor.
func (r *NamingRepository) Lookup(ctx context.Context, prefix, afterName string, limit int) ([]DomainRow, error) {
	rows, err := r.client.db.QueryContext(ctx, `
		SELECT id, name, owner, resolved_to, protocol, expires_at
		FROM domains
		WHERE name LIKE $1 || '%' AND name > $2
		ORDER BY name ASC
		LIMIT $3`, prefix, afterName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to look up domains %q: %w", prefix, err)
	}
	defer rows.Close()

	var out []DomainRow
	for rows.Next() {
		var d DomainRow
		if err := rows.Scan(&d.ID, &d.Name, &d.Owner, &d.ResolvedTo, &d.Protocol, &d.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan domain row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListEvents returns a page of a domain's events, newest first after
// the cursor timestamp (zero means from the top).
func (r *NamingRepository) ListEvents(ctx context.Context, domainID string, before time.Time, limit int) ([]DomainEventRow, error) {
	rows, err := r.client.db.QueryContext(ctx, `
		SELECT domain_id, kind, tx_hash, occurred_at
		FROM domain_events
		WHERE domain_id = $1 AND ($2::timestamptz IS NULL OR occurred_at < $2)
		ORDER BY occurred_at DESC
		LIMIT $3`, domainID, nullableTime(before), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events for %s: %w", domainID, err)
	}
	defer rows.Close()

	var out []DomainEventRow
	for rows.Next() {
		var e DomainEventRow
		if err := rows.Scan(&e.DomainID, &e.Kind, &e.TxHash, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan domain event row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ResolveAddresses returns the primary name for each address that has
// one, in a single query.
func (r *NamingRepository) ResolveAddresses(ctx context.Context, addresses []string) (map[string]string, error) {
	out := make(map[string]string, len(addresses))
	if len(addresses) == 0 {
		return out, nil
	}

	rows, err := r.client.db.QueryContext(ctx, `
		SELECT DISTINCT ON (resolved_to) resolved_to, name
		FROM domains
		WHERE resolved_to = ANY($1) AND (expires_at > now() OR expires_at = 'epoch')
		ORDER BY resolved_to, expires_at DESC`, pq.Array(addresses))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve addresses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var addr, name string
		if err := rows.Scan(&addr, &name); err != nil {
			return nil, fmt.Errorf("failed to scan resolution row: %w", err)
		}
		out[addr] = name
	}
	return out, rows.Err()
}

// ListProtocols returns the distinct protocols with indexed domains.
func (r *NamingRepository) ListProtocols(ctx context.Context) ([]string, error) {
	rows, err := r.client.db.QueryContext(ctx, `
		SELECT DISTINCT protocol FROM domains ORDER BY protocol`)
	if err != nil {
		return nil, fmt.Errorf("failed to list protocols: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

// Copyright 2025 Blockscout
//
// CCTX Repository - raw cross_chain_tx snapshot storage plus the
// foreign-coin token registry used to label transfers. The
// consolidated message a terminal CCTX produces goes through the
// shared message repository; this one keeps the full node-reported
// snapshots keyed by their 32-byte index.

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/blockscout/indexing-core/internal/model"
)

const cctxColumns = 11

// CCTXRepository persists cross_chain_tx and tokens rows.
type CCTXRepository struct {
	client *Client
}

func NewCCTXRepository(client *Client) *CCTXRepository {
	return &CCTXRepository{client: client}
}

// UpsertSnapshots writes snapshot rows keyed by index; a newer tick
// for the same index replaces the mutable columns.
func (r *CCTXRepository) UpsertSnapshots(ctx context.Context, tx *sql.Tx, snapshots []model.CCTXSnapshot) error {
	chunkSize := maxParamsPerStatement / cctxColumns
	for start := 0; start < len(snapshots); start += chunkSize {
		end := start + chunkSize
		if end > len(snapshots) {
			end = len(snapshots)
		}
		if err := r.upsertChunk(ctx, tx, snapshots[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *CCTXRepository) upsertChunk(ctx context.Context, tx *sql.Tx, chunk []model.CCTXSnapshot) error {
	if len(chunk) == 0 {
		return nil
	}
	values := make([]string, 0, len(chunk))
	args := make([]interface{}, 0, len(chunk)*cctxColumns)
	for i, s := range chunk {
		base := i*cctxColumns + 1
		values = append(values, fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base, base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10))
		args = append(args,
			s.Index, s.Creator, s.Status, s.StatusMessage, s.RelayedMessage,
			s.SenderChainID, s.Sender, s.Amount, s.Asset, s.LastUpdateUnix, s.Raw,
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO cross_chain_tx
			(index, creator, status, status_message, relayed_message,
			 sender_chain_id, sender, amount, asset, last_update_unix, raw)
		VALUES %s
		ON CONFLICT (index) DO UPDATE SET
			status = EXCLUDED.status,
			status_message = EXCLUDED.status_message,
			last_update_unix = EXCLUDED.last_update_unix,
			raw = EXCLUDED.raw
		WHERE cross_chain_tx.last_update_unix <= EXCLUDED.last_update_unix`, joinValues(values))

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert cctx chunk: %w", err)
	}
	return nil
}

// GetSnapshot returns the stored snapshot for a full index hash.
func (r *CCTXRepository) GetSnapshot(ctx context.Context, index string) (model.CCTXSnapshot, bool, error) {
	var s model.CCTXSnapshot
	err := r.client.db.QueryRowContext(ctx, `
		SELECT index, creator, status, status_message, relayed_message,
		       sender_chain_id, sender, amount, asset, last_update_unix, raw
		FROM cross_chain_tx WHERE index = $1`, index,
	).Scan(&s.Index, &s.Creator, &s.Status, &s.StatusMessage, &s.RelayedMessage,
		&s.SenderChainID, &s.Sender, &s.Amount, &s.Asset, &s.LastUpdateUnix, &s.Raw)
	if err == sql.ErrNoRows {
		return model.CCTXSnapshot{}, false, nil
	}
	if err != nil {
		return model.CCTXSnapshot{}, false, fmt.Errorf("failed to get cctx %s: %w", index, err)
	}
	return s, true, nil
}

// SyncTokens replaces token metadata for the given records, keyed by
// (chain_id, address).
func (r *CCTXRepository) SyncTokens(ctx context.Context, tx *sql.Tx, tokens []model.TokenInfo) error {
	for _, tok := range tokens {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tokens (chain_id, address, symbol, name, decimals, coin_type)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (chain_id, address) DO UPDATE SET
				symbol = EXCLUDED.symbol,
				name = EXCLUDED.name,
				decimals = EXCLUDED.decimals,
				coin_type = EXCLUDED.coin_type`,
			tok.ChainID, tok.Address, tok.Symbol, tok.Name, tok.Decimals, tok.CoinType)
		if err != nil {
			return fmt.Errorf("failed to sync token %s on chain %d: %w", tok.Address, tok.ChainID, err)
		}
	}
	return nil
}

// GetTokenInfo looks up one token by chain and address.
func (r *CCTXRepository) GetTokenInfo(ctx context.Context, chainID int64, address string) (model.TokenInfo, bool, error) {
	var tok model.TokenInfo
	err := r.client.db.QueryRowContext(ctx, `
		SELECT chain_id, address, symbol, name, decimals, coin_type
		FROM tokens WHERE chain_id = $1 AND address = $2`, chainID, address,
	).Scan(&tok.ChainID, &tok.Address, &tok.Symbol, &tok.Name, &tok.Decimals, &tok.CoinType)
	if err == sql.ErrNoRows {
		return model.TokenInfo{}, false, nil
	}
	if err != nil {
		return model.TokenInfo{}, false, fmt.Errorf("failed to get token %s on chain %d: %w", address, chainID, err)
	}
	return tok, true, nil
}

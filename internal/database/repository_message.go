// Copyright 2025 Blockscout
//
// Message Repository - chunked transactional upserts for consolidated
// messages and their transfers.

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/blockscout/indexing-core/internal/model"
)

// maxParamsPerStatement bounds how many messages/transfers go into one
// INSERT before splitting, staying under Postgres's ~65535 bind-param
// limit. Callers never see the split.
const maxParamsPerStatement = 4000

type MessageRepository struct {
	client *Client
}

func NewMessageRepository(client *Client) *MessageRepository {
	return &MessageRepository{client: client}
}

const messageColumns = 11

// UpsertMessages writes consolidated rows with ON CONFLICT updating
// the mutable columns only; identity columns never change.
func (r *MessageRepository) UpsertMessages(ctx context.Context, tx *sql.Tx, messages []model.ConsolidatedMessage) error {
	chunkSize := maxParamsPerStatement / messageColumns
	for start := 0; start < len(messages); start += chunkSize {
		end := start + chunkSize
		if end > len(messages) {
			end = len(messages)
		}
		if err := r.upsertMessageChunk(ctx, tx, messages[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *MessageRepository) upsertMessageChunk(ctx context.Context, tx *sql.Tx, chunk []model.ConsolidatedMessage) error {
	if len(chunk) == 0 {
		return nil
	}
	values := make([]string, 0, len(chunk))
	args := make([]interface{}, 0, len(chunk)*messageColumns)
	for i, m := range chunk {
		base := i*messageColumns + 1
		values = append(values, fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base, base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10))
		args = append(args,
			m.ID, m.BridgeID, m.Status, m.SrcChainID, m.DstChainID,
			m.SrcTxHash, m.DstTxHash, m.SenderAddress, m.RecipientAddress, m.Payload, m.LastUpdateTimestamp,
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO crosschain_messages
			(id, bridge_id, status, src_chain_id, dst_chain_id, src_tx_hash, dst_tx_hash,
			 sender_address, recipient_address, payload, last_update_timestamp)
		VALUES %s
		ON CONFLICT (id, bridge_id) DO UPDATE SET
			status = EXCLUDED.status,
			dst_chain_id = EXCLUDED.dst_chain_id,
			dst_tx_hash = EXCLUDED.dst_tx_hash,
			last_update_timestamp = EXCLUDED.last_update_timestamp,
			sender_address = EXCLUDED.sender_address,
			recipient_address = EXCLUDED.recipient_address,
			payload = EXCLUDED.payload`, joinValues(values))

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert message chunk: %w", err)
	}
	return nil
}

const transferColumns = 7

// UpsertTransfers writes transfer child rows with ON CONFLICT updating
// every non-identity, non-created_at column.
func (r *MessageRepository) UpsertTransfers(ctx context.Context, tx *sql.Tx, transfers []model.Transfer) error {
	chunkSize := maxParamsPerStatement / transferColumns
	for start := 0; start < len(transfers); start += chunkSize {
		end := start + chunkSize
		if end > len(transfers) {
			end = len(transfers)
		}
		if err := r.upsertTransferChunk(ctx, tx, transfers[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *MessageRepository) upsertTransferChunk(ctx context.Context, tx *sql.Tx, chunk []model.Transfer) error {
	if len(chunk) == 0 {
		return nil
	}
	values := make([]string, 0, len(chunk))
	args := make([]interface{}, 0, len(chunk)*transferColumns)
	for i, tr := range chunk {
		base := i*transferColumns + 1
		values = append(values, fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base, base+1, base+2, base+3, base+4, base+5, base+6))
		args = append(args, tr.MessageID, tr.BridgeID, tr.Index, tr.Token, tr.Amount, tr.Sender, tr.Recipient)
	}

	query := fmt.Sprintf(`
		INSERT INTO crosschain_transfers (message_id, bridge_id, index, token, amount, sender, recipient)
		VALUES %s
		ON CONFLICT (message_id, bridge_id, index) DO UPDATE SET
			token = EXCLUDED.token,
			amount = EXCLUDED.amount,
			sender = EXCLUDED.sender,
			recipient = EXCLUDED.recipient`, joinValues(values))

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert transfer chunk: %w", err)
	}
	return nil
}

// GetMessage returns one consolidated message with its transfers.
func (r *MessageRepository) GetMessage(ctx context.Context, id int64, bridgeID int32) (model.ConsolidatedMessage, bool, error) {
	var m model.ConsolidatedMessage
	err := r.client.db.QueryRowContext(ctx, `
		SELECT id, bridge_id, status, src_chain_id, dst_chain_id, src_tx_hash, dst_tx_hash,
		       sender_address, recipient_address, payload, last_update_timestamp
		FROM crosschain_messages WHERE id = $1 AND bridge_id = $2`, id, bridgeID,
	).Scan(&m.ID, &m.BridgeID, &m.Status, &m.SrcChainID, &m.DstChainID, &m.SrcTxHash, &m.DstTxHash,
		&m.SenderAddress, &m.RecipientAddress, &m.Payload, &m.LastUpdateTimestamp)
	if err == sql.ErrNoRows {
		return model.ConsolidatedMessage{}, false, nil
	}
	if err != nil {
		return model.ConsolidatedMessage{}, false, fmt.Errorf("failed to get message (%d,%d): %w", id, bridgeID, err)
	}

	transfers, err := r.transfersOf(ctx, id, bridgeID)
	if err != nil {
		return model.ConsolidatedMessage{}, false, err
	}
	m.Transfers = transfers
	return m, true, nil
}

// ListMessages returns a page of a bridge's messages in ascending id
// order, starting strictly after the cursor id.
func (r *MessageRepository) ListMessages(ctx context.Context, bridgeID int32, afterID int64, limit int) ([]model.ConsolidatedMessage, error) {
	rows, err := r.client.db.QueryContext(ctx, `
		SELECT id, bridge_id, status, src_chain_id, dst_chain_id, src_tx_hash, dst_tx_hash,
		       sender_address, recipient_address, payload, last_update_timestamp
		FROM crosschain_messages
		WHERE bridge_id = $1 AND id > $2
		ORDER BY id ASC
		LIMIT $3`, bridgeID, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages for bridge %d: %w", bridgeID, err)
	}
	defer rows.Close()

	var messages []model.ConsolidatedMessage
	for rows.Next() {
		var m model.ConsolidatedMessage
		if err := rows.Scan(&m.ID, &m.BridgeID, &m.Status, &m.SrcChainID, &m.DstChainID, &m.SrcTxHash, &m.DstTxHash,
			&m.SenderAddress, &m.RecipientAddress, &m.Payload, &m.LastUpdateTimestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (r *MessageRepository) transfersOf(ctx context.Context, messageID int64, bridgeID int32) ([]model.Transfer, error) {
	rows, err := r.client.db.QueryContext(ctx, `
		SELECT message_id, bridge_id, index, token, amount, sender, recipient
		FROM crosschain_transfers
		WHERE message_id = $1 AND bridge_id = $2
		ORDER BY index ASC`, messageID, bridgeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers for message (%d,%d): %w", messageID, bridgeID, err)
	}
	defer rows.Close()

	var transfers []model.Transfer
	for rows.Next() {
		var tr model.Transfer
		if err := rows.Scan(&tr.MessageID, &tr.BridgeID, &tr.Index, &tr.Token, &tr.Amount, &tr.Sender, &tr.Recipient); err != nil {
			return nil, fmt.Errorf("failed to scan transfer row: %w", err)
		}
		transfers = append(transfers, tr)
	}
	return transfers, rows.Err()
}

func joinValues(values []string) string {
	out := values[0]
	for _, v := range values[1:] {
		out += "," + v
	}
	return out
}

// Copyright 2025 Blockscout

package cctx

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/blockscout/indexing-core/internal/buffer"
	"github.com/blockscout/indexing-core/internal/model"
)

// Factory builds CCTX Items from raw records whose payload is a JSON
// CrossChainTx snapshot, as internal/provider/zetachain packs them.
type Factory struct {
	bridgeID int32
}

// NewFactory creates a Factory. bridgeID identifies the ZetaChain
// deployment within the shared crosschain tables.
func NewFactory(bridgeID int32) Factory { return Factory{bridgeID: bridgeID} }

// snapshotItem keeps the newest CCTX snapshot seen for an index. A
// later snapshot wholly replaces an earlier one; the node reports full
// state on every tick, so there is nothing to merge field-by-field.
type snapshotItem struct {
	Snapshot   CrossChainTx `json:"snapshot"`
	BridgeID   int32        `json:"bridge_id"`
	ObservedAt uint64       `json:"observed_at"` // zeta block height of the newest tick
}

func (s *snapshotItem) Merge(other buffer.Item) {
	o := other.(*snapshotItem)
	if o.ObservedAt >= s.ObservedAt {
		s.Snapshot = o.Snapshot
		s.ObservedAt = o.ObservedAt
	}
}

func (s *snapshotItem) Consolidate() (model.ConsolidatedMessage, bool) {
	if !s.Snapshot.CctxStatus.Status.Terminal() {
		return model.ConsolidatedMessage{}, false
	}

	tx := s.Snapshot
	msg := model.ConsolidatedMessage{
		ID:                  KeyForIndex(tx.Index),
		BridgeID:            s.BridgeID,
		Status:              statusOf(tx.CctxStatus.Status),
		SrcChainID:          parseChainID(tx.InboundParams.SenderChainID),
		SrcTxHash:           tx.InboundParams.ObservedHash,
		SenderAddress:       tx.InboundParams.Sender,
		Payload:             []byte(tx.RelayedMessage),
		LastUpdateTimestamp: parseUnix(tx.CctxStatus.LastUpdateTimestamp),
	}

	for i, out := range tx.OutboundParams {
		if i == 0 {
			msg.DstChainID = parseChainID(out.ReceiverChainID)
			msg.DstTxHash = out.Hash
			msg.RecipientAddress = out.Receiver
		}
		msg.Transfers = append(msg.Transfers, model.Transfer{
			MessageID: msg.ID,
			BridgeID:  s.BridgeID,
			Index:     int32(i),
			Token:     tx.InboundParams.Asset,
			Amount:    out.Amount,
			Sender:    tx.InboundParams.Sender,
			Recipient: out.Receiver,
		})
	}
	return msg, true
}

func (s *snapshotItem) Serialize() []byte {
	data, _ := json.Marshal(s)
	return data
}

// FromRecord decodes a JSON snapshot payload. An unparseable payload
// produces an empty item that can never consolidate; it ages out and
// spills like any incomplete entry. The undecodable payload itself is
// not kept in the spilled item.
func (f Factory) FromRecord(rec model.RawRecord) buffer.Item {
	item := &snapshotItem{BridgeID: f.bridgeID, ObservedAt: rec.Height}
	if tx, err := Decode(rec.Payload); err == nil {
		item.Snapshot = tx
	}
	return item
}

func (f Factory) FromPending(schemaVersion uint8, payload []byte) (buffer.Item, error) {
	if schemaVersion != model.CurrentPendingSchemaVersion {
		return nil, fmt.Errorf("unsupported pending cctx schema version %d", schemaVersion)
	}
	var s snapshotItem
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("failed to decode pending cctx snapshot: %w", err)
	}
	return &s, nil
}

// KeyOf derives the buffer key from the snapshot's index hash without
// retaining the decoded snapshot.
func (f Factory) KeyOf(rec model.RawRecord) model.BufferKey {
	key := model.BufferKey{BridgeID: f.bridgeID}
	if tx, err := Decode(rec.Payload); err == nil {
		key.MessageID = KeyForIndex(tx.Index)
	}
	return key
}

// KeyForIndex folds a 0x-prefixed 32-byte CCTX index hash into the
// int64 buffer-key space. The full index is preserved in the stored
// row; the folded key only routes correlation.
func KeyForIndex(index string) int64 {
	raw, err := hex.DecodeString(strings.TrimPrefix(index, "0x"))
	if err != nil || len(raw) < 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(raw[:8]) >> 1)
}

func statusOf(s Status) model.MessageStatus {
	switch s {
	case StatusOutboundMined:
		return model.StatusDelivered
	case StatusReverted, StatusAborted:
		return model.StatusFailed
	default:
		return model.StatusPending
	}
}

func parseChainID(s string) int64 {
	id, _ := strconv.ParseInt(s, 10, 64)
	return id
}

func parseUnixInt(s string) int64 {
	sec, _ := strconv.ParseInt(s, 10, 64)
	return sec
}

func parseUnix(s string) time.Time {
	sec := parseUnixInt(s)
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

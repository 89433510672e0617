// Copyright 2025 Blockscout
//
// Package interchain implements buffer.Item/ItemFactory for
// cross-chain bridge messages: "init", "confirm", and "deliver"
// sub-events arriving on different chains, correlated by message id. A
// RawRecord's Payload is the concatenation of its log's topics
// followed by its data, exactly as internal/provider/evmlogs packs it;
// this package decodes that back into 32-byte ABI words.
package interchain

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/blockscout/indexing-core/internal/buffer"
	"github.com/blockscout/indexing-core/internal/model"
)

const wordSize = 32

// EventKind identifies which phase a log corresponds to.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventInit
	EventConfirm
	EventDeliver
)

// Selectors maps a log's topic0 (event signature hash) to the phase it
// represents. The three signatures are deployment-specific, so the
// caller wires them in.
type Selectors struct {
	Init    common.Hash
	Confirm common.Hash
	Deliver common.Hash
}

func (s Selectors) kindOf(topic0 common.Hash) EventKind {
	switch topic0 {
	case s.Init:
		return EventInit
	case s.Confirm:
		return EventConfirm
	case s.Deliver:
		return EventDeliver
	default:
		return EventUnknown
	}
}

// Factory builds interchain message Items from raw EVM logs.
type Factory struct {
	selectors Selectors
}

func NewFactory(selectors Selectors) Factory { return Factory{selectors: selectors} }

// wireMessage is the two-phase partial state this package
// consolidates, and also its own spilled-to-pending serialization.
type wireMessage struct {
	MessageID        int64
	BridgeID         int32
	SrcChainID       int64
	DstChainID       int64
	SenderAddress    string
	RecipientAddress string
	SrcTxHash        string
	DstTxHash        string
	Token            string
	Amount           string
	HasInit          bool
	HasDeliver       bool
}

func (w *wireMessage) Merge(other buffer.Item) {
	o := other.(*wireMessage)
	if o.HasInit {
		w.HasInit = true
		w.SrcChainID = o.SrcChainID
		w.SenderAddress = o.SenderAddress
		w.RecipientAddress = o.RecipientAddress
		w.SrcTxHash = o.SrcTxHash
		w.Token = o.Token
		w.Amount = o.Amount
	}
	if o.HasDeliver {
		w.HasDeliver = true
		w.DstChainID = o.DstChainID
		w.DstTxHash = o.DstTxHash
	}
}

func (w *wireMessage) Consolidate() (model.ConsolidatedMessage, bool) {
	if !w.HasInit || !w.HasDeliver {
		return model.ConsolidatedMessage{}, false
	}
	status := model.StatusDelivered
	msg := model.ConsolidatedMessage{
		ID:               w.MessageID,
		BridgeID:         w.BridgeID,
		Status:           status,
		SrcChainID:       w.SrcChainID,
		DstChainID:       w.DstChainID,
		SrcTxHash:        w.SrcTxHash,
		DstTxHash:        w.DstTxHash,
		SenderAddress:    w.SenderAddress,
		RecipientAddress: w.RecipientAddress,
	}
	if w.Token != "" {
		msg.Transfers = []model.Transfer{{
			MessageID: w.MessageID,
			BridgeID:  w.BridgeID,
			Index:     0,
			Token:     w.Token,
			Amount:    w.Amount,
			Sender:    w.SenderAddress,
			Recipient: w.RecipientAddress,
		}}
	}
	return msg, true
}

func (w *wireMessage) Serialize() []byte {
	data, _ := json.Marshal(w)
	return data
}

// FromRecord decodes a packed (topics||data) payload into a partial
// wireMessage, dispatching on topic0 via the configured Selectors.
func (f Factory) FromRecord(rec model.RawRecord) buffer.Item {
	words := splitWords(rec.Payload)
	w := &wireMessage{BridgeID: rec.StreamKey.BridgeID}
	if len(words) == 0 {
		return w
	}

	topic0 := common.BytesToHash(words[0])
	kind := f.selectors.kindOf(topic0)

	// topic1 (words[1]) carries the message id in every phase.
	if len(words) > 1 {
		w.MessageID = new(big.Int).SetBytes(words[1][24:]).Int64()
	}

	switch kind {
	case EventInit:
		w.HasInit = true
		if len(words) > 2 {
			w.SrcChainID = new(big.Int).SetBytes(words[2][24:]).Int64()
		}
		if len(words) > 3 {
			w.SenderAddress = common.BytesToAddress(words[3][12:]).Hex()
		}
		if len(words) > 4 {
			w.RecipientAddress = common.BytesToAddress(words[4][12:]).Hex()
		}
		if len(words) > 5 {
			w.Token = common.BytesToAddress(words[5][12:]).Hex()
		}
		if len(words) > 6 {
			w.Amount = new(big.Int).SetBytes(words[6]).String()
		}
		w.SrcTxHash = rec.SourceTxID
	case EventDeliver, EventConfirm:
		w.HasDeliver = true
		if len(words) > 2 {
			w.DstChainID = new(big.Int).SetBytes(words[2][24:]).Int64()
		}
		w.DstTxHash = rec.SourceTxID
	}
	return w
}

func (f Factory) FromPending(schemaVersion uint8, payload []byte) (buffer.Item, error) {
	if schemaVersion != model.CurrentPendingSchemaVersion {
		return nil, fmt.Errorf("unsupported pending message schema version %d", schemaVersion)
	}
	var w wireMessage
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("failed to decode pending interchain message: %w", err)
	}
	return &w, nil
}

// KeyOf extracts a BufferKey from a raw record without fully decoding
// it, for use as the Buffer's KeyFunc.
func (f Factory) KeyOf(rec model.RawRecord) model.BufferKey {
	words := splitWords(rec.Payload)
	key := model.BufferKey{BridgeID: rec.StreamKey.BridgeID}
	if len(words) > 1 {
		key.MessageID = new(big.Int).SetBytes(words[1][24:]).Int64()
	}
	return key
}

func splitWords(payload []byte) [][]byte {
	n := len(payload) / wordSize
	words := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		words = append(words, payload[i*wordSize:(i+1)*wordSize])
	}
	return words
}

// Copyright 2025 Blockscout

package interchain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockscout/indexing-core/internal/model"
)

var testSelectors = Selectors{
	Init:    common.HexToHash("0x1"),
	Confirm: common.HexToHash("0x2"),
	Deliver: common.HexToHash("0x3"),
}

func word(b []byte) []byte {
	out := make([]byte, wordSize)
	copy(out[wordSize-len(b):], b)
	return out
}

func addrWord(a common.Address) []byte {
	out := make([]byte, wordSize)
	copy(out[12:], a.Bytes())
	return out
}

func initPayload(messageID int64, srcChain int64, sender, recipient, token common.Address, amount int64) []byte {
	var payload []byte
	payload = append(payload, word(testSelectors.Init.Bytes())...)
	payload = append(payload, word(big.NewInt(messageID).Bytes())...)
	payload = append(payload, word(big.NewInt(srcChain).Bytes())...)
	payload = append(payload, addrWord(sender)...)
	payload = append(payload, addrWord(recipient)...)
	payload = append(payload, addrWord(token)...)
	payload = append(payload, word(big.NewInt(amount).Bytes())...)
	return payload
}

func deliverPayload(messageID int64, dstChain int64) []byte {
	var payload []byte
	payload = append(payload, word(testSelectors.Deliver.Bytes())...)
	payload = append(payload, word(big.NewInt(messageID).Bytes())...)
	payload = append(payload, word(big.NewInt(dstChain).Bytes())...)
	return payload
}

func TestFactory_ConsolidatesInitAndDeliver(t *testing.T) {
	f := NewFactory(testSelectors)
	sender := common.HexToAddress("0xaaaa000000000000000000000000000000aaaa")
	recipient := common.HexToAddress("0xbbbb000000000000000000000000000000bbbb")
	token := common.HexToAddress("0xcccc000000000000000000000000000000cccc")

	initRec := model.RawRecord{
		StreamKey:  model.StreamKey{BridgeID: 7},
		SourceTxID: "0xsrc",
		Payload:    initPayload(42, 1, sender, recipient, token, 1000),
	}
	item := f.FromRecord(initRec)
	_, done := item.Consolidate()
	assert.False(t, done, "init alone does not consolidate")

	deliverRec := model.RawRecord{
		StreamKey:  model.StreamKey{BridgeID: 7},
		SourceTxID: "0xdst",
		Payload:    deliverPayload(42, 5),
	}
	item.Merge(f.FromRecord(deliverRec))

	msg, done := item.Consolidate()
	require.True(t, done)
	assert.Equal(t, int64(42), msg.ID)
	assert.Equal(t, int32(7), msg.BridgeID)
	assert.Equal(t, model.StatusDelivered, msg.Status)
	assert.Equal(t, int64(1), msg.SrcChainID)
	assert.Equal(t, int64(5), msg.DstChainID)
	assert.Equal(t, "0xsrc", msg.SrcTxHash)
	assert.Equal(t, "0xdst", msg.DstTxHash)
	require.Len(t, msg.Transfers, 1)
	assert.Equal(t, "1000", msg.Transfers[0].Amount)
}

func TestFactory_KeyOfMatchesConsolidatedID(t *testing.T) {
	f := NewFactory(testSelectors)
	rec := model.RawRecord{
		StreamKey: model.StreamKey{BridgeID: 3},
		Payload:   deliverPayload(99, 2),
	}
	key := f.KeyOf(rec)
	assert.Equal(t, model.BufferKey{MessageID: 99, BridgeID: 3}, key)
}

func TestFactory_FromPendingRoundTrips(t *testing.T) {
	f := NewFactory(testSelectors)
	sender := common.HexToAddress("0xaaaa000000000000000000000000000000aaaa")
	recipient := common.HexToAddress("0xbbbb000000000000000000000000000000bbbb")
	token := common.HexToAddress("0xcccc000000000000000000000000000000cccc")

	rec := model.RawRecord{
		StreamKey:  model.StreamKey{BridgeID: 1},
		SourceTxID: "0xsrc",
		Payload:    initPayload(7, 1, sender, recipient, token, 500),
	}
	item := f.FromRecord(rec)
	serialized := item.Serialize()

	rehydrated, err := f.FromPending(model.CurrentPendingSchemaVersion, serialized)
	require.NoError(t, err)

	rehydrated.Merge(f.FromRecord(model.RawRecord{
		StreamKey: model.StreamKey{BridgeID: 1},
		Payload:   deliverPayload(7, 9),
	}))
	msg, done := rehydrated.Consolidate()
	require.True(t, done)
	assert.Equal(t, int64(7), msg.ID)
	assert.Equal(t, int64(9), msg.DstChainID)
}

func TestFactory_FromPendingRejectsUnknownSchemaVersion(t *testing.T) {
	f := NewFactory(testSelectors)
	_, err := f.FromPending(99, []byte(`{}`))
	assert.Error(t, err)
}

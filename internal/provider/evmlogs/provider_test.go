// Copyright 2025 Blockscout

package evmlogs

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"

	"github.com/blockscout/indexing-core/internal/model"
)

func TestLogToRawRecord_PreservesOrderingFields(t *testing.T) {
	key := model.StreamKey{BridgeID: 1, ChainID: 1}
	l := types.Log{
		BlockNumber: 42,
		Index:       3,
		TxHash:      common.HexToHash("0xabc"),
		Topics:      []common.Hash{common.HexToHash("0x01")},
		Data:        []byte{0xde, 0xad},
	}

	rec := logToRawRecord(key, l)
	assert.Equal(t, key, rec.StreamKey)
	assert.Equal(t, uint64(42), rec.Height)
	assert.Equal(t, uint32(3), rec.LogIndex)
	assert.Equal(t, l.TxHash.Hex(), rec.SourceTxID)
	assert.Equal(t, 32+2, len(rec.Payload))
}

// Copyright 2025 Blockscout

package userops

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockscout/indexing-core/internal/model"
)

func packedEvent(t *testing.T, opHash common.Hash, sender, paymaster common.Address, nonce uint64, success bool, gasCost, gasUsed uint64) []byte {
	t.Helper()
	payload := make([]byte, 0, 8*wordSize)
	payload = append(payload, EventSignature.Bytes()...)
	payload = append(payload, opHash.Bytes()...)
	payload = append(payload, common.LeftPadBytes(sender.Bytes(), wordSize)...)
	payload = append(payload, common.LeftPadBytes(paymaster.Bytes(), wordSize)...)
	payload = append(payload, common.LeftPadBytes(new(big.Int).SetUint64(nonce).Bytes(), wordSize)...)
	successWord := make([]byte, wordSize)
	if success {
		successWord[wordSize-1] = 1
	}
	payload = append(payload, successWord...)
	payload = append(payload, common.LeftPadBytes(new(big.Int).SetUint64(gasCost).Bytes(), wordSize)...)
	payload = append(payload, common.LeftPadBytes(new(big.Int).SetUint64(gasUsed).Bytes(), wordSize)...)
	return payload
}

func TestDecodeLog(t *testing.T) {
	opHash := common.HexToHash("0x230d3138bf679c985b114ad3fef2b3eeb9a0d52852e84f67c601ffbdda776a01")
	sender := common.HexToAddress("0x1607A220D52FeB7c6689e934E47B4b0864B2DD90")
	paymaster := common.HexToAddress("0x6c533f7fE93fAE114d0954697069Df33C9B74fD7")

	rec := model.RawRecord{
		StreamKey:  model.StreamKey{Name: "userops", ChainID: 1},
		Height:     1000,
		LogIndex:   4,
		SourceTxID: "0xfeed",
		Payload:    packedEvent(t, opHash, sender, paymaster, 7, true, 21000, 18000),
	}

	op, err := DecodeLog(rec)
	require.NoError(t, err)
	assert.Equal(t, opHash.Hex(), op.Hash)
	assert.Equal(t, sender.Hex(), op.Sender)
	assert.Equal(t, paymaster.Hex(), op.Paymaster)
	assert.Equal(t, "7", op.Nonce)
	assert.True(t, op.Success)
	assert.Equal(t, "21000", op.ActualGasCost)
	assert.Equal(t, "18000", op.ActualGasUsed)
	assert.Equal(t, int64(1), op.ChainID)
	assert.Equal(t, uint64(1000), op.BlockNumber)
	assert.Equal(t, uint32(4), op.LogIndex)
	assert.Equal(t, "0xfeed", op.TxHash)
}

func TestDecodeLog_RejectsWrongSignature(t *testing.T) {
	payload := make([]byte, 8*wordSize)
	_, err := DecodeLog(model.RawRecord{Payload: payload})
	assert.Error(t, err)
}

func TestDecodeLog_RejectsShortPayload(t *testing.T) {
	_, err := DecodeLog(model.RawRecord{Payload: EventSignature.Bytes()})
	assert.Error(t, err)
}

func TestDecodeBatch_SkipsForeignEvents(t *testing.T) {
	opHash := common.HexToHash("0x01")
	good := model.RawRecord{
		Height:  5,
		Payload: packedEvent(t, opHash, common.Address{}, common.Address{}, 1, false, 1, 1),
	}
	foreign := model.RawRecord{
		Height:  5,
		Payload: make([]byte, 8*wordSize), // zero topic0, some unrelated event
	}

	ops, err := DecodeBatch([]model.RawRecord{foreign, good})
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, opHash.Hex(), ops[0].Hash)
	assert.False(t, ops[0].Success)
}

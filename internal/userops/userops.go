// Copyright 2025 Blockscout
//
// Package userops indexes ERC-4337 user operations from EntryPoint
// UserOperationEvent logs. A user operation is complete at first
// sighting, so unlike interchain messages it needs no correlation
// buffer: the consumer decodes each fetched batch and upserts rows
// directly, with the checkpoint advancing in the same transaction.
package userops

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/blockscout/indexing-core/internal/model"
)

// EventSignature is keccak256 of the canonical UserOperationEvent
// declaration from the ERC-4337 EntryPoint contract.
var EventSignature = crypto.Keccak256Hash([]byte(
	"UserOperationEvent(bytes32,address,address,uint256,bool,uint256,uint256)",
))

const wordSize = 32

// DecodeLog parses a packed (topics||data) payload into a
// model.UserOperation. Topics carry the signature, op hash, sender,
// and paymaster; data carries nonce, success, actualGasCost, and
// actualGasUsed as 32-byte words.
func DecodeLog(rec model.RawRecord) (model.UserOperation, error) {
	words := splitWords(rec.Payload)
	if len(words) < 8 {
		return model.UserOperation{}, fmt.Errorf("user operation log too short: %d words", len(words))
	}
	if common.BytesToHash(words[0]) != EventSignature {
		return model.UserOperation{}, fmt.Errorf("unexpected event signature %s", common.BytesToHash(words[0]))
	}

	return model.UserOperation{
		Hash:          common.BytesToHash(words[1]).Hex(),
		Sender:        common.BytesToAddress(words[2][12:]).Hex(),
		Paymaster:     common.BytesToAddress(words[3][12:]).Hex(),
		Nonce:         new(big.Int).SetBytes(words[4]).String(),
		Success:       words[5][wordSize-1] == 1,
		ActualGasCost: new(big.Int).SetBytes(words[6]).String(),
		ActualGasUsed: new(big.Int).SetBytes(words[7]).String(),
		ChainID:       rec.StreamKey.ChainID,
		BlockNumber:   rec.Height,
		LogIndex:      rec.LogIndex,
		TxHash:        rec.SourceTxID,
	}, nil
}

// DecodeBatch decodes every record of a fetched batch, skipping logs
// whose topic0 is not the EntryPoint event; the log filter upstream
// should already exclude them, but a shared-address filter may leak
// other events through.
func DecodeBatch(batch []model.RawRecord) ([]model.UserOperation, error) {
	ops := make([]model.UserOperation, 0, len(batch))
	for _, rec := range batch {
		words := splitWords(rec.Payload)
		if len(words) == 0 || common.BytesToHash(words[0]) != EventSignature {
			continue
		}
		op, err := DecodeLog(rec)
		if err != nil {
			return nil, fmt.Errorf("decode user operation at height %d index %d: %w", rec.Height, rec.LogIndex, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func splitWords(payload []byte) [][]byte {
	n := len(payload) / wordSize
	words := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		words = append(words, payload[i*wordSize:(i+1)*wordSize])
	}
	return words
}

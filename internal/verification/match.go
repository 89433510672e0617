// Copyright 2025 Blockscout
//
// Match classification: byte-equal recompiled vs on-chain bytecode is
// a full match; byte-equal modulo the trailing CBOR metadata region is
// a partial match; otherwise none. Also implements the blueprint
// (EIP-5202) consistency check.
package verification

import (
	"bytes"

	"github.com/blockscout/indexing-core/internal/model"
)

// ClassifyMatch compares recompiled output against the on-chain
// bytecode.
func ClassifyMatch(recompiled, onchain []byte) model.MatchType {
	if bytes.Equal(recompiled, onchain) {
		return model.MatchFull
	}
	strippedRecompiled := stripMetadata(recompiled)
	strippedOnchain := stripMetadata(onchain)
	if len(strippedRecompiled) > 0 && bytes.Equal(strippedRecompiled, strippedOnchain) {
		return model.MatchPartial
	}
	return model.MatchNone
}

// stripMetadata removes the trailing CBOR auxdata region solc/vyper
// append to compiled bytecode: the last two bytes are a big-endian
// length prefix for the CBOR blob that immediately precedes them.
// Returns the input unchanged if the claimed length doesn't fit; no
// CBOR-level decode is attempted.
func stripMetadata(bytecode []byte) []byte {
	if len(bytecode) < 2 {
		return bytecode
	}
	cborLen := int(bytecode[len(bytecode)-2])<<8 | int(bytecode[len(bytecode)-1])
	end := len(bytecode) - 2 - cborLen
	if cborLen <= 0 || end <= 0 || end >= len(bytecode) {
		return bytecode
	}
	return bytecode[:end]
}

// blueprintPrefix is the ERC-5202 blueprint preamble: 0xFE followed by
// an ERC version nibble. The full grammar (reserved bytes, preamble
// data length) is not parsed; the prefix is enough to key the
// consistency check.
var blueprintPrefix = []byte{0xFE, 0x71}

// IsBlueprint reports whether bytecode carries the EIP-5202 blueprint
// preamble.
func IsBlueprint(bytecode []byte) bool {
	return bytes.HasPrefix(bytecode, blueprintPrefix)
}

// CheckBlueprintConsistency enforces that creation and runtime on-chain
// code agree on blueprint status.
func CheckBlueprintConsistency(creation, runtime []byte) error {
	if IsBlueprint(creation) != IsBlueprint(runtime) {
		return ErrNotConsistentBlueprintOnChainCode
	}
	return nil
}

// Copyright 2025 Blockscout

package verification

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blockscout/indexing-core/internal/model"
)

func withMetadata(main []byte, cbor []byte) []byte {
	out := append([]byte{}, main...)
	out = append(out, cbor...)
	out = append(out, byte(len(cbor)>>8), byte(len(cbor)))
	return out
}

func TestClassifyMatch_FullOnByteEqual(t *testing.T) {
	code := []byte{0x60, 0x80, 0x60, 0x40}
	assert.Equal(t, model.MatchFull, ClassifyMatch(code, code))
}

func TestClassifyMatch_PartialWhenOnlyMetadataDiffers(t *testing.T) {
	main := []byte{0x60, 0x80, 0x60, 0x40}
	recompiled := withMetadata(main, []byte{0xAA, 0xBB, 0xCC})
	onchain := withMetadata(main, []byte{0x11, 0x22, 0x33, 0x44})

	assert.Equal(t, model.MatchPartial, ClassifyMatch(recompiled, onchain))
}

func TestClassifyMatch_NoneOnUnrelatedBytecode(t *testing.T) {
	recompiled := withMetadata([]byte{0x60, 0x80}, []byte{0xAA})
	onchain := withMetadata([]byte{0x60, 0x90, 0x91}, []byte{0xBB})

	assert.Equal(t, model.MatchNone, ClassifyMatch(recompiled, onchain))
}

func TestIsBlueprint(t *testing.T) {
	assert.True(t, IsBlueprint([]byte{0xFE, 0x71, 0x00}))
	assert.False(t, IsBlueprint([]byte{0x60, 0x80}))
	assert.False(t, IsBlueprint(nil))
}

func TestCheckBlueprintConsistency(t *testing.T) {
	blueprint := []byte{0xFE, 0x71, 0x00}
	normal := []byte{0x60, 0x80}

	assert.NoError(t, CheckBlueprintConsistency(blueprint, blueprint))
	assert.NoError(t, CheckBlueprintConsistency(normal, normal))
	assert.ErrorIs(t, CheckBlueprintConsistency(blueprint, normal), ErrNotConsistentBlueprintOnChainCode)
}

// Copyright 2025 Blockscout

package naming

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamehash_KnownVectors(t *testing.T) {
	// reference vectors from EIP-137
	assert.Equal(t, common.Hash{}, Namehash(""))
	assert.Equal(t,
		"0x93cdeb708b7545dc668eb9280176169d1c33cfd8ed6f04690a0bcc88a93fc4ae",
		Namehash("eth").Hex())
	assert.Equal(t,
		"0xde9b09fd7c5f901e23a3f19fecc54828e9c848539801e86591bd9801b019f84f",
		Namehash("foo.eth").Hex())
}

func TestNewDomainName_NormalizesAndSplits(t *testing.T) {
	d, err := NewDomainName("  Vitalik.ETH ")
	require.NoError(t, err)
	assert.Equal(t, "vitalik.eth", d.Name)
	assert.Equal(t, "vitalik", d.LabelName)
	assert.Equal(t, "eth", d.TLD)
	assert.Equal(t, Namehash("vitalik.eth").Hex(), d.ID)
	assert.Equal(t, 2, d.Level())
}

func TestNewDomainName_RejectsMalformedNames(t *testing.T) {
	for _, raw := range []string{"", ".", ".eth", "eth.", "a..b"} {
		_, err := NewDomainName(raw)
		assert.Error(t, err, "expected %q to be rejected", raw)
	}
}

func TestAddrReverse(t *testing.T) {
	addr := common.HexToAddress("0x1607A220D52FeB7c6689e934E47B4b0864B2DD90")
	d := AddrReverse(addr)
	assert.Equal(t, "1607a220d52feb7c6689e934e47b4b0864b2dd90.addr.reverse", d.Name)
	assert.Equal(t, "reverse", d.TLD)
	assert.Equal(t, 3, d.Level())
}

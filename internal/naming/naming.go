// Copyright 2025 Blockscout
//
// Package naming implements the ENS-style name resolver: normalized
// domain names hashed to namehash ids, a Postgres-backed reader for
// domains and their event history, and batch reverse resolution of
// addresses to primary names.
package naming

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const separator = "."

// DomainName is a normalized, namehash-identified name.
type DomainName struct {
	ID        string // 0x-prefixed namehash
	Name      string // full normalized name, e.g. "vitalik.eth"
	LabelName string // leftmost label, e.g. "vitalik"
	TLD       string // rightmost label, e.g. "eth"
}

// NewDomainName normalizes and hashes a raw name. Normalization here
// is lowercasing plus structural validation; full UTS-46 processing
// belongs to the caller-facing gateway.
func NewDomainName(raw string) (DomainName, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" || strings.HasPrefix(name, separator) || strings.HasSuffix(name, separator) {
		return DomainName{}, fmt.Errorf("invalid domain name %q", raw)
	}
	labels := strings.Split(name, separator)
	for _, label := range labels {
		if label == "" {
			return DomainName{}, fmt.Errorf("invalid domain name %q: empty label", raw)
		}
	}

	return DomainName{
		ID:        Namehash(name).Hex(),
		Name:      name,
		LabelName: labels[0],
		TLD:       labels[len(labels)-1],
	}, nil
}

// Level reports the domain depth: "eth" is 1, "vitalik.eth" is 2.
func (d DomainName) Level() int {
	return strings.Count(d.Name, separator) + 1
}

// AddrReverse builds the <addr>.addr.reverse name used for primary
// name lookups.
func AddrReverse(addr common.Address) DomainName {
	label := strings.TrimPrefix(strings.ToLower(addr.Hex()), "0x")
	name, _ := NewDomainName(label + ".addr.reverse")
	return name
}

// Namehash implements the recursive ENS namehash over the name's
// labels, rightmost first.
func Namehash(name string) common.Hash {
	node := common.Hash{}
	if name == "" {
		return node
	}
	labels := strings.Split(name, separator)
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256Hash([]byte(labels[i]))
		node = crypto.Keccak256Hash(node.Bytes(), labelHash.Bytes())
	}
	return node
}

// Copyright 2025 Blockscout
//
// Fingerprint computation: a content-derived stable identifier used as
// the cache key and single-flight key for the coordinator. Equivalent
// inputs always produce the same fingerprint.
package verification

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Fingerprint hashes a canonical encoding of the normalized request
// content, plus bytecode type and the on-chain target bytecode, so two
// equivalent submissions collapse to the same cache/single-flight key
// regardless of field ordering.
func Fingerprint(req Request) string {
	h := sha256.New()
	h.Write([]byte(req.BytecodeType))
	h.Write([]byte(req.VerificationType))
	h.Write(req.TargetBytecode)

	switch {
	case req.MultiPart != nil:
		h.Write([]byte("multi-part"))
		h.Write(canonicalMultiPart(req.MultiPart))
	case req.StandardJSON != nil:
		h.Write([]byte("standard-json"))
		h.Write([]byte(req.StandardJSON.CompilerVersion))
		h.Write(canonicalJSON(req.StandardJSON.Input))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalMultiPart serializes a MultiPartContent with sorted source
// and library keys, so the fingerprint is independent of map iteration
// or submission order.
func canonicalMultiPart(c *MultiPartContent) []byte {
	type canon struct {
		Sources          [][2]string `json:"sources"`
		Libraries        [][2]string `json:"libraries"`
		CompilerVersion  string      `json:"compiler_version"`
		EVMVersion       string      `json:"evm_version"`
		Optimize         bool        `json:"optimize"`
		OptimizationRuns int         `json:"optimization_runs"`
		ContractName     string      `json:"contract_name"`
	}

	out := canon{
		CompilerVersion:  c.CompilerVersion,
		EVMVersion:       c.EVMVersion,
		Optimize:         c.Optimize,
		OptimizationRuns: c.OptimizationRuns,
		ContractName:     c.ContractName,
	}
	for _, name := range sortedKeys(c.Sources) {
		out.Sources = append(out.Sources, [2]string{name, c.Sources[name]})
	}
	for _, name := range sortedKeys(c.Libraries) {
		out.Libraries = append(out.Libraries, [2]string{name, c.Libraries[name]})
	}

	data, _ := json.Marshal(out)
	return data
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// canonicalJSON re-marshals raw into a form with deterministic key
// ordering (encoding/json sorts map keys on Marshal) so two byte-for-
// byte-different but semantically equal standard-JSON documents
// fingerprint identically.
func canonicalJSON(raw json.RawMessage) []byte {
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return raw
	}
	out, err := json.Marshal(generic)
	if err != nil {
		return raw
	}
	return out
}

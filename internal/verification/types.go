// Copyright 2025 Blockscout
//
// Package verification implements the contract-verification
// coordinator: request deduplication keyed by content fingerprint, a
// TTL cache over a persistent store, and transactional write-out of
// verified artifacts.
package verification

import (
	"encoding/json"

	"github.com/blockscout/indexing-core/internal/model"
)

// MultiPartContent is the structured compiler-input shape: named
// sources and libraries plus compiler version, EVM version, and
// optimization flags.
type MultiPartContent struct {
	Sources          map[string]string // file name -> content
	Libraries        map[string]string // library name -> address
	CompilerVersion  string
	EVMVersion       string
	Optimize         bool
	OptimizationRuns int
	ContractName     string
}

// StandardJSONContent wraps an opaque standard-JSON compiler-input
// document. Input is never interpreted here; only its canonical form
// feeds the fingerprint.
type StandardJSONContent struct {
	CompilerVersion string
	Input           json.RawMessage
	ContractName    string
}

// Request is a single call to Verify. Exactly one of MultiPart and
// StandardJSON must be set.
type Request struct {
	BytecodeType     model.BytecodeType
	VerificationType model.VerificationType
	Language         model.Language
	TargetBytecode   []byte
	MultiPart        *MultiPartContent
	StandardJSON     *StandardJSONContent
}

// CompiledArtifact is what a Compiler returns for one contract,
// normalized across the multi-part and standard-JSON input shapes.
type CompiledArtifact struct {
	ContractName     string
	FilePath         string
	ABI              json.RawMessage
	CreationBytecode []byte
	RuntimeBytecode  []byte
	CompilerVersion  string
	Settings         json.RawMessage
	Files            []model.File
}

// ImportItem is one entry of an ImportBatch call.
type ImportItem struct {
	ContractName   string
	BytecodeType   model.BytecodeType
	TargetBytecode []byte
}

// ImportItemResult is the per-item outcome of ImportBatch. A bad entry
// never fails the whole batch.
type ImportItemResult struct {
	ContractName string
	Source       model.Source
	Match        model.MatchType
	Err          error
}

// BatchImportResult is ImportBatch's return value.
type BatchImportResult struct {
	Results []ImportItemResult
}

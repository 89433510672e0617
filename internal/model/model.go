// Copyright 2025 Blockscout
//
// Package model holds the data model shared by the checkpoint store,
// fetcher, correlation buffer, batch persistor, and verification
// coordinator.
package model

import (
	"encoding/json"
	"time"
)

// StreamKey identifies a single ingestion stream: one bridge on one
// chain, one DA namespace, one log filter, etc. Components treat it as
// an opaque comparable key.
type StreamKey struct {
	Name     string
	BridgeID int32
	ChainID  int64
}

// Checkpoint is the persistent per-stream cursor.
type Checkpoint struct {
	Key              StreamKey
	BackwardCursor   uint64
	ForwardCursor    uint64
	FinalityCursor   uint64
	CatchupMinCursor uint64
	UpdatedAt        time.Time
}

// Merge applies the monotone merge rule: backward := min(old, new);
// forward := max(old, new). Commutative and idempotent, so a retried
// upsert never moves a cursor the wrong way.
func (c Checkpoint) Merge(other Checkpoint) Checkpoint {
	merged := c
	merged.BackwardCursor = minU64(c.BackwardCursor, other.BackwardCursor)
	merged.ForwardCursor = maxU64(c.ForwardCursor, other.ForwardCursor)
	merged.FinalityCursor = maxU64(c.FinalityCursor, other.FinalityCursor)
	if other.CatchupMinCursor != 0 && (merged.CatchupMinCursor == 0 || other.CatchupMinCursor < merged.CatchupMinCursor) {
		merged.CatchupMinCursor = other.CatchupMinCursor
	}
	return merged
}

func minU64(a, b uint64) uint64 {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	if a < b {
		return a
	}
	return b
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// RawRecord is a single partial event as produced by the fetcher.
// Payload is opaque to the fetcher itself; only the correlation
// buffer's item implementation interprets it.
type RawRecord struct {
	StreamKey  StreamKey
	Height     uint64
	LogIndex   uint32
	SourceTxID string
	Payload    []byte
}

// Less orders records by (height, log_index), the within-batch sort
// order the fetcher guarantees.
func (r RawRecord) Less(other RawRecord) bool {
	if r.Height != other.Height {
		return r.Height < other.Height
	}
	return r.LogIndex < other.LogIndex
}

// BufferKey identifies a correlatable partial record, e.g. (message_id,
// bridge_id) for an interchain message or (folded index hash,
// bridge_id) for a CCTX.
type BufferKey struct {
	MessageID int64
	BridgeID  int32
}

// MessageStatus is the lifecycle state of a ConsolidatedMessage.
type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusConfirmed MessageStatus = "confirmed"
	StatusDelivered MessageStatus = "delivered"
	StatusFailed    MessageStatus = "failed"
)

// Terminal reports whether status will never change again.
func (s MessageStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusFailed
}

// Transfer is a child row of a ConsolidatedMessage, one per token
// movement the message carries.
type Transfer struct {
	MessageID int64
	BridgeID  int32
	Index     int32
	Token     string
	Amount    string // decimal string, avoids integer precision loss
	Sender    string
	Recipient string
}

// ConsolidatedMessage is the canonical crosschain_messages row produced
// by the correlation buffer once all required sub-events are present.
type ConsolidatedMessage struct {
	ID                  int64
	BridgeID            int32
	Status              MessageStatus
	SrcChainID          int64
	DstChainID          int64
	SrcTxHash           string
	DstTxHash           string
	SenderAddress       string
	RecipientAddress    string
	Payload             []byte
	LastUpdateTimestamp time.Time
	Transfers           []Transfer
}

func (m ConsolidatedMessage) Key() BufferKey {
	return BufferKey{MessageID: m.ID, BridgeID: m.BridgeID}
}

// PendingMessage is a spilled, not-yet-consolidated buffer entry,
// stored self-describing so a later rehydrate can detect schema drift
// instead of silently misdecoding an old payload.
type PendingMessage struct {
	Key           BufferKey
	SchemaVersion uint8
	Payload       []byte
	CreatedAt     time.Time
}

// CurrentPendingSchemaVersion is bumped whenever the serialized shape of
// a buffered partial changes incompatibly.
const CurrentPendingSchemaVersion uint8 = 1

// BytecodeType distinguishes creation (init) code from deployed
// (runtime) code.
type BytecodeType string

const (
	BytecodeCreation BytecodeType = "creation"
	BytecodeRuntime  BytecodeType = "runtime"
)

// MatchType is the outcome of verification match classification.
type MatchType string

const (
	MatchFull    MatchType = "full"
	MatchPartial MatchType = "partial"
	MatchNone    MatchType = "none"
)

// Better reports whether m is a strict upgrade over existing:
// partial -> full is an upgrade, full never downgrades.
func (m MatchType) Better(existing MatchType) bool {
	rank := func(t MatchType) int {
		switch t {
		case MatchFull:
			return 2
		case MatchPartial:
			return 1
		default:
			return 0
		}
	}
	return rank(m) > rank(existing)
}

// Language is the source language of a verified contract.
type Language string

const (
	LanguageSolidity Language = "solidity"
	LanguageVyper    Language = "vyper"
	LanguageYul      Language = "yul"
)

// VerificationType is the shape of compiler input the coordinator
// accepted.
type VerificationType string

const (
	VerificationMultiPart    VerificationType = "multi-part"
	VerificationStandardJSON VerificationType = "standard-json"
)

// File is a single source file, deduplicated by (name, content) across
// all Sources that reference it.
type File struct {
	ID      int64
	Name    string
	Content string
}

// PartKind distinguishes the compiled-code body from the trailing
// CBOR-encoded metadata region compilers append.
type PartKind string

const (
	PartMain     PartKind = "main"
	PartMetadata PartKind = "metadata"
)

// BytecodePart is one ordered chunk of a bytecode; concatenation in
// order reproduces the full bytecode.
type BytecodePart struct {
	Data []byte
	Kind PartKind
}

// Source is a compiled contract's normalized record.
type Source struct {
	ID                 int64
	Language           Language
	CompilerVersion    string
	ContractName       string
	FilePath           string
	ABI                json.RawMessage
	RawCreationInput   []byte
	RawRuntimeBytecode []byte
	Settings           json.RawMessage
	Files              []File
}

// VerifiedContract links a Source to a specific on-chain bytecode
// match. Exactly one row exists per (SourceID, BytecodeType).
type VerifiedContract struct {
	SourceID             int64
	RawBytecode          []byte
	BytecodeType         BytecodeType
	Settings             json.RawMessage
	VerificationType     VerificationType
	CompilationArtifacts json.RawMessage
	Match                MatchType
	Parts                []BytecodePart
}

// Copyright 2025 Blockscout
//
// Package apiserver names the externally visible operations as plain
// Go interfaces with no transport attached. A transport layer binds
// these to protobuf services; the interfaces keep that boundary
// explicit. Every list call takes a page token and bounded size and
// returns the next token alongside results.
package apiserver

import (
	"context"

	"github.com/blockscout/indexing-core/internal/model"
	"github.com/blockscout/indexing-core/internal/verification"
)

// Page is the cursor-pagination envelope every list endpoint takes.
// Page size is clamped server-side.
type Page struct {
	PageToken string
	PageSize  int32
}

// DefaultPageSize and MaxPageSize bound what Clamp returns.
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// Clamp returns the effective page size: the default when unset or
// negative, capped at the maximum otherwise.
func (p Page) Clamp() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return int(p.PageSize)
}

// PageResult carries the next cursor alongside a list response.
type PageResult struct {
	NextPageToken string
}

// Verifier exposes the verification coordinator's operations under
// their contractual names.
type Verifier interface {
	VerifySolidityMultiPart(ctx context.Context, req verification.Request) (model.Source, model.MatchType, error)
	VerifySolidityStandardJSON(ctx context.Context, req verification.Request) (model.Source, model.MatchType, error)
	VerifyVyperMultiPart(ctx context.Context, req verification.Request) (model.Source, model.MatchType, error)
	VerifyVyperStandardJSON(ctx context.Context, req verification.Request) (model.Source, model.MatchType, error)
	BatchImportSolidityMultiPart(ctx context.Context, items []verification.ImportItem, req verification.Request) verification.BatchImportResult
	ListCompilerVersions(ctx context.Context) ([]string, error)
	LookupByBytecode(ctx context.Context, bytecodeType model.BytecodeType, bytecode []byte) (model.VerifiedContract, bool, error)
}

// Domain is a resolved ENS-style name record, the minimal shape the
// naming resolver's Get/List/Lookup operations deal in.
type Domain struct {
	Name        string
	Owner       string
	ResolvedTo  string
	Protocol    string
	ExpiresAt   int64
}

// DomainEvent is one historical event against a Domain (registration,
// transfer, renewal).
type DomainEvent struct {
	Domain    string
	Kind      string
	TxHash    string
	Timestamp int64
}

// NamingResolver exposes the naming-resolver operations.
type NamingResolver interface {
	BatchResolveAddressNames(ctx context.Context, addresses []string) (map[string]string, error)
	GetDomain(ctx context.Context, name string) (Domain, bool, error)
	LookupDomain(ctx context.Context, query string, page Page) ([]Domain, PageResult, error)
	ListDomainEvents(ctx context.Context, name string, page Page) ([]DomainEvent, PageResult, error)
	GetAddress(ctx context.Context, name string) (string, bool, error)
	GetProtocols(ctx context.Context) ([]string, error)
}

// StreamIndexer is the common shape of the interchain-message, CCTX,
// and user-ops indexers: per-entity Get, List, GetCheckpoint. T is the
// entity type (model.ConsolidatedMessage for the interchain indexer, a
// CCTX-shaped struct for that indexer, etc).
type StreamIndexer[T any] interface {
	Get(ctx context.Context, id int64) (T, bool, error)
	List(ctx context.Context, streamKey model.StreamKey, page Page) ([]T, PageResult, error)
	GetCheckpoint(ctx context.Context, streamKey model.StreamKey) (model.Checkpoint, error)
}

// TokenLookup is composed onto a StreamIndexer by indexers whose
// entities reference tokens (interchain transfers, user-ops gas
// tokens).
type TokenLookup interface {
	GetTokenInfo(ctx context.Context, chainID int64, address string) (model.TokenInfo, bool, error)
}

// ChartPoint is one datum of a stats chart series.
type ChartPoint struct {
	Timestamp int64
	Value     string // decimal string, avoids integer precision loss
}

// Stats exposes chart-name-keyed data queries with pagination.
type Stats interface {
	GetChart(ctx context.Context, chartName string, page Page) ([]ChartPoint, PageResult, error)
	ListChartNames(ctx context.Context) ([]string, error)
}

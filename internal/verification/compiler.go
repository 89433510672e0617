// Copyright 2025 Blockscout
//
// The Compiler boundary. The coordinator delegates actual compilation
// to an external service it treats as a black box; a binary wires this
// to a solc/vyper compiler-fetching service such as
// internal/compilerclient.
package verification

import "context"

// Compiler runs a single compiler invocation and reports its raw
// output. Implementations are expected to fetch and cache compiler
// binaries themselves; the coordinator only calls through this
// interface.
type Compiler interface {
	// CompileMultiPart compiles a set of named sources against a single
	// compiler version and settings, returning one artifact per
	// contract defined across the sources.
	CompileMultiPart(ctx context.Context, content *MultiPartContent) ([]CompiledArtifact, error)

	// CompileStandardJSON compiles an opaque standard-JSON input
	// document, returning one artifact per contract the compiler
	// reports in its output.
	CompileStandardJSON(ctx context.Context, content *StandardJSONContent) ([]CompiledArtifact, error)

	// ListVersions returns the compiler versions currently available,
	// used to validate a request's CompilerVersion up front.
	ListVersions(ctx context.Context) ([]string, error)
}

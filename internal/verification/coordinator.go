// Copyright 2025 Blockscout
//
// The verification coordinator: single-flights concurrent requests
// for the same content, consults a TTL cache before paying for
// compilation, and only ever upgrades a prior match.
package verification

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"

	"golang.org/x/sync/singleflight"

	"github.com/blockscout/indexing-core/internal/cache"
	"github.com/blockscout/indexing-core/internal/database"
	"github.com/blockscout/indexing-core/internal/model"
)

// Coordinator serves Verify, ImportBatch, and LookupByBytecode over a
// compiler service, a durable cache, and the Postgres store.
type Coordinator struct {
	compiler Compiler
	cache    *cache.Cache
	repo     *database.VerificationRepository
	db       *database.Client
	group    singleflight.Group
	logger   *log.Logger
}

// Option configures a Coordinator at construction time.
type Option func(*Coordinator)

func WithLogger(logger *log.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

func New(compiler Compiler, cache *cache.Cache, repo *database.VerificationRepository, db *database.Client, opts ...Option) *Coordinator {
	c := &Coordinator{
		compiler: compiler,
		cache:    cache,
		repo:     repo,
		db:       db,
		logger:   log.New(log.Writer(), "[Verification] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// cachedResult is what Coordinator stores in cache, keyed by
// fingerprint.
type cachedResult struct {
	SourceID int64           `json:"source_id"`
	Match    model.MatchType `json:"match"`
}

// Verify answers "is this on-chain bytecode the result of compiling
// this source": dedup by fingerprint, cache lookup, single-flighted
// compile + classify + persist, upgrade-only write.
func (c *Coordinator) Verify(ctx context.Context, req Request) (model.Source, model.MatchType, error) {
	if len(req.TargetBytecode) == 0 {
		return model.Source{}, "", ErrInvalidArgument
	}
	if req.MultiPart == nil && req.StandardJSON == nil {
		return model.Source{}, "", ErrInvalidArgument
	}

	fp := Fingerprint(req)

	if cached, stale, ok := c.lookupCache(fp); ok {
		if stale {
			// refresh-ahead: answer from the stale entry now and
			// recompute through the same single-flight slot, so N
			// stale hits still cost at most one compilation
			go func() {
				if _, err, _ := c.group.Do(fp, func() (interface{}, error) {
					return c.verifyOnce(context.WithoutCancel(ctx), req, fp)
				}); err != nil {
					c.logger.Printf("background refresh for %s failed: %v", fp, err)
				}
			}()
		}
		return model.Source{ID: cached.SourceID}, cached.Match, nil
	}

	result, err, _ := c.group.Do(fp, func() (interface{}, error) {
		return c.verifyOnce(ctx, req, fp)
	})
	if err != nil {
		return model.Source{}, "", err
	}
	vr := result.(verifyResult)
	return vr.source, vr.match, nil
}

type verifyResult struct {
	source model.Source
	match  model.MatchType
}

// verifyOnce does the actual compile-classify-persist work for one
// fingerprint; singleflight.Group ensures only one caller at a time
// runs this for a given fp while concurrent callers share its result.
func (c *Coordinator) verifyOnce(ctx context.Context, req Request, fp string) (verifyResult, error) {
	// Re-check the cache: another goroutine may have completed this
	// exact fingerprint between our miss above and acquiring the
	// single-flight slot. A stale entry does not short-circuit here,
	// this is the path that refreshes it.
	if cached, stale, ok := c.lookupCache(fp); ok && !stale {
		return verifyResult{source: model.Source{ID: cached.SourceID}, match: cached.Match}, nil
	}

	artifacts, err := c.compile(ctx, req)
	if err != nil {
		return verifyResult{}, err
	}

	artifact, err := selectArtifact(artifacts, req)
	if err != nil {
		return verifyResult{}, err
	}

	match := c.classify(req, artifact)
	if match == model.MatchNone {
		return verifyResult{}, ErrNoMatchingContracts
	}

	if err := CheckBlueprintConsistency(artifact.CreationBytecode, artifact.RuntimeBytecode); err != nil {
		return verifyResult{}, err
	}

	source, finalMatch, err := c.persist(ctx, req, artifact, match)
	if err != nil {
		return verifyResult{}, err
	}

	c.writeCache(fp, cachedResult{SourceID: source.ID, Match: finalMatch})
	return verifyResult{source: source, match: finalMatch}, nil
}

func (c *Coordinator) compile(ctx context.Context, req Request) ([]CompiledArtifact, error) {
	switch {
	case req.MultiPart != nil:
		return c.compiler.CompileMultiPart(ctx, req.MultiPart)
	case req.StandardJSON != nil:
		return c.compiler.CompileStandardJSON(ctx, req.StandardJSON)
	default:
		return nil, ErrInvalidArgument
	}
}

// selectArtifact picks the compiled contract the request named, or the
// sole artifact if the compiler only produced one.
func selectArtifact(artifacts []CompiledArtifact, req Request) (CompiledArtifact, error) {
	var wanted string
	if req.MultiPart != nil {
		wanted = req.MultiPart.ContractName
	} else if req.StandardJSON != nil {
		wanted = req.StandardJSON.ContractName
	}
	if wanted == "" && len(artifacts) == 1 {
		return artifacts[0], nil
	}
	for _, a := range artifacts {
		if a.ContractName == wanted {
			return a, nil
		}
	}
	return CompiledArtifact{}, ErrNoMatchingContracts
}

// classify picks the recompiled bytecode matching the requested
// BytecodeType and classifies it against the on-chain target.
func (c *Coordinator) classify(req Request, artifact CompiledArtifact) model.MatchType {
	var recompiled []byte
	if req.BytecodeType == model.BytecodeCreation {
		recompiled = artifact.CreationBytecode
	} else {
		recompiled = artifact.RuntimeBytecode
	}
	return ClassifyMatch(recompiled, req.TargetBytecode)
}

// persist applies the upgrade-only lifecycle: a new match is written
// over an existing VerifiedContract row only if it's a strict upgrade
// (model.MatchType.Better) or the same match type; a weaker match
// leaves the existing record standing.
func (c *Coordinator) persist(ctx context.Context, req Request, artifact CompiledArtifact, match model.MatchType) (model.Source, model.MatchType, error) {
	existing, found, err := c.repo.LookupByBytecode(ctx, req.BytecodeType, req.TargetBytecode)
	if err != nil {
		return model.Source{}, "", fmt.Errorf("failed to check existing verification: %w", err)
	}
	if found && !match.Better(existing.Match) && match != existing.Match {
		c.logger.Printf("not upgrading existing %s match with weaker %s match for bytecode_type=%s", existing.Match, match, req.BytecodeType)
		return model.Source{ID: existing.SourceID}, existing.Match, nil
	}

	source := model.Source{
		Language:           req.Language,
		CompilerVersion:    artifact.CompilerVersion,
		ContractName:       artifact.ContractName,
		FilePath:           artifact.FilePath,
		ABI:                artifact.ABI,
		RawCreationInput:   artifact.CreationBytecode,
		RawRuntimeBytecode: artifact.RuntimeBytecode,
		Settings:           artifact.Settings,
		Files:              artifact.Files,
	}
	sourceHash := contentHash(artifact)

	vc := model.VerifiedContract{
		RawBytecode:          req.TargetBytecode,
		BytecodeType:         req.BytecodeType,
		Settings:             artifact.Settings,
		VerificationType:     req.VerificationType,
		CompilationArtifacts: artifact.ABI,
		Match:                match,
		Parts:                splitParts(req.TargetBytecode),
	}

	var persisted model.Source
	err = c.db.WithTx(ctx, func(tx *sql.Tx) error {
		var txErr error
		persisted, txErr = c.repo.PersistVerification(ctx, tx, source, sourceHash, vc)
		return txErr
	})
	if err != nil {
		return model.Source{}, "", fmt.Errorf("failed to persist verification: %w", err)
	}
	return persisted, match, nil
}

// splitParts divides bytecode into its main body and trailing metadata
// region; concatenating the parts in order reproduces the input.
func splitParts(bytecode []byte) []model.BytecodePart {
	main := stripMetadata(bytecode)
	if len(main) == len(bytecode) {
		return []model.BytecodePart{{Data: bytecode, Kind: model.PartMain}}
	}
	return []model.BytecodePart{
		{Data: main, Kind: model.PartMain},
		{Data: bytecode[len(main):], Kind: model.PartMetadata},
	}
}

func contentHash(artifact CompiledArtifact) string {
	h := sha256.New()
	h.Write([]byte(artifact.CompilerVersion))
	h.Write([]byte(artifact.ContractName))
	for _, f := range artifact.Files {
		h.Write([]byte(f.Name))
		h.Write([]byte(f.Content))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Coordinator) lookupCache(fp string) (cr cachedResult, stale bool, ok bool) {
	raw, hit, stale, err := c.cache.Get([]byte(fp))
	if err != nil {
		c.logger.Printf("cache lookup failed for %s: %v", fp, err)
		return cachedResult{}, false, false
	}
	if !hit {
		return cachedResult{}, false, false
	}
	if err := json.Unmarshal(raw, &cr); err != nil {
		return cachedResult{}, false, false
	}
	return cr, stale, true
}

func (c *Coordinator) writeCache(fp string, cr cachedResult) {
	raw, err := json.Marshal(cr)
	if err != nil {
		return
	}
	if err := c.cache.Set([]byte(fp), raw); err != nil {
		c.logger.Printf("cache write failed for %s: %v", fp, err)
	}
}

// ListVersions reports the compiler versions the backing service can
// run.
func (c *Coordinator) ListVersions(ctx context.Context) ([]string, error) {
	return c.compiler.ListVersions(ctx)
}

// LookupByBytecode finds any prior verification for the given bytecode
// directly against the repository, bypassing compilation entirely.
func (c *Coordinator) LookupByBytecode(ctx context.Context, bytecodeType model.BytecodeType, bytecode []byte) (model.VerifiedContract, bool, error) {
	return c.repo.LookupByBytecode(ctx, bytecodeType, bytecode)
}

// ImportBatch verifies many contracts compiled under one compiler
// version and content bundle. Each item is verified independently; a
// failure in one never aborts the rest.
func (c *Coordinator) ImportBatch(ctx context.Context, items []ImportItem, req Request) BatchImportResult {
	result := BatchImportResult{Results: make([]ImportItemResult, 0, len(items))}
	for _, item := range items {
		itemReq := req
		itemReq.BytecodeType = item.BytecodeType
		itemReq.TargetBytecode = item.TargetBytecode
		if itemReq.MultiPart != nil {
			clone := *itemReq.MultiPart
			clone.ContractName = item.ContractName
			itemReq.MultiPart = &clone
		}
		if itemReq.StandardJSON != nil {
			clone := *itemReq.StandardJSON
			clone.ContractName = item.ContractName
			itemReq.StandardJSON = &clone
		}

		source, match, err := c.Verify(ctx, itemReq)
		result.Results = append(result.Results, ImportItemResult{
			ContractName: item.ContractName,
			Source:       source,
			Match:        match,
			Err:          err,
		})
	}
	return result
}

// Copyright 2025 Blockscout
//
// Verification Repository - transactional write-out of compiled
// Sources, their Files, Bytecodes, and VerifiedContracts.

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/blockscout/indexing-core/internal/model"
)

// ErrSourceNotFound is returned when a lookup by bytecode finds no row.
var ErrSourceNotFound = errors.New("source not found")

type VerificationRepository struct {
	client *Client
}

func NewVerificationRepository(client *Client) *VerificationRepository {
	return &VerificationRepository{client: client}
}

// FindVerifiedContract returns the prior verification for
// (sourceID, bytecodeType), used by the coordinator's cache-miss path
// to decide whether a new match is an upgrade.
func (r *VerificationRepository) FindVerifiedContract(ctx context.Context, sourceID int64, bytecodeType model.BytecodeType) (model.VerifiedContract, bool, error) {
	var vc model.VerifiedContract
	vc.SourceID = sourceID
	vc.BytecodeType = bytecodeType
	var match string
	err := r.client.db.QueryRowContext(ctx, `
		SELECT raw_bytecode, verification_settings, verification_type, compilation_artifacts, match_type
		FROM verified_contracts WHERE source_id = $1 AND bytecode_type = $2`,
		sourceID, bytecodeType,
	).Scan(&vc.RawBytecode, &vc.Settings, &vc.VerificationType, &vc.CompilationArtifacts, &match)
	if err == sql.ErrNoRows {
		return model.VerifiedContract{}, false, nil
	}
	if err != nil {
		return model.VerifiedContract{}, false, fmt.Errorf("failed to find verified contract: %w", err)
	}
	vc.Match = model.MatchType(match)
	return vc, true, nil
}

// LookupByBytecode finds any prior verification whose raw bytecode
// matches, regardless of source.
func (r *VerificationRepository) LookupByBytecode(ctx context.Context, bytecodeType model.BytecodeType, bytecode []byte) (model.VerifiedContract, bool, error) {
	var vc model.VerifiedContract
	vc.BytecodeType = bytecodeType
	var match string
	err := r.client.db.QueryRowContext(ctx, `
		SELECT source_id, raw_bytecode, verification_settings, verification_type, compilation_artifacts, match_type
		FROM verified_contracts WHERE bytecode_type = $1 AND raw_bytecode = $2
		LIMIT 1`,
		bytecodeType, bytecode,
	).Scan(&vc.SourceID, &vc.RawBytecode, &vc.Settings, &vc.VerificationType, &vc.CompilationArtifacts, &match)
	if err == sql.ErrNoRows {
		return model.VerifiedContract{}, false, nil
	}
	if err != nil {
		return model.VerifiedContract{}, false, fmt.Errorf("failed to look up contract by bytecode: %w", err)
	}
	vc.Match = model.MatchType(match)
	return vc, true, nil
}

// FindSourceByContent looks up a previously inserted Source by its
// dedup key (compiler_version, contract_name, file_name, source_hash).
func (r *VerificationRepository) FindSourceByContent(ctx context.Context, compilerVersion, contractName, fileName, sourceHash string) (int64, bool, error) {
	var id int64
	err := r.client.db.QueryRowContext(ctx, `
		SELECT id FROM sources WHERE compiler_version = $1 AND contract_name = $2 AND file_name = $3 AND source_hash = $4`,
		compilerVersion, contractName, fileName, sourceHash,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to find source by content: %w", err)
	}
	return id, true, nil
}

// PersistVerification writes one verification in six steps inside the
// caller's transaction: Source (dedup by content hash), Files
// (find-or-insert by name+content), source_files join, one Bytecode
// row, its ordered Parts, and the VerifiedContract linking row.
// Returns the persisted Source with its assigned ID.
func (r *VerificationRepository) PersistVerification(ctx context.Context, tx *sql.Tx, source model.Source, sourceHash string, vc model.VerifiedContract) (model.Source, error) {
	sourceID, err := r.findOrInsertSource(ctx, tx, source, sourceHash)
	if err != nil {
		return model.Source{}, err
	}
	source.ID = sourceID

	for i, f := range source.Files {
		fileID, err := r.findOrInsertFile(ctx, tx, f)
		if err != nil {
			return model.Source{}, err
		}
		source.Files[i].ID = fileID
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO source_files (source_id, file_id) VALUES ($1, $2)
			ON CONFLICT (source_id, file_id) DO NOTHING`, sourceID, fileID); err != nil {
			return model.Source{}, fmt.Errorf("failed to link source file: %w", err)
		}
	}

	var bytecodeID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO bytecodes (source_id, bytecode_type) VALUES ($1, $2)
		ON CONFLICT (source_id, bytecode_type) DO UPDATE SET bytecode_type = EXCLUDED.bytecode_type
		RETURNING id`, sourceID, vc.BytecodeType).Scan(&bytecodeID)
	if err != nil {
		return model.Source{}, fmt.Errorf("failed to insert bytecode: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM bytecode_parts WHERE bytecode_id = $1`, bytecodeID); err != nil {
		return model.Source{}, fmt.Errorf("failed to clear bytecode parts: %w", err)
	}
	for i, part := range vc.Parts {
		var partID int64
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO parts (data, part_type) VALUES ($1, $2) RETURNING id`,
			part.Data, part.Kind).Scan(&partID); err != nil {
			return model.Source{}, fmt.Errorf("failed to insert part: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bytecode_parts (bytecode_id, ord, part_id) VALUES ($1, $2, $3)`,
			bytecodeID, i, partID); err != nil {
			return model.Source{}, fmt.Errorf("failed to insert bytecode part: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO verified_contracts
			(source_id, raw_bytecode, bytecode_type, verification_settings, verification_type, compilation_artifacts, match_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (source_id, bytecode_type) DO UPDATE SET
			raw_bytecode = EXCLUDED.raw_bytecode,
			verification_settings = EXCLUDED.verification_settings,
			verification_type = EXCLUDED.verification_type,
			compilation_artifacts = EXCLUDED.compilation_artifacts,
			match_type = EXCLUDED.match_type`,
		sourceID, vc.RawBytecode, vc.BytecodeType, vc.Settings, vc.VerificationType, vc.CompilationArtifacts, vc.Match,
	); err != nil {
		return model.Source{}, fmt.Errorf("failed to upsert verified contract: %w", err)
	}

	return source, nil
}

func (r *VerificationRepository) findOrInsertSource(ctx context.Context, tx *sql.Tx, source model.Source, sourceHash string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		SELECT id FROM sources WHERE compiler_version = $1 AND contract_name = $2 AND file_name = $3 AND source_hash = $4`,
		source.CompilerVersion, source.ContractName, source.FilePath, sourceHash,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to probe source: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO sources
			(language, compiler_version, contract_name, file_name, compiler_settings, raw_creation_input, raw_deployed_bytecode, abi, source_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		source.Language, source.CompilerVersion, source.ContractName, source.FilePath,
		nullableJSON(source.Settings), source.RawCreationInput, source.RawRuntimeBytecode, nullableJSON(source.ABI), sourceHash,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert source: %w", err)
	}
	return id, nil
}

func (r *VerificationRepository) findOrInsertFile(ctx context.Context, tx *sql.Tx, f model.File) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM files WHERE name = $1 AND content = $2`, f.Name, f.Content).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to probe file: %w", err)
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO files (name, content) VALUES ($1, $2)
		ON CONFLICT (name, content) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, f.Name, f.Content).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert file: %w", err)
	}
	return id, nil
}

func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

// Copyright 2025 Blockscout

package verification

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/lib/pq"

	"github.com/blockscout/indexing-core/internal/cache"
	"github.com/blockscout/indexing-core/internal/database"
	"github.com/blockscout/indexing-core/internal/model"
)

// fakeCompiler lets tests control compiled output and count invocations,
// so single-flight dedup can be asserted without a real solc binary.
type fakeCompiler struct {
	calls     int32
	artifacts []CompiledArtifact
	delay     time.Duration
}

func (f *fakeCompiler) CompileMultiPart(ctx context.Context, content *MultiPartContent) ([]CompiledArtifact, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.artifacts, nil
}

func (f *fakeCompiler) CompileStandardJSON(ctx context.Context, content *StandardJSONContent) ([]CompiledArtifact, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.artifacts, nil
}

func (f *fakeCompiler) ListVersions(ctx context.Context) ([]string, error) {
	return []string{"0.8.20"}, nil
}

var testDB *sql.DB

func TestMain(m *testing.M) {
	connStr := os.Getenv("INDEXER_TEST_DB")
	if connStr == "" {
		os.Exit(0)
	}
	var err error
	testDB, err = sql.Open("postgres", connStr)
	if err != nil {
		panic("failed to connect to test database: " + err.Error())
	}
	code := m.Run()
	testDB.Close()
	os.Exit(code)
}

func newTestCoordinator(t *testing.T, compiler Compiler) *Coordinator {
	t.Helper()
	if testDB == nil {
		t.Skip("INDEXER_TEST_DB not configured")
	}
	client, err := database.NewClient(database.Config{URL: os.Getenv("INDEXER_TEST_DB")})
	require.NoError(t, err)
	require.NoError(t, client.MigrateUp(context.Background()))
	t.Cleanup(func() { client.Close() })

	memCache, err := cache.Open(t.Name(), dbm.MemDBBackend, "", time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { memCache.Close() })

	return New(compiler, memCache, database.NewVerificationRepository(client), client)
}

func runtimeBytecode() []byte {
	return []byte{0x60, 0x80, 0x60, 0x40, 0x52}
}

func TestCoordinator_VerifyPersistsFullMatch(t *testing.T) {
	compiler := &fakeCompiler{artifacts: []CompiledArtifact{{
		ContractName:    "Token",
		CompilerVersion: "0.8.20",
		RuntimeBytecode: runtimeBytecode(),
	}}}
	coord := newTestCoordinator(t, compiler)

	req := Request{
		BytecodeType:     model.BytecodeRuntime,
		VerificationType: model.VerificationMultiPart,
		Language:         model.LanguageSolidity,
		TargetBytecode:   runtimeBytecode(),
		MultiPart:        &MultiPartContent{Sources: map[string]string{"Token.sol": "contract Token {}"}, ContractName: "Token"},
	}

	source, match, err := coord.Verify(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.MatchFull, match)
	assert.NotZero(t, source.ID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&compiler.calls))
}

func TestCoordinator_VerifyDedupsConcurrentCalls(t *testing.T) {
	compiler := &fakeCompiler{
		delay: 50 * time.Millisecond,
		artifacts: []CompiledArtifact{{
			ContractName:    "Token",
			CompilerVersion: "0.8.20",
			RuntimeBytecode: runtimeBytecode(),
		}},
	}
	coord := newTestCoordinator(t, compiler)
	req := Request{
		BytecodeType:     model.BytecodeRuntime,
		VerificationType: model.VerificationMultiPart,
		Language:         model.LanguageSolidity,
		TargetBytecode:   runtimeBytecode(),
		MultiPart:        &MultiPartContent{Sources: map[string]string{"Token.sol": "contract Token {}"}, ContractName: "Token"},
	}

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = coord.Verify(context.Background(), req)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&compiler.calls), "concurrent identical requests should single-flight into one compile")
}

func TestCoordinator_VerifyUpgradesPartialToFull(t *testing.T) {
	main := []byte{0x60, 0x80, 0x60, 0x40}
	onchain := withMetadata(main, []byte{0x11, 0x22})

	partialCompiler := &fakeCompiler{artifacts: []CompiledArtifact{{
		ContractName:    "Token",
		CompilerVersion: "0.8.20",
		RuntimeBytecode: withMetadata(main, []byte{0xAA, 0xBB, 0xCC}),
	}}}
	coord := newTestCoordinator(t, partialCompiler)
	ctx := context.Background()

	req := Request{
		BytecodeType:     model.BytecodeRuntime,
		VerificationType: model.VerificationMultiPart,
		Language:         model.LanguageSolidity,
		TargetBytecode:   onchain,
		MultiPart:        &MultiPartContent{Sources: map[string]string{"Token.sol": "contract Token {}"}, ContractName: "Token"},
	}
	_, match, err := coord.Verify(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, model.MatchPartial, match)

	// A second, independent coordinator (fresh cache) recompiles with an
	// exact byte match and must upgrade the stored record to full.
	fullCompiler := &fakeCompiler{artifacts: []CompiledArtifact{{
		ContractName:    "Token",
		CompilerVersion: "0.8.20",
		RuntimeBytecode: onchain,
	}}}
	upgradeCoord := newTestCoordinator(t, fullCompiler)
	req.MultiPart = &MultiPartContent{Sources: map[string]string{"Token.sol": "contract Token { uint x; }"}, ContractName: "Token"}
	_, match, err = upgradeCoord.Verify(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, model.MatchFull, match)

	existing, found, err := upgradeCoord.LookupByBytecode(ctx, model.BytecodeRuntime, onchain)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, model.MatchFull, existing.Match, "stored record must reflect the upgraded match")
}

func TestCoordinator_VerifyRejectsBlueprintMismatch(t *testing.T) {
	compiler := &fakeCompiler{artifacts: []CompiledArtifact{{
		ContractName:     "Token",
		CompilerVersion:  "0.8.20",
		CreationBytecode: []byte{0xFE, 0x71, 0x00},
		RuntimeBytecode:  []byte{0x60, 0x80},
	}}}
	coord := newTestCoordinator(t, compiler)

	req := Request{
		BytecodeType:     model.BytecodeRuntime,
		VerificationType: model.VerificationMultiPart,
		Language:         model.LanguageSolidity,
		TargetBytecode:   []byte{0x60, 0x80},
		MultiPart:        &MultiPartContent{Sources: map[string]string{"Token.sol": "contract Token {}"}, ContractName: "Token"},
	}
	_, _, err := coord.Verify(context.Background(), req)
	assert.ErrorIs(t, err, ErrNotConsistentBlueprintOnChainCode)
}

func TestCoordinator_ImportBatchIsolatesFailures(t *testing.T) {
	compiler := &fakeCompiler{artifacts: []CompiledArtifact{{
		ContractName:    "Good",
		CompilerVersion: "0.8.20",
		RuntimeBytecode: runtimeBytecode(),
	}}}
	coord := newTestCoordinator(t, compiler)

	items := []ImportItem{
		{ContractName: "Good", BytecodeType: model.BytecodeRuntime, TargetBytecode: runtimeBytecode()},
		{ContractName: "Missing", BytecodeType: model.BytecodeRuntime, TargetBytecode: []byte{0xDE, 0xAD}},
	}
	req := Request{
		VerificationType: model.VerificationMultiPart,
		Language:         model.LanguageSolidity,
		MultiPart:        &MultiPartContent{Sources: map[string]string{"Good.sol": "contract Good {}"}},
	}

	result := coord.ImportBatch(context.Background(), items, req)
	require.Len(t, result.Results, 2)
	assert.NoError(t, result.Results[0].Err)
	assert.Equal(t, model.MatchFull, result.Results[0].Match)
	assert.Error(t, result.Results[1].Err, "an unmatched item must not abort the batch")
}

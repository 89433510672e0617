// Copyright 2025 Blockscout
//
// verifier wires the verification coordinator over a Postgres store
// and a cometbft-db TTL cache, and exposes it behind a small JSON HTTP
// surface. The coordinator itself is transport-agnostic
// (internal/apiserver.Verifier names its contractual operations); this
// binary is one concrete binding of that interface.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/blockscout/indexing-core/internal/apiserver"
	"github.com/blockscout/indexing-core/internal/cache"
	"github.com/blockscout/indexing-core/internal/compilerclient"
	"github.com/blockscout/indexing-core/internal/config"
	"github.com/blockscout/indexing-core/internal/database"
	"github.com/blockscout/indexing-core/internal/metrics"
	"github.com/blockscout/indexing-core/internal/model"
	"github.com/blockscout/indexing-core/internal/verification"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	listenAddr := flag.String("listen", ":8081", "HTTP listen address")
	compilerURL := flag.String("compiler-url", "", "base URL of the external compiler service")
	flag.Parse()

	logger := log.New(os.Stdout, "[Verifier] ", log.LstdFlags)

	cfg, err := config.Load(*configPath, "VERIFIER")
	if err != nil {
		logger.Fatalf("failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbClient, err := database.NewClient(database.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime.Duration(),
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime.Duration(),
	}, database.WithLogger(log.New(os.Stdout, "[Database] ", log.LstdFlags)))
	if err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}
	defer dbClient.Close()

	if err := dbClient.MigrateUp(ctx); err != nil {
		logger.Fatalf("failed to run migrations: %v", err)
	}

	backend, dir := dbm.GoLevelDBBackend, cfg.Cache.Dir
	if dir == "" {
		backend, dir = dbm.MemDBBackend, ""
	}
	verificationCache, err := cache.Open("verification", backend, dir, cfg.Cache.TTL.Duration(),
		cache.WithLogger(log.New(os.Stdout, "[Cache] ", log.LstdFlags)))
	if err != nil {
		logger.Fatalf("failed to open verification cache: %v", err)
	}
	defer verificationCache.Close()

	compiler := compilerclient.New(*compilerURL,
		compilerclient.WithLogger(log.New(os.Stdout, "[CompilerClient] ", log.LstdFlags)))

	repo := database.NewVerificationRepository(dbClient)
	coordinator := verification.New(compiler, verificationCache, repo, dbClient,
		verification.WithLogger(log.New(os.Stdout, "[Verification] ", log.LstdFlags)))

	verificationMetrics := metrics.NewVerificationMetrics(cfg.Metrics.Namespace)
	verifier := &coordinatorVerifier{coordinator: coordinator}

	handlers := newVerifyHandlers(verifier, verificationMetrics, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/verify/multi-part", handlers.HandleVerifyMultiPart)
	mux.HandleFunc("/api/verify/standard-json", handlers.HandleVerifyStandardJSON)
	mux.HandleFunc("/api/verify/lookup", handlers.HandleLookupByBytecode)

	httpServer := &http.Server{Addr: *listenAddr, Handler: mux}
	go func() {
		logger.Printf("verifier API listening on %s", *listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("failed to start HTTP server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Println("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP server shutdown error: %v", err)
	}
	logger.Println("shutdown complete")
}

// verifyHandlers binds apiserver.Verifier's contractual operations to
// plain net/http handlers. It depends on the named interface, not the
// concrete Coordinator, so a future transport layer can reuse the same
// handler logic against any Verifier implementation.
type verifyHandlers struct {
	verifier apiserver.Verifier
	metrics  *metrics.VerificationMetrics
	logger   *log.Logger
}

var _ apiserver.Verifier = (*coordinatorVerifier)(nil)

// coordinatorVerifier adapts *verification.Coordinator to
// apiserver.Verifier's four language/input-shape specific methods,
// which the coordinator itself collapses into one Verify call keyed by
// request.Language and request.VerificationType.
type coordinatorVerifier struct {
	coordinator *verification.Coordinator
}

func (v *coordinatorVerifier) VerifySolidityMultiPart(ctx context.Context, req verification.Request) (model.Source, model.MatchType, error) {
	req.Language = model.LanguageSolidity
	return v.coordinator.Verify(ctx, req)
}

func (v *coordinatorVerifier) VerifySolidityStandardJSON(ctx context.Context, req verification.Request) (model.Source, model.MatchType, error) {
	req.Language = model.LanguageSolidity
	return v.coordinator.Verify(ctx, req)
}

func (v *coordinatorVerifier) VerifyVyperMultiPart(ctx context.Context, req verification.Request) (model.Source, model.MatchType, error) {
	req.Language = model.LanguageVyper
	return v.coordinator.Verify(ctx, req)
}

func (v *coordinatorVerifier) VerifyVyperStandardJSON(ctx context.Context, req verification.Request) (model.Source, model.MatchType, error) {
	req.Language = model.LanguageVyper
	return v.coordinator.Verify(ctx, req)
}

func (v *coordinatorVerifier) BatchImportSolidityMultiPart(ctx context.Context, items []verification.ImportItem, req verification.Request) verification.BatchImportResult {
	req.Language = model.LanguageSolidity
	return v.coordinator.ImportBatch(ctx, items, req)
}

func (v *coordinatorVerifier) ListCompilerVersions(ctx context.Context) ([]string, error) {
	return v.coordinator.ListVersions(ctx)
}

func (v *coordinatorVerifier) LookupByBytecode(ctx context.Context, bytecodeType model.BytecodeType, bytecode []byte) (model.VerifiedContract, bool, error) {
	return v.coordinator.LookupByBytecode(ctx, bytecodeType, bytecode)
}

func newVerifyHandlers(verifier apiserver.Verifier, m *metrics.VerificationMetrics, logger *log.Logger) *verifyHandlers {
	if logger == nil {
		logger = log.New(log.Writer(), "[VerifyAPI] ", log.LstdFlags)
	}
	return &verifyHandlers{verifier: verifier, metrics: m, logger: logger}
}

type verifyRequest struct {
	Language       string                            `json:"language"`
	BytecodeType   string                            `json:"bytecode_type"`
	TargetBytecode string                            `json:"target_bytecode_hex"`
	MultiPart      *verification.MultiPartContent    `json:"multi_part,omitempty"`
	StandardJSON   *verification.StandardJSONContent `json:"standard_json,omitempty"`
}

func (h *verifyHandlers) HandleVerifyMultiPart(w http.ResponseWriter, r *http.Request) {
	h.handleVerify(w, r, model.VerificationMultiPart)
}

func (h *verifyHandlers) HandleVerifyStandardJSON(w http.ResponseWriter, r *http.Request) {
	h.handleVerify(w, r, model.VerificationStandardJSON)
}

func (h *verifyHandlers) handleVerify(w http.ResponseWriter, r *http.Request, verificationType model.VerificationType) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	target, err := decodeHex(body.TargetBytecode)
	if err != nil {
		writeJSONError(w, "target_bytecode_hex is not valid hex", http.StatusBadRequest)
		return
	}

	req := verification.Request{
		BytecodeType:     model.BytecodeType(body.BytecodeType),
		VerificationType: verificationType,
		TargetBytecode:   target,
		MultiPart:        body.MultiPart,
		StandardJSON:     body.StandardJSON,
	}

	source, match, err := h.dispatch(r.Context(), body.Language, verificationType, req)
	if err != nil {
		h.logger.Printf("verify failed: %v", err)
		h.metrics.IncMatch("none")
		writeJSONError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	h.metrics.IncMatch(string(match))

	json.NewEncoder(w).Encode(map[string]interface{}{
		"source_id": source.ID,
		"match":     match,
	})
}

// dispatch routes a parsed request to the language/input-shape
// specific contractual operation. An unknown language defaults to
// Solidity, by far the common case.
func (h *verifyHandlers) dispatch(ctx context.Context, language string, verificationType model.VerificationType, req verification.Request) (model.Source, model.MatchType, error) {
	vyper := language == string(model.LanguageVyper)
	switch {
	case vyper && verificationType == model.VerificationMultiPart:
		return h.verifier.VerifyVyperMultiPart(ctx, req)
	case vyper:
		return h.verifier.VerifyVyperStandardJSON(ctx, req)
	case verificationType == model.VerificationMultiPart:
		return h.verifier.VerifySolidityMultiPart(ctx, req)
	default:
		return h.verifier.VerifySolidityStandardJSON(ctx, req)
	}
}

func (h *verifyHandlers) HandleLookupByBytecode(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	bytecodeHex := r.URL.Query().Get("bytecode")
	bytecodeType := r.URL.Query().Get("bytecode_type")
	bytecode, err := decodeHex(bytecodeHex)
	if err != nil {
		writeJSONError(w, "bytecode must be valid hex", http.StatusBadRequest)
		return
	}

	vc, found, err := h.verifier.LookupByBytecode(r.Context(), model.BytecodeType(bytecodeType), bytecode)
	if err != nil {
		h.logger.Printf("lookup failed: %v", err)
		writeJSONError(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if !found {
		writeJSONError(w, "no matching contract", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(vc)
}

func decodeHex(s string) ([]byte, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	return hex.DecodeString(s)
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

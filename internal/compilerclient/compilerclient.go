// Copyright 2025 Blockscout
//
// Package compilerclient implements verification.Compiler against an
// external HTTP compiler-fetching service: JSON request/response
// bodies over a timeout-bounded http.Client with per-call contexts.
package compilerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/blockscout/indexing-core/internal/verification"
)

// Client is a verification.Compiler backed by an HTTP compiler service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

// Option configures a Client at construction time.
type Option func(*Client)

func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New creates a Client targeting baseURL (e.g. a sourcify-compiler-style
// service exposing /compile/multi-part and /compile/standard-json).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     log.New(log.Writer(), "[CompilerClient] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type multiPartRequest struct {
	Sources          map[string]string `json:"sources"`
	Libraries        map[string]string `json:"libraries,omitempty"`
	CompilerVersion  string            `json:"compiler_version"`
	EVMVersion       string            `json:"evm_version,omitempty"`
	Optimize         bool              `json:"optimize"`
	OptimizationRuns int               `json:"optimization_runs,omitempty"`
}

type standardJSONRequest struct {
	CompilerVersion string          `json:"compiler_version"`
	Input           json.RawMessage `json:"input"`
}

type compileResponse struct {
	Contracts []artifactDTO `json:"contracts"`
	Error     string        `json:"error,omitempty"`
}

type artifactDTO struct {
	ContractName     string          `json:"contract_name"`
	FilePath         string          `json:"file_path"`
	ABI              json.RawMessage `json:"abi"`
	CreationBytecode []byte          `json:"creation_bytecode"`
	RuntimeBytecode  []byte          `json:"runtime_bytecode"`
	CompilerVersion  string          `json:"compiler_version"`
	Settings         json.RawMessage `json:"settings"`
}

// CompileMultiPart implements verification.Compiler.
func (c *Client) CompileMultiPart(ctx context.Context, content *verification.MultiPartContent) ([]verification.CompiledArtifact, error) {
	req := multiPartRequest{
		Sources:          content.Sources,
		Libraries:        content.Libraries,
		CompilerVersion:  content.CompilerVersion,
		EVMVersion:       content.EVMVersion,
		Optimize:         content.Optimize,
		OptimizationRuns: content.OptimizationRuns,
	}
	return c.compile(ctx, "/compile/multi-part", req)
}

// CompileStandardJSON implements verification.Compiler.
func (c *Client) CompileStandardJSON(ctx context.Context, content *verification.StandardJSONContent) ([]verification.CompiledArtifact, error) {
	req := standardJSONRequest{
		CompilerVersion: content.CompilerVersion,
		Input:           content.Input,
	}
	return c.compile(ctx, "/compile/standard-json", req)
}

// ListVersions implements verification.Compiler.
func (c *Client) ListVersions(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/versions", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create versions request: %w", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to query compiler versions: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read versions response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("compiler service returned status %d: %s", resp.StatusCode, string(body))
	}

	var versions struct {
		Versions []string `json:"versions"`
	}
	if err := json.Unmarshal(body, &versions); err != nil {
		return nil, fmt.Errorf("failed to parse versions response: %w", err)
	}
	return versions.Versions, nil
}

func (c *Client) compile(ctx context.Context, path string, payload interface{}) ([]verification.CompiledArtifact, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal compile request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create compile request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call compiler service %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read compile response: %w", err)
	}

	c.logger.Printf("compile %s returned status %d (%d bytes)", path, resp.StatusCode, len(body))

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("compiler service %s failed with status %d: %s", path, resp.StatusCode, string(body))
	}

	var parsed compileResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse compile response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("compilation failed: %s", parsed.Error)
	}

	artifacts := make([]verification.CompiledArtifact, 0, len(parsed.Contracts))
	for _, a := range parsed.Contracts {
		artifacts = append(artifacts, verification.CompiledArtifact{
			ContractName:     a.ContractName,
			FilePath:         a.FilePath,
			ABI:              a.ABI,
			CreationBytecode: a.CreationBytecode,
			RuntimeBytecode:  a.RuntimeBytecode,
			CompilerVersion:  a.CompilerVersion,
			Settings:         a.Settings,
		})
	}
	return artifacts, nil
}

// Copyright 2025 Blockscout
//
// Package celestia implements fetcher.ProviderForRange over a Celestia
// light node's JSON-RPC API. Each height yields one RawRecord per blob
// in the block, so the catch-up/realtime/retry machinery that drives
// EVM log streams drives blob ingestion unchanged.
package celestia

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/blockscout/indexing-core/internal/errorkind"
	"github.com/blockscout/indexing-core/internal/model"
)

// Blob is one namespaced data blob as the node reports it. The raw
// JSON rides in the record payload; the dablob indexer decodes it.
type Blob struct {
	Namespace    string `json:"namespace"`
	Data         string `json:"data"`
	Commitment   string `json:"commitment"`
	ShareVersion uint32 `json:"share_version"`
}

// Provider queries a Celestia node over JSON-RPC.
type Provider struct {
	rpcURL     string
	authToken  string
	streamKey  model.StreamKey
	namespaces []string
	httpClient *http.Client
	logger     *log.Logger
}

// Option configures a Provider at construction time.
type Option func(*Provider)

func WithLogger(logger *log.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// WithAuthToken attaches the node's bearer token to every request.
func WithAuthToken(token string) Option {
	return func(p *Provider) { p.authToken = token }
}

func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// New creates a Provider fetching blobs for the given namespaces.
func New(rpcURL string, streamKey model.StreamKey, namespaces []string, opts ...Option) *Provider {
	p := &Provider{
		rpcURL:     rpcURL,
		streamKey:  streamKey,
		namespaces: namespaces,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log.New(log.Writer(), "[Celestia] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type header struct {
	Header struct {
		Height string `json:"height"`
	} `json:"header"`
}

// Tip returns the node's local head height.
func (p *Provider) Tip(ctx context.Context) (uint64, error) {
	var head header
	if err := p.call(ctx, "header.LocalHead", nil, &head); err != nil {
		return 0, err
	}
	var tip uint64
	if _, err := fmt.Sscanf(head.Header.Height, "%d", &tip); err != nil {
		return 0, errorkind.Wrap(errorkind.Upstream, "parse head height", err)
	}
	return tip, nil
}

// FetchRange returns one RawRecord per blob at each height in
// [from, to]. A height with no blobs for the configured namespaces
// contributes nothing; the node reports that as a "blob not found"
// error, which is treated as an empty result rather than a failure.
func (p *Provider) FetchRange(ctx context.Context, from, to uint64) ([]model.RawRecord, error) {
	var records []model.RawRecord
	for height := from; height <= to; height++ {
		blobs, err := p.blobsAt(ctx, height)
		if err != nil {
			return nil, err
		}
		for i, blob := range blobs {
			payload, err := json.Marshal(blob)
			if err != nil {
				return nil, errorkind.Wrap(errorkind.Internal, "encode blob payload", err)
			}
			records = append(records, model.RawRecord{
				StreamKey:  p.streamKey,
				Height:     height,
				LogIndex:   uint32(i),
				SourceTxID: blob.Commitment,
				Payload:    payload,
			})
		}
	}
	return records, nil
}

func (p *Provider) blobsAt(ctx context.Context, height uint64) ([]Blob, error) {
	var blobs []Blob
	err := p.call(ctx, "blob.GetAll", []interface{}{height, p.namespaces}, &blobs)
	if err != nil {
		var rpcErr *rpcError
		if errors.As(err, &rpcErr) && rpcErr.Code == blobNotFoundCode {
			return nil, nil
		}
		return nil, err
	}
	return blobs, nil
}

// blobNotFoundCode is the node's "blob: not found" JSON-RPC error code.
const blobNotFoundCode = 1

func (p *Provider) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return errorkind.Wrap(errorkind.Internal, "encode rpc request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.rpcURL, bytes.NewReader(body))
	if err != nil {
		return errorkind.Wrap(errorkind.Internal, "create rpc request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.authToken)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errorkind.Wrap(errorkind.Upstream, fmt.Sprintf("call %s", method), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errorkind.Wrap(errorkind.Upstream, fmt.Sprintf("read %s response", method), err)
	}
	if resp.StatusCode != http.StatusOK {
		return errorkind.Wrap(errorkind.Upstream, fmt.Sprintf("call %s", method),
			fmt.Errorf("status %d: %s", resp.StatusCode, string(raw)))
	}

	var parsed rpcResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return errorkind.Wrap(errorkind.Upstream, fmt.Sprintf("parse %s response", method), err)
	}
	if parsed.Error != nil {
		return errorkind.Wrap(errorkind.Upstream, fmt.Sprintf("call %s", method), parsed.Error)
	}
	if out != nil && len(parsed.Result) > 0 && string(parsed.Result) != "null" {
		if err := json.Unmarshal(parsed.Result, out); err != nil {
			return errorkind.Wrap(errorkind.Upstream, fmt.Sprintf("decode %s result", method), err)
		}
	}
	return nil
}

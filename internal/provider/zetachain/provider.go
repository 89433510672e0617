// Copyright 2025 Blockscout
//
// Package zetachain implements fetcher.ProviderForRange over a
// ZetaChain node's HTTP API. Each block height maps to the set of CCTX
// snapshots whose status last changed at that height, so the same
// catch-up/realtime/retry machinery that drives EVM log streams drives
// CCTX ingestion unchanged.
package zetachain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/blockscout/indexing-core/internal/errorkind"
	"github.com/blockscout/indexing-core/internal/model"
)

// Provider queries a ZetaChain node's cross-chain-tx endpoints.
type Provider struct {
	baseURL    string
	streamKey  model.StreamKey
	httpClient *http.Client
	logger     *log.Logger
	pageLimit  int
}

// Option configures a Provider at construction time.
type Option func(*Provider)

func WithLogger(logger *log.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// WithPageLimit bounds how many CCTXs one upstream page may carry.
func WithPageLimit(n int) Option {
	return func(p *Provider) { p.pageLimit = n }
}

// New creates a Provider targeting a node's REST base URL.
func New(baseURL string, streamKey model.StreamKey, opts ...Option) *Provider {
	p := &Provider{
		baseURL:    baseURL,
		streamKey:  streamKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log.New(log.Writer(), "[ZetaChain] ", log.LstdFlags),
		pageLimit:  100,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type statusResponse struct {
	SyncInfo struct {
		LatestBlockHeight string `json:"latest_block_height"`
	} `json:"sync_info"`
}

type cctxPageResponse struct {
	CrossChainTxs []json.RawMessage `json:"CrossChainTx"`
	Pagination    struct {
		NextKey string `json:"next_key"`
	} `json:"pagination"`
}

// Tip returns the node's latest committed block height.
func (p *Provider) Tip(ctx context.Context) (uint64, error) {
	var status statusResponse
	if err := p.getJSON(ctx, "/status", nil, &status); err != nil {
		return 0, err
	}
	tip, err := strconv.ParseUint(status.SyncInfo.LatestBlockHeight, 10, 64)
	if err != nil {
		return 0, errorkind.Wrap(errorkind.Upstream, "parse latest block height", err)
	}
	return tip, nil
}

// FetchRange returns one RawRecord per CCTX snapshot whose status
// changed in [from, to], following upstream pagination until the range
// is exhausted. The snapshot JSON rides in the record payload; the
// cctx item factory decodes it.
func (p *Provider) FetchRange(ctx context.Context, from, to uint64) ([]model.RawRecord, error) {
	var records []model.RawRecord
	nextKey := ""
	for {
		query := url.Values{
			"from_height":      {strconv.FormatUint(from, 10)},
			"to_height":        {strconv.FormatUint(to, 10)},
			"pagination.limit": {strconv.Itoa(p.pageLimit)},
		}
		if nextKey != "" {
			query.Set("pagination.key", nextKey)
		}

		var page cctxPageResponse
		if err := p.getJSON(ctx, "/zeta-chain/crosschain/cctx", query, &page); err != nil {
			return nil, err
		}

		for _, raw := range page.CrossChainTxs {
			var probe struct {
				CctxStatus struct {
					LastUpdateTimestamp string `json:"lastUpdate_timestamp"`
				} `json:"cctx_status"`
				InboundParams struct {
					ObservedHash string `json:"observed_hash"`
				} `json:"inbound_params"`
			}
			if err := json.Unmarshal(raw, &probe); err != nil {
				p.logger.Printf("skipping unparseable cctx in range [%d,%d]: %v", from, to, err)
				continue
			}
			records = append(records, model.RawRecord{
				StreamKey:  p.streamKey,
				Height:     to,
				LogIndex:   uint32(len(records)),
				SourceTxID: probe.InboundParams.ObservedHash,
				Payload:    append([]byte(nil), raw...),
			})
		}

		if page.Pagination.NextKey == "" {
			return records, nil
		}
		nextKey = page.Pagination.NextKey
	}
}

func (p *Provider) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	target := p.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return errorkind.Wrap(errorkind.Internal, "create request", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errorkind.Wrap(errorkind.Upstream, fmt.Sprintf("query %s", path), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errorkind.Wrap(errorkind.Upstream, fmt.Sprintf("read %s response", path), err)
	}
	if resp.StatusCode != http.StatusOK {
		return errorkind.Wrap(errorkind.Upstream, fmt.Sprintf("query %s", path),
			fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errorkind.Wrap(errorkind.Upstream, fmt.Sprintf("parse %s response", path), err)
	}
	return nil
}

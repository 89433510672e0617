// Copyright 2025 Blockscout
//
// Package evmlogs implements fetcher.ProviderForRange over a real EVM
// node, the fetcher's reference provider for the log-indexer use case.
package evmlogs

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/blockscout/indexing-core/internal/errorkind"
	"github.com/blockscout/indexing-core/internal/model"
)

// Filter selects which logs a Provider returns, mirroring
// ethereum.FilterQuery's address/topics shape.
type Filter struct {
	Addresses []common.Address
	Topics    [][]common.Hash
}

// Provider wraps an ethclient.Client as a fetcher.ProviderForRange.
type Provider struct {
	client    *ethclient.Client
	streamKey model.StreamKey
	filter    Filter
}

// New dials url and returns a Provider scoped to filter.
func New(url string, streamKey model.StreamKey, filter Filter) (*Provider, error) {
	client, err := ethclient.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum: %w", err)
	}
	return &Provider{client: client, streamKey: streamKey, filter: filter}, nil
}

// Close releases the underlying RPC connection.
func (p *Provider) Close() { p.client.Close() }

// Tip returns the chain's current block number.
func (p *Provider) Tip(ctx context.Context) (uint64, error) {
	tip, err := p.client.BlockNumber(ctx)
	if err != nil {
		return 0, errorkind.Wrap(errorkind.Upstream, "query block number", err)
	}
	return tip, nil
}

// FetchRange returns log-derived RawRecords in [from, to], sorted by
// (block number, log index) — go-ethereum's FilterLogs already returns
// them in that order for a single contiguous range.
func (p *Provider) FetchRange(ctx context.Context, from, to uint64) ([]model.RawRecord, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: p.filter.Addresses,
		Topics:    p.filter.Topics,
	}

	logs, err := p.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, errorkind.Wrap(errorkind.Upstream, fmt.Sprintf("filter logs [%d,%d]", from, to), err)
	}

	records := make([]model.RawRecord, 0, len(logs))
	for _, l := range logs {
		records = append(records, logToRawRecord(p.streamKey, l))
	}
	return records, nil
}

func logToRawRecord(key model.StreamKey, l types.Log) model.RawRecord {
	payload := make([]byte, 0, len(l.Data)+len(l.Topics)*32)
	for _, t := range l.Topics {
		payload = append(payload, t.Bytes()...)
	}
	payload = append(payload, l.Data...)

	return model.RawRecord{
		StreamKey:  key,
		Height:     l.BlockNumber,
		LogIndex:   uint32(l.Index),
		SourceTxID: l.TxHash.Hex(),
		Payload:    payload,
	}
}

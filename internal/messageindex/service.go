// Copyright 2025 Blockscout
//
// Package messageindex serves the read side of the interchain message
// indexer: per-entity Get and List with cursor pagination, the
// stream's checkpoint, and the token lookup that labels transfers.
package messageindex

import (
	"context"
	"fmt"
	"strconv"

	"github.com/blockscout/indexing-core/internal/apiserver"
	"github.com/blockscout/indexing-core/internal/checkpoint"
	"github.com/blockscout/indexing-core/internal/database"
	"github.com/blockscout/indexing-core/internal/model"
)

// Service implements apiserver.StreamIndexer[model.ConsolidatedMessage]
// and apiserver.TokenLookup. Page tokens are the last returned message
// id in decimal form; an empty token starts from the beginning.
type Service struct {
	messages    *database.MessageRepository
	cctx        *database.CCTXRepository
	checkpoints *checkpoint.Store
}

var (
	_ apiserver.StreamIndexer[model.ConsolidatedMessage] = (*Service)(nil)
	_ apiserver.TokenLookup                              = (*Service)(nil)
)

func New(client *database.Client, store *checkpoint.Store) *Service {
	return &Service{
		messages:    database.NewMessageRepository(client),
		cctx:        database.NewCCTXRepository(client),
		checkpoints: store,
	}
}

// Get returns one message by id. The bridge is part of the composite
// key; callers without one get bridge 0.
func (s *Service) Get(ctx context.Context, id int64) (model.ConsolidatedMessage, bool, error) {
	return s.messages.GetMessage(ctx, id, 0)
}

// GetForBridge returns one message by its full composite key.
func (s *Service) GetForBridge(ctx context.Context, id int64, bridgeID int32) (model.ConsolidatedMessage, bool, error) {
	return s.messages.GetMessage(ctx, id, bridgeID)
}

// List implements apiserver.StreamIndexer.
func (s *Service) List(ctx context.Context, streamKey model.StreamKey, page apiserver.Page) ([]model.ConsolidatedMessage, apiserver.PageResult, error) {
	afterID := int64(0)
	if page.PageToken != "" {
		parsed, err := strconv.ParseInt(page.PageToken, 10, 64)
		if err != nil {
			return nil, apiserver.PageResult{}, fmt.Errorf("invalid page token %q: %w", page.PageToken, err)
		}
		afterID = parsed
	}

	limit := page.Clamp()
	messages, err := s.messages.ListMessages(ctx, streamKey.BridgeID, afterID, limit)
	if err != nil {
		return nil, apiserver.PageResult{}, err
	}

	var result apiserver.PageResult
	if len(messages) == limit {
		result.NextPageToken = strconv.FormatInt(messages[len(messages)-1].ID, 10)
	}
	return messages, result, nil
}

// GetCheckpoint implements apiserver.StreamIndexer.
func (s *Service) GetCheckpoint(ctx context.Context, streamKey model.StreamKey) (model.Checkpoint, error) {
	out, err := s.checkpoints.Load(ctx, []model.StreamKey{streamKey})
	if err != nil {
		return model.Checkpoint{}, err
	}
	return out[streamKey], nil
}

// GetTokenInfo implements apiserver.TokenLookup.
func (s *Service) GetTokenInfo(ctx context.Context, chainID int64, address string) (model.TokenInfo, bool, error) {
	return s.cctx.GetTokenInfo(ctx, chainID, address)
}

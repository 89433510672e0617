// Copyright 2025 Blockscout

package zetachain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockscout/indexing-core/internal/errorkind"
	"github.com/blockscout/indexing-core/internal/model"
)

func TestProvider_TipAndFetchRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/status":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"sync_info": map[string]string{"latest_block_height": "12345"},
			})
		case "/zeta-chain/crosschain/cctx":
			assert.Equal(t, "100", r.URL.Query().Get("from_height"))
			assert.Equal(t, "110", r.URL.Query().Get("to_height"))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"CrossChainTx": []map[string]interface{}{
					{
						"index":          "0x01",
						"cctx_status":    map[string]string{"lastUpdate_timestamp": "1700000000"},
						"inbound_params": map[string]string{"observed_hash": "0xabc"},
					},
					{
						"index":          "0x02",
						"cctx_status":    map[string]string{"lastUpdate_timestamp": "1700000001"},
						"inbound_params": map[string]string{"observed_hash": "0xdef"},
					},
				},
				"pagination": map[string]string{"next_key": ""},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	p := New(server.URL, model.StreamKey{Name: "zeta", BridgeID: 3})
	ctx := context.Background()

	tip, err := p.Tip(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(12345), tip)

	records, err := p.FetchRange(ctx, 100, 110)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "0xabc", records[0].SourceTxID)
	assert.Equal(t, uint32(0), records[0].LogIndex)
	assert.Equal(t, uint32(1), records[1].LogIndex)

	var decoded struct {
		Index string `json:"index"`
	}
	require.NoError(t, json.Unmarshal(records[1].Payload, &decoded))
	assert.Equal(t, "0x02", decoded.Index)
}

func TestProvider_FetchRangeFollowsPagination(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		next := ""
		if r.URL.Query().Get("pagination.key") == "" {
			next = "page2"
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"CrossChainTx": []map[string]interface{}{
				{
					"index":          "0x0" + r.URL.Query().Get("pagination.key"),
					"cctx_status":    map[string]string{"lastUpdate_timestamp": "1700000000"},
					"inbound_params": map[string]string{"observed_hash": "0xaa"},
				},
			},
			"pagination": map[string]string{"next_key": next},
		})
	}))
	defer server.Close()

	p := New(server.URL, model.StreamKey{Name: "zeta"})
	records, err := p.FetchRange(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, records, 2)
}

func TestProvider_UpstreamErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := New(server.URL, model.StreamKey{Name: "zeta"})
	_, err := p.FetchRange(context.Background(), 1, 2)
	require.Error(t, err)
	assert.True(t, errorkind.Retryable(err))
}

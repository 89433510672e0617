// Copyright 2025 Blockscout

package celestia

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockscout/indexing-core/internal/model"
)

func rpcServer(t *testing.T, handler func(method string, params []interface{}) (interface{}, *rpcError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		result, rpcErr := handler(req.Method, req.Params)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestProvider_Tip(t *testing.T) {
	server := rpcServer(t, func(method string, params []interface{}) (interface{}, *rpcError) {
		assert.Equal(t, "header.LocalHead", method)
		return map[string]interface{}{"header": map[string]string{"height": "4242"}}, nil
	})
	defer server.Close()

	p := New(server.URL, model.StreamKey{Name: "celestia"}, []string{"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAElPTg=="})
	tip, err := p.Tip(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(4242), tip)
}

func TestProvider_FetchRangeEmitsPerBlobRecords(t *testing.T) {
	server := rpcServer(t, func(method string, params []interface{}) (interface{}, *rpcError) {
		require.Equal(t, "blob.GetAll", method)
		height := params[0].(float64)
		if height == 11 {
			return nil, &rpcError{Code: blobNotFoundCode, Message: "blob: not found"}
		}
		return []map[string]interface{}{
			{"namespace": "ns1", "data": "aGVsbG8=", "commitment": "c1", "share_version": 0},
			{"namespace": "ns1", "data": "d29ybGQ=", "commitment": "c2", "share_version": 0},
		}, nil
	})
	defer server.Close()

	p := New(server.URL, model.StreamKey{Name: "celestia"}, []string{"ns1"})
	records, err := p.FetchRange(context.Background(), 10, 11)
	require.NoError(t, err)
	require.Len(t, records, 2, "height 11 has no blobs and contributes nothing")

	assert.Equal(t, uint64(10), records[0].Height)
	assert.Equal(t, uint32(0), records[0].LogIndex)
	assert.Equal(t, "c1", records[0].SourceTxID)
	assert.Equal(t, uint32(1), records[1].LogIndex)

	var blob Blob
	require.NoError(t, json.Unmarshal(records[1].Payload, &blob))
	assert.Equal(t, "d29ybGQ=", blob.Data)
}

func TestProvider_SurfacesOtherRPCErrors(t *testing.T) {
	server := rpcServer(t, func(method string, params []interface{}) (interface{}, *rpcError) {
		return nil, &rpcError{Code: -32000, Message: "node syncing"}
	})
	defer server.Close()

	p := New(server.URL, model.StreamKey{Name: "celestia"}, []string{"ns1"})
	_, err := p.FetchRange(context.Background(), 1, 1)
	require.Error(t, err)
}

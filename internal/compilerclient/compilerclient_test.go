// Copyright 2025 Blockscout

package compilerclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockscout/indexing-core/internal/verification"
)

func TestClient_CompileMultiPartParsesArtifacts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/compile/multi-part", r.URL.Path)
		var req multiPartRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "0.8.20", req.CompilerVersion)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(compileResponse{
			Contracts: []artifactDTO{{
				ContractName:     "Token",
				RuntimeBytecode:  []byte{0x60, 0x80},
				CreationBytecode: []byte{0x60, 0x80, 0x60, 0x40},
				CompilerVersion:  "0.8.20",
			}},
		})
	}))
	defer server.Close()

	client := New(server.URL)
	artifacts, err := client.CompileMultiPart(context.Background(), &verification.MultiPartContent{
		Sources:         map[string]string{"Token.sol": "contract Token {}"},
		CompilerVersion: "0.8.20",
	})
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, "Token", artifacts[0].ContractName)
}

func TestClient_CompileReturnsCompilationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(compileResponse{Error: "parser error: unexpected token"})
	}))
	defer server.Close()

	client := New(server.URL)
	_, err := client.CompileStandardJSON(context.Background(), &verification.StandardJSONContent{CompilerVersion: "0.8.20"})
	assert.ErrorContains(t, err, "parser error")
}

func TestClient_ListVersions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/versions", r.URL.Path)
		json.NewEncoder(w).Encode(map[string][]string{"versions": {"0.8.19", "0.8.20"}})
	}))
	defer server.Close()

	client := New(server.URL)
	versions, err := client.ListVersions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"0.8.19", "0.8.20"}, versions)
}

func TestClient_NonOKStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	client := New(server.URL)
	_, err := client.CompileMultiPart(context.Background(), &verification.MultiPartContent{CompilerVersion: "0.8.20"})
	assert.ErrorContains(t, err, "boom")
}

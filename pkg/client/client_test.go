package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mu-kernel/mukernel/pkg/kernel"
	"github.com/mu-kernel/mukernel/pkg/model"
)

func TestStatusDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/status", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"uptime_seconds": 12.5,
			"node_count":     3,
			"edge_count":     2,
			"schema_version": 1,
			"ws_connections": 0,
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, status.NodeCount)
	assert.Equal(t, 2, status.EdgeCount)
}

func TestDoSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"node_ids": []string{}})
	}))
	defer srv.Close()

	c := New(srv.URL, "s3cret")
	_, err := c.Impact(context.Background(), NodeRef{Node: model.NodeID("x")})
	require.NoError(t, err)
	assert.Equal(t, "Bearer s3cret", gotAuth)
}

func TestDoSurfacesServerErrorAsConfigError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "bad muql"})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.Query(context.Background(), "not valid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad muql")
	assert.ErrorIs(t, err, kernel.ErrConfig)
}

func TestDoSurfacesUnreachableDaemonAsUpstream(t *testing.T) {
	c := New("http://127.0.0.1:1", "")
	_, err := c.Status(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, kernel.ErrUpstream)
}

func TestImpactDecodesNodeIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req NodeRef
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, model.NodeID("fn:main"), req.Node)
		json.NewEncoder(w).Encode(map[string]any{"node_ids": []string{"fn:a", "fn:b"}})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	ids, err := c.Impact(context.Background(), NodeRef{Node: model.NodeID("fn:main")})
	require.NoError(t, err)
	assert.Equal(t, []model.NodeID{"fn:a", "fn:b"}, ids)
}

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/services"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/tenant"
)

func TestExtractDocumentUUID(t *testing.T) {
	tests := []struct {
		name string
		uri  string
		want string
	}{
		{name: "valid uri", uri: "vcon://documents/abc-123", want: "abc-123"},
		{name: "wrong scheme", uri: "http://documents/abc", want: ""},
		{name: "missing uuid", uri: "vcon://documents/", want: ""},
		{name: "nested path", uri: "vcon://documents/abc/dialog", want: ""},
		{name: "other resource", uri: "vcon://tenant", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractDocumentUUID(tt.uri))
		})
	}
}

func readRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestServer_handleDocumentResource(t *testing.T) {
	ctx := context.Background()
	docs := &mockDocumentService{
		records: map[string]*domain.DocumentRecord{
			"shared": {
				Document: domain.Document{ID: 1, UUID: "shared", Subject: "Outage report"},
				Dialog:   []domain.DialogTurn{{Index: 0, Type: "text", Body: "network is down"}},
			},
			"owned": {
				Document: domain.Document{ID: 2, UUID: "owned", TenantID: domain.StringPtr("acme")},
			},
		},
	}

	t.Run("returns a visible document as vcon json", func(t *testing.T) {
		server := newTestServer(t, &Ports{Search: &mockSearchService{}, Document: docs}, Options{})

		res, err := server.handleDocumentResource(ctx, readRequest("vcon://documents/shared"))
		require.NoError(t, err)
		require.Len(t, res.Contents, 1)
		assert.Equal(t, "application/json", res.Contents[0].MIMEType)

		var got map[string]any
		require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &got))
		assert.Equal(t, "shared", got["uuid"])
		assert.Equal(t, "Outage report", got["subject"])
		assert.Len(t, got["dialog"], 1)
	})

	t.Run("other tenants' documents are not found", func(t *testing.T) {
		server := newTestServer(t, &Ports{Search: &mockSearchService{}, Document: docs}, Options{})

		_, err := server.handleDocumentResource(ctx, readRequest("vcon://documents/owned"))
		require.Error(t, err)
	})

	t.Run("owning tenant can read", func(t *testing.T) {
		server := newTestServer(t, &Ports{Search: &mockSearchService{}, Document: docs}, Options{
			Claims: &tenant.Claims{TenantID: "acme"},
		})

		res, err := server.handleDocumentResource(ctx, readRequest("vcon://documents/owned"))
		require.NoError(t, err)
		assert.Contains(t, res.Contents[0].Text, `"tenant_id": "acme"`)
	})

	t.Run("malformed uri is not found", func(t *testing.T) {
		server := newTestServer(t, &Ports{Search: &mockSearchService{}, Document: docs}, Options{})

		_, err := server.handleDocumentResource(ctx, readRequest("vcon://documents/"))
		require.Error(t, err)
	})

	t.Run("store errors are wrapped", func(t *testing.T) {
		boom := errors.New("boom")
		server := newTestServer(t, &Ports{Search: &mockSearchService{}, Document: &mockDocumentService{err: boom}}, Options{})

		_, err := server.handleDocumentResource(ctx, readRequest("vcon://documents/x"))
		assert.ErrorIs(t, err, boom)
	})
}

func TestServer_handleTenantResource(t *testing.T) {
	server := newTestServer(t, &Ports{
		Search: &mockSearchService{},
		Tenant: services.NewTenantService(),
	}, Options{Claims: &tenant.Claims{TenantID: "acme"}})

	res, err := server.handleTenantResource(context.Background(), readRequest("vcon://tenant"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"tenant_id":"acme","source":"claim"}`, res.Contents[0].Text)
}

package mcp

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/services"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/tenant"
)

func TestNewServer(t *testing.T) {
	t.Run("nil search service returns error", func(t *testing.T) {
		ports := &Ports{}
		server, err := NewServer(ports, Options{})
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingSearchService)
	})

	t.Run("nil ports returns error", func(t *testing.T) {
		_, err := NewServer(nil, Options{})
		assert.ErrorIs(t, err, ErrMissingSearchService)
	})

	t.Run("valid ports creates server", func(t *testing.T) {
		ports := &Ports{
			Search: &mockSearchService{},
		}
		server, err := NewServer(ports, Options{})
		require.NoError(t, err)
		assert.NotNil(t, server)
		assert.NotNil(t, server.session)
	})
}

func TestPorts_Validate(t *testing.T) {
	t.Run("nil search service returns error", func(t *testing.T) {
		ports := &Ports{}
		err := ports.Validate()
		assert.ErrorIs(t, err, ErrMissingSearchService)
	})

	t.Run("search only is valid", func(t *testing.T) {
		ports := &Ports{
			Search: &mockSearchService{},
		}
		err := ports.Validate()
		assert.NoError(t, err)
	})

	t.Run("all ports is valid", func(t *testing.T) {
		ports := &Ports{
			Search:   &mockSearchService{},
			Tenant:   services.NewTenantService(),
			Tags:     &mockTagIndex{},
			Document: &mockDocumentService{},
		}
		err := ports.Validate()
		assert.NoError(t, err)
	})
}

func TestServer_bind(t *testing.T) {
	t.Run("no identity resolves to no tenant", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}}, Options{})
		require.NoError(t, err)

		ctx := server.bind(t.Context())
		assert.Equal(t, domain.NoTenant, tenant.Resolve(ctx))
		assert.False(t, tenant.IsTrusted(ctx))
	})

	t.Run("claims win over the session", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}}, Options{
			Claims: &tenant.Claims{Subject: "svc", TenantID: "acme"},
		})
		require.NoError(t, err)
		server.session.Set("other")

		scope := tenant.Resolve(server.bind(t.Context()))
		assert.Equal(t, "acme", scope.ID)
		assert.Equal(t, domain.TenantFromClaim, scope.Source)
	})

	t.Run("trusted flag is attached", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}}, Options{Trusted: true})
		require.NoError(t, err)
		assert.True(t, tenant.IsTrusted(server.bind(t.Context())))
	})
}

func TestServer_forRequest(t *testing.T) {
	const secret = "s3cret"
	base, err := NewServer(&Ports{Search: &mockSearchService{}}, Options{
		Claims:      &tenant.Claims{TenantID: "default"},
		TokenSecret: secret,
	})
	require.NoError(t, err)

	t.Run("valid bearer token sets claims", func(t *testing.T) {
		token, err := tenant.SignToken("alice", "acme", secret)
		require.NoError(t, err)

		req := httptest.NewRequest("POST", "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		sub, err := base.forRequest(req)
		require.NoError(t, err)
		require.NotNil(t, sub.claims)
		assert.Equal(t, "acme", sub.claims.TenantID)
	})

	t.Run("invalid bearer token is rejected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")

		_, err := base.forRequest(req)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("no header inherits server claims", func(t *testing.T) {
		sub, err := base.forRequest(httptest.NewRequest("POST", "/", nil))
		require.NoError(t, err)
		assert.Equal(t, "default", sub.claims.TenantID)
	})

	t.Run("each session gets its own tenant context", func(t *testing.T) {
		a, err := base.forRequest(httptest.NewRequest("POST", "/", nil))
		require.NoError(t, err)
		b, err := base.forRequest(httptest.NewRequest("POST", "/", nil))
		require.NoError(t, err)

		a.session.Set("one")
		assert.Empty(t, b.session.Get())
		assert.Empty(t, base.session.Get())
	})
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{name: "bearer", header: "Bearer abc", want: "abc", ok: true},
		{name: "lowercase scheme", header: "bearer abc", want: "abc", ok: true},
		{name: "missing", header: "", ok: false},
		{name: "basic", header: "Basic abc", ok: false},
		{name: "scheme only", header: "Bearer ", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			got, ok := bearerToken(req)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

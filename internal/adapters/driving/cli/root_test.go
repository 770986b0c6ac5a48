package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/tenant"
)

// execute runs the root command with args and returns combined output.
func execute(args ...string) (string, error) {
	return executeWithInput("", args...)
}

// executeWithInput is execute with input on stdin.
func executeWithInput(input string, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(bytes.NewBufferString(input))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	for _, name := range []string{"verbose", "config-dir", "token", "tenant"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"search", "tags", "backfill", "embed", "document", "mcp", "version"} {
		assert.True(t, names[want], want)
	}
}

func TestCallerContext(t *testing.T) {
	const secret = "test-secret"

	t.Run("no identity resolves to no tenant", func(t *testing.T) {
		_, cleanup := setupTestServices()
		defer cleanup()

		ctx, err := callerContext(context.Background())
		require.NoError(t, err)
		assert.Equal(t, domain.NoTenant, tenant.Resolve(ctx))
	})

	t.Run("token claims set the tenant", func(t *testing.T) {
		_, cleanup := setupTestServices()
		defer cleanup()
		settings.Tenant.JWTSecret = secret
		signed, err := tenant.SignToken("alice", "acme", secret)
		require.NoError(t, err)
		token = signed

		ctx, err := callerContext(context.Background())
		require.NoError(t, err)
		scope := tenant.Resolve(ctx)
		assert.Equal(t, "acme", scope.ID)
		assert.Equal(t, domain.TenantFromClaim, scope.Source)
	})

	t.Run("token without a configured secret is rejected", func(t *testing.T) {
		_, cleanup := setupTestServices()
		defer cleanup()
		token = "anything"

		_, err := callerContext(context.Background())
		assert.ErrorContains(t, err, "jwt_secret")
	})

	t.Run("tampered token is rejected", func(t *testing.T) {
		_, cleanup := setupTestServices()
		defer cleanup()
		settings.Tenant.JWTSecret = secret
		signed, err := tenant.SignToken("alice", "acme", "other-secret")
		require.NoError(t, err)
		token = signed

		_, err = callerContext(context.Background())
		assert.Error(t, err)
	})

	t.Run("untrusted callers cannot pick a tenant", func(t *testing.T) {
		_, cleanup := setupTestServices()
		defer cleanup()
		tenantID = "acme"

		_, err := callerContext(context.Background())
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("trusted callers can pick a tenant", func(t *testing.T) {
		_, cleanup := setupTestServices()
		defer cleanup()
		settings.Tenant.Trusted = true
		tenantID = "acme"

		ctx, err := callerContext(context.Background())
		require.NoError(t, err)
		scope := tenant.Resolve(ctx)
		assert.Equal(t, "acme", scope.ID)
		assert.Equal(t, domain.TenantFromSession, scope.Source)
	})
}

// Package cli provides the vconsearch command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driven"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driving"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/logger"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/tenant"
)

// version is set at build time with -ldflags "-X .../cli.version=...".
var version = "dev"

// Persistent flags.
var (
	verbose   bool
	configDir string
	token     string
	tenantID  string
)

// Services wired by setupServices, or injected by tests.
var (
	searchService   driving.SearchService
	documentService driving.DocumentService
	tagService      driving.TagIndexService
	tenantService   driving.TenantService
	vectorService   driving.VectorService
	backfillService driving.BackfillService
	embeddingWorker driving.EmbeddingWorker
	scheduler       driving.Scheduler
	queryEmbedder   driven.EmbeddingProducer
	settings        = domain.DefaultSettings()

	// servicesInjected skips wiring when tests have set the services.
	servicesInjected bool
	current          *app
)

// annotationNoServices marks commands that run without the service graph.
const annotationNoServices = "no-services"

var rootCmd = &cobra.Command{
	Use:   "vconsearch",
	Short: "Search and tag vCon conversations",
	Long: `vconsearch indexes vCon conversation documents for keyword, semantic,
hybrid and tag search, isolated per tenant.

Configuration is read from ~/.vconsearch/config.toml (see --config-dir).`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setupServices,
	PersistentPostRunE: teardownServices,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.vconsearch)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "identity token (JWT) carrying a tenant_id claim")
	rootCmd.PersistentFlags().StringVar(&tenantID, "tenant", "", "session tenant for trusted callers")
}

// Execute runs the root command. Cancelling ctx interrupts long-running
// commands such as backfills and the MCP server.
func Execute(ctx context.Context) error {
	defer logger.Sync()
	return rootCmd.ExecuteContext(ctx)
}

func setupServices(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if servicesInjected || cmd.Annotations[annotationNoServices] == "true" {
		return nil
	}

	a, err := newApp(cmd.Context(), configDir)
	if err != nil {
		return err
	}
	current = a
	a.install()
	return nil
}

func teardownServices(_ *cobra.Command, _ []string) error {
	if current == nil {
		return nil
	}
	err := current.Close()
	current = nil
	return err
}

// callerContext attaches the caller's identity: the --token claims, a
// session, the trusted flag and the --tenant session value.
func callerContext(ctx context.Context) (context.Context, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	claims, err := claimsFromToken()
	if err != nil {
		return nil, err
	}
	if claims != nil {
		ctx = tenant.WithClaims(ctx, claims)
	}

	ctx = tenant.WithSession(ctx, tenant.NewSession())
	if settings.Tenant.Trusted {
		ctx = tenant.WithTrusted(ctx)
	}

	if tenantID != "" {
		if tenantService == nil {
			return nil, errors.New("tenant service not configured")
		}
		if err := tenantService.SetTenantContext(ctx, tenantID); err != nil {
			return nil, fmt.Errorf("setting tenant: %w", err)
		}
	}
	return ctx, nil
}

// claimsFromToken returns the verified --token claims, or nil.
func claimsFromToken() (*tenant.Claims, error) {
	if token == "" {
		return nil, nil
	}
	if settings.Tenant.JWTSecret == "" {
		return nil, errors.New("--token requires tenant.jwt_secret in the configuration")
	}
	claims, err := tenant.ParseToken(token, settings.Tenant.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("verifying token: %w", err)
	}
	return claims, nil
}

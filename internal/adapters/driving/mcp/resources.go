package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/domain"
	"github.com/vcon-dev/vcon-mcp-sub003/internal/vcon"
)

const (
	// uriScheme is the custom URI scheme for vconsearch resources.
	uriScheme = "vcon://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	if s.ports.Tenant != nil {
		s.server.AddResource(&mcp.Resource{
			URI:         uriScheme + "tenant",
			Name:        "tenant",
			Description: "Tenant this session is scoped to",
			MIMEType:    "application/json",
		}, s.handleTenantResource)
	}

	if s.ports.Document != nil {
		s.server.AddResourceTemplate(&mcp.ResourceTemplate{
			URITemplate: uriScheme + "documents/{uuid}",
			Name:        "vcon-document",
			Description: "A vCon document with its parties, dialog, analysis and attachments",
			MIMEType:    "application/json",
		}, s.handleDocumentResource)
	}
}

// handleTenantResource returns the resolved tenant scope.
func (s *Server) handleTenantResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	return jsonResource(req.Params.URI, tenantOutput(s.ports.Tenant.CurrentTenant(s.bind(ctx))))
}

// handleDocumentResource returns one visible vCon document.
func (s *Server) handleDocumentResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// Extract uuid from URI: vcon://documents/{uuid}
	uuid := extractDocumentUUID(req.Params.URI)
	if uuid == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	rec, err := s.ports.Document.GetByUUID(s.bind(ctx), uuid)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}

	return jsonResource(req.Params.URI, vcon.FromRecord(rec))
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractDocumentUUID extracts the uuid from a URI like vcon://documents/{uuid}.
func extractDocumentUUID(uri string) string {
	const prefix = uriScheme + "documents/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}

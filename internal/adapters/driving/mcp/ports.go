package mcp

import (
	"github.com/vcon-dev/vcon-mcp-sub003/internal/core/ports/driving"
)

// Ports are the core services behind the MCP tools. Only Search is
// required; a nil Tenant, Tags or Document drops the tools and resources
// that need it.
type Ports struct {
	Search   driving.SearchService
	Tenant   driving.TenantService
	Tags     driving.TagIndexService
	Document driving.DocumentService
}

func (p *Ports) Validate() error {
	if p == nil || p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}

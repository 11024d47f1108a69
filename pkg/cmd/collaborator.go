package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/flowgrid/flowgrid/pkg/collaborator"
	"github.com/flowgrid/flowgrid/pkg/registry"
)

// NewAgentClient creates the agent service client.
func NewAgentClient(logger *slog.Logger, agentServiceURL string) collaborator.AgentClient {
	return collaborator.NewHTTPAgentClient(logger, agentServiceURL)
}

// NewToolRegistry builds a registry over the configured MCP server URLs
// ("id=url" pairs, comma separated) and performs the initial refresh. A
// refresh failure is logged, not fatal; the registry starts empty and can
// be refreshed later.
func NewToolRegistry(ctx context.Context, logger *slog.Logger, mcpServers string) *registry.Registry {
	catalogs := make([]collaborator.ToolCatalog, 0)

	for _, entry := range strings.Split(mcpServers, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		id, url, found := strings.Cut(entry, "=")
		if !found {
			url = id
			id = "mcp"
		}

		catalogs = append(catalogs, collaborator.NewHTTPToolCatalog(id, url))
	}

	reg := registry.NewRegistry(logger, catalogs...)

	if len(catalogs) > 0 {
		err := reg.Refresh(ctx)
		if err != nil {
			logger.WarnContext(ctx, "initial tool registry refresh failed", "error", err)
		}
	}

	return reg
}

// Package registry aggregates tool descriptors from the configured MCP
// catalogs and validates invocation parameters against each tool's JSON
// schema before they reach the tool service.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/flowgrid/flowgrid/pkg/collaborator"
)

// ErrToolNotFound is returned when no catalog advertises the requested tool.
var ErrToolNotFound = fmt.Errorf("tool not found")

// Registry caches tool descriptors from one or more catalogs.
type Registry struct {
	catalogs []collaborator.ToolCatalog
	logger   *slog.Logger

	mu    sync.RWMutex
	tools map[string]collaborator.ToolDescriptor
}

// NewRegistry creates a registry over the given catalogs. Call Refresh
// before first use.
func NewRegistry(logger *slog.Logger, catalogs ...collaborator.ToolCatalog) *Registry {
	return &Registry{
		catalogs: catalogs,
		logger:   logger.With("module", "registry"),
		tools:    make(map[string]collaborator.ToolDescriptor),
	}
}

// Refresh re-fetches tool listings from every catalog. A catalog failure
// is logged and skipped so one unreachable server does not empty the
// whole registry.
func (r *Registry) Refresh(ctx context.Context) error {
	tools := make(map[string]collaborator.ToolDescriptor)
	failures := 0

	for _, catalog := range r.catalogs {
		listing, err := catalog.ListTools(ctx)
		if err != nil {
			r.logger.WarnContext(ctx, "tool catalog refresh failed", "error", err)

			failures++

			continue
		}

		for _, tool := range listing {
			tools[tool.Name] = tool
		}
	}

	if failures == len(r.catalogs) && len(r.catalogs) > 0 {
		return fmt.Errorf("all %d tool catalogs failed to refresh", failures)
	}

	r.mu.Lock()
	r.tools = tools
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "tool registry refreshed", "tools", len(tools))

	return nil
}

// Get returns the descriptor for the named tool.
func (r *Registry) Get(name string) (collaborator.ToolDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	if !ok {
		return collaborator.ToolDescriptor{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	return tool, nil
}

// List returns all known descriptors.
func (r *Registry) List() []collaborator.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]collaborator.ToolDescriptor, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}

	return tools
}

// ValidateParameters checks parameters against the tool's JSON schema.
// Tools without a declared schema accept anything.
func (r *Registry) ValidateParameters(name string, parameters map[string]any) error {
	tool, err := r.Get(name)
	if err != nil {
		return err
	}

	if len(tool.Parameters) == 0 {
		return nil
	}

	schemaJSON, err := json.Marshal(tool.Parameters)
	if err != nil {
		return fmt.Errorf("failed to marshal schema for tool %s: %w", name, err)
	}

	if parameters == nil {
		parameters = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(parameters),
	)
	if err != nil {
		return fmt.Errorf("failed to validate parameters for tool %s: %w", name, err)
	}

	if !result.Valid() {
		return fmt.Errorf("invalid parameters for tool %s: %v", name, result.Errors())
	}

	return nil
}

// HealthCheck verifies at least one catalog is reachable.
func (r *Registry) HealthCheck(ctx context.Context) error {
	if len(r.catalogs) == 0 {
		return nil
	}

	var lastErr error

	for _, catalog := range r.catalogs {
		_, err := catalog.ListTools(ctx)
		if err == nil {
			return nil
		}

		lastErr = err
	}

	return fmt.Errorf("no tool catalog reachable: %w", lastErr)
}

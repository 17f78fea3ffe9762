package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rcourtman/proxmox-mcp/internal/mcp"
)

// ErrDuplicateTool is returned when a tool name is registered twice.
var ErrDuplicateTool = errors.New("tool already registered")

// HandlerFunc executes a tool with validated arguments and returns a
// JSON-serializable result.
type HandlerFunc func(ctx context.Context, args Args) (interface{}, error)

// Definition is one entry in the tool catalog.
type Definition struct {
	Name        string
	Description string
	Args        []ArgSpec
	Handler     HandlerFunc
}

// Registry is the tool catalog. It is populated once at startup and read
// concurrently afterwards, so no locking is needed.
type Registry struct {
	byName map[string]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Definition)}
}

// Register adds a tool to the catalog. Registering the same name twice is
// a programming error and fails loudly.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool definition missing name")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %s missing handler", def.Name)
	}
	if _, exists := r.byName[def.Name]; exists {
		return fmt.Errorf("tool %s: %w", def.Name, ErrDuplicateTool)
	}
	d := def
	r.byName[def.Name] = &d
	return nil
}

// MustRegister is Register for startup wiring, where a duplicate means a
// broken build.
func (r *Registry) MustRegister(def Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Lookup returns the named tool, or nil when unknown.
func (r *Registry) Lookup(name string) *Definition {
	return r.byName[name]
}

// Tools renders the catalog as MCP tool descriptors in name order, so
// repeated list calls produce identical output.
func (r *Registry) Tools() []mcp.Tool {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]mcp.Tool, 0, len(names))
	for _, name := range names {
		def := r.byName[name]
		out = append(out, mcp.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: schema(def.Args),
		})
	}
	return out
}

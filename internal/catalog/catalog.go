// ABOUTME: Flattened, collision-safe view of every pooled backend's tools
// ABOUTME: Qualifies colliding names by backend identity and routes them back

package catalog

import (
	"encoding/json"
	"sort"

	"github.com/2389/toolgate/internal/llm"
	"github.com/2389/toolgate/internal/transport"
)

// Descriptor is one routable tool in the unified catalog.
type Descriptor struct {
	// Qualified is the catalog-wide unique name exposed to the model.
	Qualified string
	// Original is the backend-local tool name used for dispatch.
	Original string
	// Server is the owning backend.
	Server string

	Description string
	InputSchema json.RawMessage
}

// Catalog is an immutable snapshot of the unified tool table. The pool
// rebuilds it whole whenever its membership changes materially; per-request
// lookups never re-query backends.
type Catalog struct {
	byQualified map[string]Descriptor
	ordered     []Descriptor
}

// Build flattens the per-backend tool caches into one catalog. A tool name
// exposed by more than one backend is qualified with a backend suffix for
// every owner, so the result does not depend on map iteration order: unique
// names stay bare, colliding names become name__backend.
func Build(toolsByServer map[string][]transport.ToolDef) *Catalog {
	owners := make(map[string]int)
	servers := make([]string, 0, len(toolsByServer))
	for server, tools := range toolsByServer {
		servers = append(servers, server)
		seen := make(map[string]bool, len(tools))
		for _, tool := range tools {
			if seen[tool.Name] {
				continue
			}
			seen[tool.Name] = true
			owners[tool.Name]++
		}
	}
	sort.Strings(servers)

	cat := &Catalog{byQualified: make(map[string]Descriptor)}
	for _, server := range servers {
		seen := make(map[string]bool)
		for _, tool := range toolsByServer[server] {
			if seen[tool.Name] {
				continue
			}
			seen[tool.Name] = true

			qualified := tool.Name
			if owners[tool.Name] > 1 {
				qualified = tool.Name + "__" + server
			}
			desc := Descriptor{
				Qualified:   qualified,
				Original:    tool.Name,
				Server:      server,
				Description: tool.Description,
				InputSchema: tool.InputSchema,
			}
			cat.byQualified[qualified] = desc
			cat.ordered = append(cat.ordered, desc)
		}
	}
	return cat
}

// Resolve maps a qualified name back to its owning backend and original name.
func (c *Catalog) Resolve(qualified string) (Descriptor, bool) {
	desc, ok := c.byQualified[qualified]
	return desc, ok
}

// Descriptors returns every tool in deterministic (server, declaration) order.
func (c *Catalog) Descriptors() []Descriptor {
	out := make([]Descriptor, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Len returns the number of routable tools.
func (c *Catalog) Len() int {
	return len(c.ordered)
}

// ModelTools exports the catalog in the function-call shape the model
// boundary consumes: one {type:"function", ...} entry per qualified tool.
func (c *Catalog) ModelTools() []llm.Tool {
	tools := make([]llm.Tool, 0, len(c.ordered))
	for _, desc := range c.ordered {
		params := desc.InputSchema
		if len(params) == 0 {
			params = json.RawMessage(`{"type":"object"}`)
		}
		tools = append(tools, llm.Tool{
			Type: "function",
			Function: llm.Function{
				Name:        desc.Qualified,
				Description: desc.Description,
				Parameters:  params,
			},
		})
	}
	return tools
}

// ABOUTME: Backend registry loading from the JSON mcpServers/servers formats
// ABOUTME: Produces the immutable per-backend transport configuration table

package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/2389/toolgate/internal/errkind"
)

// Transport kinds accepted in the registry.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// Server describes one backend: its name, transport kind, and the parameters
// needed to reach it. Immutable after load.
type Server struct {
	Name    string            `json:"name"`
	Type    string            `json:"type"`
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	URL     string            `json:"url,omitempty"`
}

// Validate checks that the server entry is complete for its transport kind.
func (s Server) Validate() error {
	if s.Name == "" {
		return errkind.New(errkind.Validation, "server name is required")
	}
	switch s.Type {
	case TransportStdio:
		if s.Command == "" {
			return errkind.Newf(errkind.Validation, "server %q: command is required for stdio transport", s.Name)
		}
	case TransportSSE:
		if s.URL == "" {
			return errkind.Newf(errkind.Validation, "server %q: url is required for sse transport", s.Name)
		}
	default:
		return errkind.Newf(errkind.Validation, "server %q: unsupported transport type %q", s.Name, s.Type)
	}
	return nil
}

// registryFile is the on-disk shape. Either MCPServers (map keyed by name) or
// Servers (array with explicit names) is populated; both forms are accepted.
type registryFile struct {
	MCPServers map[string]Server `json:"mcpServers"`
	Servers    []Server          `json:"servers"`
}

// LoadRegistry reads the registry file at path and returns the backend table.
func LoadRegistry(path string) (map[string]Server, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry file: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry parses registry JSON in either accepted form. Every entry is
// validated; the first invalid entry fails the whole load.
func ParseRegistry(data []byte) (map[string]Server, error) {
	var file registryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, errkind.Wrap(errkind.Validation, "parsing registry", err)
	}

	servers := make(map[string]Server)

	for name, srv := range file.MCPServers {
		srv.Name = name
		if err := srv.Validate(); err != nil {
			return nil, err
		}
		servers[name] = srv
	}

	for _, srv := range file.Servers {
		if err := srv.Validate(); err != nil {
			return nil, err
		}
		if _, exists := servers[srv.Name]; exists {
			return nil, errkind.Newf(errkind.Validation, "duplicate server name %q", srv.Name)
		}
		servers[srv.Name] = srv
	}

	if len(servers) == 0 {
		return nil, errkind.New(errkind.Validation, "registry defines no servers")
	}

	return servers, nil
}

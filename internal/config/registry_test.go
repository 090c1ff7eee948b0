// ABOUTME: Tests for backend registry parsing in both accepted JSON forms.
// ABOUTME: Covers mcpServers map form, servers array form, and validation errors.

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/toolgate/internal/errkind"
)

func TestParseRegistry(t *testing.T) {
	t.Run("mcpServers map form", func(t *testing.T) {
		servers, err := ParseRegistry([]byte(`{
			"mcpServers": {
				"calc": {"type": "stdio", "command": "calc-server", "args": ["--fast"], "env": {"DEBUG": "1"}},
				"search": {"type": "sse", "url": "http://localhost:9000/sse"}
			}
		}`))
		require.NoError(t, err)
		require.Len(t, servers, 2)

		calc := servers["calc"]
		assert.Equal(t, "calc", calc.Name)
		assert.Equal(t, TransportStdio, calc.Type)
		assert.Equal(t, "calc-server", calc.Command)
		assert.Equal(t, []string{"--fast"}, calc.Args)
		assert.Equal(t, "1", calc.Env["DEBUG"])

		search := servers["search"]
		assert.Equal(t, TransportSSE, search.Type)
		assert.Equal(t, "http://localhost:9000/sse", search.URL)
	})

	t.Run("servers array form", func(t *testing.T) {
		servers, err := ParseRegistry([]byte(`{
			"servers": [
				{"name": "calc", "type": "stdio", "command": "calc-server"},
				{"name": "search", "type": "sse", "url": "http://localhost:9000/sse"}
			]
		}`))
		require.NoError(t, err)
		require.Len(t, servers, 2)
		assert.Equal(t, "calc-server", servers["calc"].Command)
	})

	t.Run("unsupported transport type", func(t *testing.T) {
		_, err := ParseRegistry([]byte(`{
			"mcpServers": {"bad": {"type": "websocket", "url": "ws://x"}}
		}`))
		require.Error(t, err)
		assert.Equal(t, errkind.Validation, errkind.KindOf(err))
		assert.Contains(t, err.Error(), "websocket")
	})

	t.Run("stdio without command", func(t *testing.T) {
		_, err := ParseRegistry([]byte(`{
			"mcpServers": {"bad": {"type": "stdio"}}
		}`))
		require.Error(t, err)
		assert.Equal(t, errkind.Validation, errkind.KindOf(err))
	})

	t.Run("sse without url", func(t *testing.T) {
		_, err := ParseRegistry([]byte(`{
			"servers": [{"name": "bad", "type": "sse"}]
		}`))
		require.Error(t, err)
		assert.Equal(t, errkind.Validation, errkind.KindOf(err))
	})

	t.Run("array entry without name", func(t *testing.T) {
		_, err := ParseRegistry([]byte(`{
			"servers": [{"type": "stdio", "command": "x"}]
		}`))
		require.Error(t, err)
	})

	t.Run("empty registry", func(t *testing.T) {
		_, err := ParseRegistry([]byte(`{}`))
		require.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := ParseRegistry([]byte(`{`))
		require.Error(t, err)
		assert.Equal(t, errkind.Validation, errkind.KindOf(err))
	})
}

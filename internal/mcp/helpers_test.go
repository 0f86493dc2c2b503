package mcpserver

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONArg(t *testing.T) {
	req := mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: map[string]any{
		"str":   `{"a": 1}`,
		"raw":   map[string]any{"a": 2},
		"empty": "",
		"bad":   "{",
	}}}

	var v struct{ A int }
	require.NoError(t, jsonArg(req, "str", &v))
	assert.Equal(t, 1, v.A)
	require.NoError(t, jsonArg(req, "raw", &v))
	assert.Equal(t, 2, v.A)

	v.A = 7
	require.NoError(t, jsonArg(req, "empty", &v))
	require.NoError(t, jsonArg(req, "missing", &v))
	assert.Equal(t, 7, v.A)

	assert.ErrorContains(t, jsonArg(req, "bad", &v), "parse bad")
}

package mcpserver

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// jsonArg reads an argument that clients send either as a JSON string or as
// an already decoded value, and decodes it into target. Missing is not an error.
func jsonArg(req mcp.CallToolRequest, key string, target any) error {
	var raw []byte
	switch v := req.GetArguments()[key].(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		raw = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		raw = b
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	return nil
}

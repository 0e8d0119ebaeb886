package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/casetrack/internal/errors"
)

// decode round-trips the tool arguments through JSON into T. Failures come
// back as INVALID_REQUEST naming the tool.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var out T
	b, err := json.Marshal(req.GetArguments())
	if err == nil {
		err = json.Unmarshal(b, &out)
	}
	if err != nil {
		return out, errors.NewInvalidRequest(fmt.Sprintf("invalid arguments for %s: %v", toolName(req), err))
	}
	return out, nil
}

func toolName(req mcp.CallToolRequest) string {
	if req.Params.Name == "" {
		return "tool"
	}
	return req.Params.Name
}

package mcpserver

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"esgdata/internal/domain"
	"esgdata/internal/interval"
)

func (s *Server) registerIntervalTools() {
	s.mcp.AddTool(mcp.NewTool("parse_interval",
		mcp.WithDescription(`Parse a vendor percentage interval such as "[ 90 - 100% ]", "] 0 - 10% [" or "None" into its bounds. Returns the percent bounds and the stored fractional form (lower, mean, upper).`),
		mcp.WithString("text", mcp.Description("Interval text as delivered by the vendor"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleParseInterval)
}

func (s *Server) handleParseInterval(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	bounds, err := interval.ParseBounds(s.log, text)
	if err != nil {
		var perr *interval.ParseError
		if errors.As(err, &perr) {
			return mcp.NewToolResultError(perr.Error()), nil
		}
		return nil, err
	}

	return jsonResult(struct {
		Percent   interval.Bounds          `json:"percent"`
		Indicator domain.IntervalIndicator `json:"indicator"`
	}{bounds, bounds.Indicator()})
}

func boolPtr(b bool) *bool { return &b }

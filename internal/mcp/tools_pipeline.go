package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"esgdata/internal/pipeline"
)

func (s *Server) registerPipelineTools() {
	s.mcp.AddTool(mcp.NewTool("inline_dereference",
		mcp.WithDescription("Build the $addFields stage that replaces a DBRef field by the ObjectId it points to. Output is a JSON array of stages in MongoDB Extended JSON."),
		mcp.WithString("field", mcp.Description("Name of the field holding the DBRef"), mcp.Required()),
		mcp.WithBoolean("canonical", mcp.Description("Emit canonical rather than relaxed Extended JSON")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleInlineDereference)

	s.mcp.AddTool(mcp.NewTool("resolve_reference",
		mcp.WithDescription("Build the $lookup + $unwind stages that replace a field holding an ObjectId by the referenced document. Combine with inline_dereference for DBRef fields."),
		mcp.WithString("field", mcp.Description("Name of the field holding the reference"), mcp.Required()),
		mcp.WithString("collection", mcp.Description("Collection the reference points into"), mcp.Required()),
		mcp.WithBoolean("dereference", mcp.Description("Prepend the inline dereference stage (field holds a DBRef)")),
		mcp.WithBoolean("canonical", mcp.Description("Emit canonical rather than relaxed Extended JSON")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleResolveReference)
}

func (s *Server) handleInlineDereference(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	field, err := req.RequireString("field")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return pipelineResult(mongo.Pipeline{pipeline.InlineDereference(field)}, req.GetBool("canonical", false))
}

func (s *Server) handleResolveReference(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	field, err := req.RequireString("field")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	collection, err := req.RequireString("collection")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	stages := pipeline.ResolveReference(field, collection)
	if req.GetBool("dereference", false) {
		stages = pipeline.Dereference(field, collection)
	}
	return pipelineResult(stages, req.GetBool("canonical", false))
}

func pipelineResult(stages mongo.Pipeline, canonical bool) (*mcp.CallToolResult, error) {
	out, err := pipeline.MarshalExtJSON(stages, canonical)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("marshal pipeline", err), nil
	}
	return textResult(string(out)), nil
}

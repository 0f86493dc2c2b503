package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"esgdata/internal/etl"
	"esgdata/internal/service"
)

func (s *Server) registerImportTools() {
	s.mcp.AddTool(mcp.NewTool("list_import_sources",
		mcp.WithDescription("List available import source types with their configuration schemas"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListImportSources)

	s.mcp.AddTool(mcp.NewTool("list_import_jobs",
		mcp.WithDescription("List stored import jobs with their trigger and last run status"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListImportJobs)

	s.mcp.AddTool(mcp.NewTool("preview_import_source",
		mcp.WithDescription("Preview the first rows of a vendor feed without writing anything. Transforms, when given, are applied to the preview."),
		mcp.WithString("sourceType", mcp.Description("Source type (use list_import_sources to see available types)"), mcp.Required()),
		mcp.WithString("sourceConfigJSON", mcp.Description("Source configuration as JSON"), mcp.Required()),
		mcp.WithString("transformsJSON", mcp.Description(`Optional JSON array of transforms, each {type, config}. Available types:
- filter: {field, op (eq|neq|gt|lt|contains), value}
- rename: {mapping: {old: new}}
- select: {fields: [...]}
- type_cast: {field, castType (number|int|string|bool)}
- default_value: {field, defaultValue}
- dedupe: {keys: [...]}
- sort: {field, direction (asc|desc)}
- limit: {count}
- interval: {field, target} parse "[ 90 - 100% ]" into {lower, mean, upper}
- nest: {flat: ["PAI"]} expand dotted keys into nested documents`)),
	), s.handlePreviewImportSource)

	s.mcp.AddTool(mcp.NewTool("run_import_job",
		mcp.WithDescription("Run a stored import job now. Writes to the reporting collection and, in replace mode, deletes the affected deliveries first."),
		mcp.WithString("jobId", mcp.Description("Import job ID"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRunImportJob)
}

func (s *Server) handleListImportSources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.imports.ListSources())
}

func (s *Server) handleListImportJobs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobs, err := s.imports.ListJobs()
	if err != nil {
		return mcp.NewToolResultErrorFromErr("list jobs", err), nil
	}
	if len(jobs) == 0 {
		return textResult("No import jobs"), nil
	}

	var b strings.Builder
	for _, j := range jobs {
		status := j.LastStatus
		if status == "" {
			status = "never run"
		}
		fmt.Fprintf(&b, "- %s (%s) source=%s trigger=%s status=%s\n", j.Name, j.ID, j.SourceType, j.TriggerType, status)
	}
	return textResult(b.String()), nil
}

func (s *Server) handlePreviewImportSource(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourceType, err := req.RequireString("sourceType")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var cfg map[string]any
	if err := jsonArg(req, "sourceConfigJSON", &cfg); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}

	var transforms []etl.TransformConfig
	if err := jsonArg(req, "transformsJSON", &transforms); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.imports.PreviewSource(ctx, sourceType, string(cfgJSON), transforms)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("preview", err), nil
	}
	return jsonResult(result)
}

func (s *Server) handleRunImportJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID, err := req.RequireString("jobId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.imports.RunJob(ctx, jobID)
	if errors.Is(err, service.ErrAlreadyRunning) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err != nil && result == nil {
		return mcp.NewToolResultErrorFromErr("run job", err), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Import failed after reading %d rows: %v", result.RowsRead, err)), nil
	}
	return textResult(fmt.Sprintf("Import completed: %d rows read, %d written in %s",
		result.RowsRead, result.RowsWritten, result.Duration)), nil
}

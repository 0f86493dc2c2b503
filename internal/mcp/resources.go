package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	jobsURI       = "esgdata://jobs"
	jobLogsPrefix = "esgdata://jobs/"
	jobLogsSuffix = "/logs"
)

func (s *Server) registerResources() {
	// ── esgdata://jobs ─────────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		jobsURI,
		"Import Jobs",
		mcp.WithResourceDescription("Stored import jobs with their last run status"),
		mcp.WithMIMEType("application/json"),
	), s.handleJobsResource)

	// ── esgdata://jobs/{jobId}/logs ────────────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			jobLogsPrefix+"{jobId}"+jobLogsSuffix,
			"Import Job Run Logs",
		),
		s.handleJobLogsResource,
	)
}

func (s *Server) handleJobsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	jobs, err := s.imports.ListJobs()
	if err != nil {
		return nil, err
	}

	type jobSummary struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		SourceType  string `json:"sourceType"`
		TriggerType string `json:"triggerType"`
		LastStatus  string `json:"lastStatus,omitempty"`
	}

	summaries := make([]jobSummary, 0, len(jobs))
	for _, j := range jobs {
		summaries = append(summaries, jobSummary{
			ID:          j.ID,
			Name:        j.Name,
			SourceType:  j.SourceType,
			TriggerType: j.TriggerType,
			LastStatus:  j.LastStatus,
		})
	}

	data, _ := json.MarshalIndent(summaries, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      jobsURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleJobLogsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	jobID := jobIDFromURI(uri)
	if jobID == "" {
		return nil, fmt.Errorf("could not extract jobId from URI: %s", uri)
	}

	logs, err := s.imports.ListRunLogs(jobID, 0)
	if err != nil {
		return nil, err
	}

	data, _ := json.MarshalIndent(logs, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// jobIDFromURI extracts the job ID from "esgdata://jobs/{id}/logs".
func jobIDFromURI(uri string) string {
	rest, ok := strings.CutPrefix(uri, jobLogsPrefix)
	if !ok {
		return ""
	}
	id, ok := strings.CutSuffix(rest, jobLogsSuffix)
	if !ok || strings.Contains(id, "/") {
		return ""
	}
	return id
}

package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("import_vendor_feed",
		mcp.WithPromptDescription("Walk through checking and importing a vendor ESG feed into the reporting collection"),
		mcp.WithArgument("sourceType",
			mcp.ArgumentDescription("Import source type (e.g. csv, json, database)"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("location",
			mcp.ArgumentDescription("File path or connection name of the feed"),
			mcp.RequiredArgument(),
		),
	), s.handleImportFeedPrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("inspect_instrument",
		mcp.WithPromptDescription("Summarise the sustainability reporting of one instrument"),
		mcp.WithArgument("isin",
			mcp.ArgumentDescription("Instrument ISIN"),
			mcp.RequiredArgument(),
		),
	), s.handleInspectInstrumentPrompt)
}

func (s *Server) handleImportFeedPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	sourceType := req.Params.Arguments["sourceType"]
	location := req.Params.Arguments["location"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Import a %s feed from %s", sourceType, location),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Import the vendor feed at "%s" (source type "%s"). Follow these steps:

1. Use list_import_sources to find the configuration keys of "%s"
2. Use preview_import_source to look at the first rows and the discovered schema
3. Work out the transforms needed so each row becomes a reporting document:
   - rename vendor columns to isin and date
   - interval for every "[ a - b%% ]" column, e.g. sdg_involvement
   - nest with flat ["PAI"] so dotted columns become nested documents
4. Preview again with the transforms until every row has isin and date
5. Check the existing jobs with list_import_jobs, then run the matching one with run_import_job

Stop and report if any interval cell fails to parse; it means the vendor changed the format.`, location, sourceType, sourceType),
				},
			},
		},
	}, nil
}

func (s *Server) handleInspectInstrumentPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	isin := req.Params.Arguments["isin"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Inspect %s", isin),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Summarise the sustainability reporting of %s.

1. Use find_reporting to load every delivery, newest first
2. Report the ESG scores and their band (Advanced from 60, Robust from 50, Limited from 30, Weak below)
3. List any CRA category rated Critical and any CAS exclusion that applies
4. Compare the latest delivery with the previous one and point out what changed`, isin),
				},
			},
		},
	}, nil
}

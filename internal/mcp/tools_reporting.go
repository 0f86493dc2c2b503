package mcpserver

import (
	"bytes"
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"esgdata/internal/domain"
	"esgdata/internal/pipeline"
)

func (s *Server) registerReportingTools() {
	s.mcp.AddTool(mcp.NewTool("find_reporting",
		mcp.WithDescription("Return the sustainability reporting deliveries for an ISIN, newest first. Optionally resolve a reference field against another collection in the same query."),
		mcp.WithString("isin", mcp.Description("Instrument ISIN"), mcp.Required()),
		mcp.WithString("referenceField", mcp.Description("Field holding a reference to resolve (optional)")),
		mcp.WithString("collection", mcp.Description("Collection the reference points into (required with referenceField)")),
		mcp.WithBoolean("dynamic", mcp.Description("The field holds a generic {_ref: DBRef} wrapper rather than a plain ObjectId")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleFindReporting)
}

func (s *Server) handleFindReporting(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	isin, err := req.RequireString("isin")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	field := req.GetString("referenceField", "")

	if field == "" {
		docs, err := s.reporting.FindByISIN(ctx, isin)
		if err != nil {
			return mcp.NewToolResultErrorFromErr("find reporting", err), nil
		}
		if len(docs) == 0 {
			return textResult(fmt.Sprintf("No reporting found for %s", isin)), nil
		}
		return jsonResult(reportingViews(docs))
	}

	collection := req.GetString("collection", "")
	if collection == "" {
		return mcp.NewToolResultError("collection is required with referenceField"), nil
	}

	resolve := pipeline.ResolveReference(field, collection)
	if req.GetBool("dynamic", false) {
		resolve = pipeline.Dereference(field, collection)
	}
	stages := pipeline.Join(
		mongo.Pipeline{
			{{Key: "$match", Value: bson.D{{Key: "isin", Value: isin}}}},
			{{Key: "$sort", Value: bson.D{{Key: "date", Value: -1}}}},
		},
		resolve,
	)

	docs, err := s.reporting.Aggregate(ctx, domain.ReportingCollection, stages)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("aggregate reporting", err), nil
	}
	if len(docs) == 0 {
		return textResult(fmt.Sprintf("No reporting found for %s", isin)), nil
	}

	out, err := marshalDocs(docs)
	if err != nil {
		return nil, err
	}
	return textResult(string(out)), nil
}

// reportingView adds the derived ESG band and the CRA verdict to a delivery.
type reportingView struct {
	domain.SustainabilityReporting
	ESGRating     domain.ESGRating `json:"esgRating,omitempty"`
	CRAAcceptable *bool            `json:"craAcceptable,omitempty"`
}

func reportingViews(docs []domain.SustainabilityReporting) []reportingView {
	out := make([]reportingView, len(docs))
	for i, d := range docs {
		out[i] = reportingView{SustainabilityReporting: d}
		if d.ESG != nil {
			out[i].ESGRating = d.ESG.Rating()
		}
		if d.CRA != nil {
			ok := d.CRA.IsAcceptable()
			out[i].CRAAcceptable = &ok
		}
	}
	return out
}

// marshalDocs renders aggregation output as a relaxed Extended JSON array.
func marshalDocs(docs []bson.M) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, doc := range docs {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := bson.MarshalExtJSON(doc, false, false)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

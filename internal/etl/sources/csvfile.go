package sources

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"esgdata/internal/etl"
)

// ── CSV File Source ─────────────────────────────────────────
// Streams records from a vendor CSV export, one row at a time.

const csvSampleRows = 50

type csvFileSource struct{}

func init() { etl.RegisterSource(&csvFileSource{}) }

func (s *csvFileSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "csv_file",
		Label: "CSV File",
		ConfigFields: []etl.ConfigField{
			{Key: "filePath", Label: "File Path", Type: "file", Required: true, Help: "Path to the CSV export"},
			{Key: "delimiter", Label: "Delimiter", Type: "string", Required: false, Default: ",", Help: `Column delimiter, \t for tab`},
			{Key: "hasHeader", Label: "Has Header", Type: "select", Required: false, Options: []string{"true", "false"}, Default: "true", Help: "Whether the first row contains column names"},
			{Key: "skipRows", Label: "Skip Rows", Type: "number", Required: false, Default: "0", Help: "Preamble lines before the header (vendor banners, export dates)"},
		},
	}
}

// csvFeed is an open CSV export positioned on its first data row.
type csvFeed struct {
	f       *os.File
	r       *csv.Reader
	headers []string
	first   []string // first data row when the file has no header
}

func openCSV(cfg etl.SourceConfig) (*csvFeed, error) {
	path := cfg.String("filePath", "")
	if path == "" {
		return nil, fmt.Errorf("filePath is required")
	}
	comma, err := csvDelimiter(cfg.String("delimiter", ","))
	if err != nil {
		return nil, err
	}
	skip, _ := strconv.Atoi(cfg.String("skipRows", "0"))

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	r := csv.NewReader(f)
	r.Comma = comma
	r.LazyQuotes = true
	r.TrimLeadingSpace = !unicode.IsSpace(comma)
	r.FieldsPerRecord = -1

	feed := &csvFeed{f: f, r: r}
	for i := 0; i < skip; i++ {
		if _, err := r.Read(); err != nil {
			f.Close()
			return nil, fmt.Errorf("skip preamble: %w", err)
		}
	}

	row, err := r.Read()
	if errors.Is(err, io.EOF) {
		f.Close()
		return nil, fmt.Errorf("empty csv file")
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	feed.headers = make([]string, len(row))
	if strings.ToLower(cfg.String("hasHeader", "true")) == "false" {
		for i := range row {
			feed.headers[i] = fmt.Sprintf("col_%d", i+1)
		}
		feed.first = row
	} else {
		for i, h := range row {
			feed.headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		}
	}
	return feed, nil
}

// next returns the following row as a record, or io.EOF.
func (c *csvFeed) next() (map[string]any, error) {
	row := c.first
	c.first = nil
	if row == nil {
		var err error
		if row, err = c.r.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, err
			}
			return nil, fmt.Errorf("parse csv: %w", err)
		}
	}
	data := make(map[string]any, len(c.headers))
	for i, h := range c.headers {
		if i < len(row) {
			data[h] = inferCSVValue(row[i])
		}
	}
	return data, nil
}

func (c *csvFeed) Close() error { return c.f.Close() }

func (s *csvFileSource) Discover(ctx context.Context, cfg etl.SourceConfig) (*etl.Schema, error) {
	feed, err := openCSV(cfg)
	if err != nil {
		return nil, err
	}
	defer feed.Close()

	var sample []map[string]any
	for len(sample) < csvSampleRows {
		row, err := feed.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		sample = append(sample, row)
	}

	schema := &etl.Schema{Fields: make([]etl.Field, len(feed.headers))}
	for i, h := range feed.headers {
		schema.Fields[i] = etl.Field{Name: h, Type: sampledType(sample, h)}
	}
	return schema, nil
}

func (s *csvFileSource) Read(ctx context.Context, cfg etl.SourceConfig) (<-chan etl.Record, <-chan error) {
	out := make(chan etl.Record, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		feed, err := openCSV(cfg)
		if err != nil {
			errCh <- err
			return
		}
		defer feed.Close()

		for {
			row, err := feed.next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				errCh <- err
				return
			}
			select {
			case out <- etl.Record{Data: row}:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
	}()

	return out, errCh
}

func csvDelimiter(s string) (rune, error) {
	if s == `\t` || s == "tab" {
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) || r == '"' || r == '\n' || r == '\r' {
		return 0, fmt.Errorf("invalid delimiter %q", s)
	}
	return r, nil
}

// inferCSVValue parses numbers and booleans. Interval text, "None" and
// zero-padded codes stay strings.
func inferCSVValue(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if len(s) > 1 && s[0] == '0' && s[1] != '.' {
		return s
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch strings.ToLower(s) {
	case "true", "yes":
		return true
	case "false", "no":
		return false
	}
	return s
}

// sampledType picks the field type shared by every non-empty sampled value.
func sampledType(sample []map[string]any, field string) string {
	typ := ""
	for _, row := range sample {
		var t string
		switch row[field].(type) {
		case nil:
			continue
		case float64:
			t = "number"
		case bool:
			t = "boolean"
		default:
			return "text"
		}
		if typ != "" && typ != t {
			return "text"
		}
		typ = t
	}
	if typ == "" {
		return "text"
	}
	return typ
}

package dbclient

import (
	"database/sql"
	"fmt"
	"time"
)

// Page is one batch of rows read from a Cursor.
type Page struct {
	Rows    []map[string]any
	Fetched int  // rows read so far, including this page
	More    bool // the page was full, another Next may return rows
}

// Cursor streams the rows of a read query. It is not safe for
// concurrent use.
type Cursor struct {
	tx      *sql.Tx
	rows    *sql.Rows
	columns []ColumnInfo
	fetched int
	closed  bool
}

// Columns returns the result columns in select order.
func (c *Cursor) Columns() []ColumnInfo {
	return c.columns
}

// Next reads up to n rows. The cursor closes itself once the result set
// is exhausted; further calls return ErrCursorClosed.
func (c *Cursor) Next(n int) (*Page, error) {
	if c.closed {
		return nil, ErrCursorClosed
	}
	if n <= 0 {
		n = 1
	}

	page := &Page{Rows: make([]map[string]any, 0, n)}
	for len(page.Rows) < n && c.rows.Next() {
		values := make([]any, len(c.columns))
		ptrs := make([]any, len(values))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := c.rows.Scan(ptrs...); err != nil {
			c.Close()
			return nil, fmt.Errorf("scan: %w", err)
		}
		row := make(map[string]any, len(c.columns))
		for i, col := range c.columns {
			row[col.Name] = normalize(values[i])
		}
		page.Rows = append(page.Rows, row)
	}
	if err := c.rows.Err(); err != nil {
		c.Close()
		return nil, err
	}

	c.fetched += len(page.Rows)
	page.Fetched = c.fetched
	page.More = len(page.Rows) == n
	if !page.More {
		c.Close()
	}
	return page, nil
}

// Close releases the rows and ends the transaction. It is idempotent.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.rows.Close()
	if rbErr := c.tx.Rollback(); err == nil && rbErr != sql.ErrTxDone {
		err = rbErr
	}
	return err
}

// normalize maps driver values onto JSON friendly ones.
func normalize(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC()
	default:
		return val
	}
}

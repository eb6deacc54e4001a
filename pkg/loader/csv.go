package loader

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

const utf8BOM = "\ufeff"

// Row maps a header name to the row's value for that column.
type Row map[string]string

// Table is a header-row delimited table, rows kept in file order.
type Table struct {
	Columns []string
	Rows    []Row
}

// HasColumn reports whether name is one of the table's header columns.
func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// ParseCSV reads a header row followed by data rows. Header names and values
// are trimmed. Rows whose field count differs from the header are rejected.
func ParseCSV(r io.Reader) (Table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && string(head) == utf8BOM {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)

	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Table{}, fmt.Errorf("%w: missing header row", ErrMalformedTable)
	}
	if err != nil {
		return Table{}, fmt.Errorf("%w: read header: %v", ErrMalformedTable, err)
	}

	columns := make([]string, len(headers))
	seen := make(map[string]bool, len(headers))
	for i, h := range headers {
		key := strings.TrimSpace(h)
		if key == "" {
			return Table{}, fmt.Errorf("%w: empty header at column %d", ErrMalformedTable, i+1)
		}
		if seen[key] {
			return Table{}, fmt.Errorf("%w: duplicate header %q", ErrMalformedTable, key)
		}
		seen[key] = true
		columns[i] = key
	}

	table := Table{Columns: columns}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("%w: %v", ErrMalformedTable, err)
		}
		table.Rows = append(table.Rows, toRow(columns, record))
	}
	return table, nil
}

func toRow(columns, record []string) Row {
	row := make(Row, len(columns))
	for i, c := range columns {
		if i < len(record) {
			row[c] = strings.TrimSpace(record[i])
		} else {
			row[c] = ""
		}
	}
	return row
}

package fhir_etl

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Row is one source record keyed by column name. Values come either from a
// TSV sheet (strings) or from a decoded JSON API response.
type Row map[string]any

// Get returns the trimmed string form of a column and whether it holds a
// usable value. Missing columns, nulls, blanks and NaN all count as absent.
func (r Row) Get(column string) (string, bool) {
	v, ok := r[column]
	if !ok || v == nil {
		return "", false
	}
	var s string
	switch t := v.(type) {
	case string:
		s = strings.TrimSpace(t)
	case float64:
		if math.IsNaN(t) {
			return "", false
		}
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	default:
		s = fmt.Sprint(t)
	}
	if s == "" || strings.EqualFold(s, "nan") {
		return "", false
	}
	return s, true
}

// String returns the column value or "" when absent.
func (r Row) String(column string) string {
	s, _ := r.Get(column)
	return s
}

// StringOr returns the column value or fallback when absent.
func (r Row) StringOr(column, fallback string) string {
	if s, ok := r.Get(column); ok {
		return s
	}
	return fallback
}

// ReadTSV parses a tab separated sheet whose first line is the header.
func ReadTSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("Failed to read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	var rows []Row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("Failed to read row %d: %w", len(rows)+1, err)
		}
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

package fhir_etl

import (
	"math"
	"strings"
	"testing"
)

func TestRowGet(t *testing.T) {
	row := Row{
		"text":    "  HG00001 ",
		"blank":   "   ",
		"nan":     "NaN",
		"null":    nil,
		"number":  float64(42),
		"decimal": 1.5,
		"notnum":  math.NaN(),
		"flag":    true,
	}
	tests := []struct {
		column string
		want   string
		ok     bool
	}{
		{"text", "HG00001", true},
		{"blank", "", false},
		{"nan", "", false},
		{"null", "", false},
		{"missing", "", false},
		{"number", "42", true},
		{"decimal", "1.5", true},
		{"notnum", "", false},
		{"flag", "true", true},
	}
	for _, tt := range tests {
		got, ok := row.Get(tt.column)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Get(%q) got (%q, %v) want (%q, %v)", tt.column, got, ok, tt.want, tt.ok)
		}
	}
	if got := row.StringOr("missing", NotSpecified); got != NotSpecified {
		t.Errorf("got %q want %q", got, NotSpecified)
	}
}

func TestReadTSV(t *testing.T) {

	t.Run("sample sheet", func(t *testing.T) {
		rows, err := ReadTSV(strings.NewReader(OneKGSampleSheet))
		if err != nil {
			t.Fatalf("cannot read sample sheet: %q", err)
		}
		if len(rows) != 2 {
			t.Fatalf("got %d rows want 2", len(rows))
		}
		if got := rows[1].String("Population Description"); got != "Finnish in Finland" {
			t.Errorf("got %q want %q", got, "Finnish in Finland")
		}
		if _, ok := rows[1].Get("DNA Source from Coriell"); ok {
			t.Errorf("blank cell reported as present")
		}
	})

	t.Run("byte order mark and short rows", func(t *testing.T) {
		rows, err := ReadTSV(strings.NewReader("\ufeffSAMPID\tSMTS\nGTEX-1\n"))
		if err != nil {
			t.Fatalf("cannot read sheet: %q", err)
		}
		if got := rows[0].String("SAMPID"); got != "GTEX-1" {
			t.Errorf("got %q want %q", got, "GTEX-1")
		}
		if _, ok := rows[0].Get("SMTS"); ok {
			t.Errorf("missing cell reported as present")
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if _, err := ReadTSV(strings.NewReader("")); err == nil {
			t.Errorf("no error for a sheet without header")
		}
	})
}

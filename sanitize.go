package fhir_etl

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Sanitize drops nil values, empty strings and containers that are empty
// after cleaning. Numbers (including zero) and booleans are kept. A list
// that ends up empty is reported as nil so its parent drops it.
func Sanitize(v any) any {
	switch t := v.(type) {
	case Resource:
		return Resource(sanitizeMap(t))
	case map[string]any:
		return sanitizeMap(t)
	case []any:
		cleaned := make([]any, 0, len(t))
		for _, item := range t {
			c := Sanitize(item)
			if isEmpty(c) {
				continue
			}
			cleaned = append(cleaned, c)
		}
		if len(cleaned) == 0 {
			return nil
		}
		return cleaned
	default:
		return v
	}
}

func sanitizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		c := Sanitize(v)
		if isEmpty(c) {
			continue
		}
		out[k] = c
	}
	return out
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case json.Number:
		return t == ""
	case map[string]any:
		return len(t) == 0
	case Resource:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}

// SanitizeResource is Sanitize for a whole resource.
func SanitizeResource(r Resource) Resource {
	out, _ := Sanitize(r).(Resource)
	if out == nil {
		return Resource{}
	}
	return out
}

// NormalizeNumbers converts numeric looking strings held in the "value" field
// of nested objects (quantities) to numbers: float64 when they contain a '.',
// int64 otherwise. Objects whose value was inspected are not descended into.
func NormalizeNumbers(v any) any {
	switch t := v.(type) {
	case Resource:
		return Resource(normalizeMap(t))
	case map[string]any:
		return normalizeMap(t)
	case []any:
		for i, item := range t {
			t[i] = NormalizeNumbers(item)
		}
		return t
	}
	return v
}

func normalizeMap(m map[string]any) map[string]any {
	for k, v := range m {
		nested, ok := v.(map[string]any)
		if !ok || nested["value"] == nil {
			m[k] = NormalizeNumbers(v)
			continue
		}
		if s, ok := nested["value"].(string); ok {
			if n, ok := parseNumeric(s); ok {
				nested["value"] = n
			}
		}
	}
	return m
}

func parseNumeric(s string) (any, bool) {
	digits := strings.Replace(strings.ReplaceAll(s, ".", ""), "-", "", 1)
	if digits == "" {
		return nil, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return nil, false
		}
	}
	if strings.Contains(s, ".") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		return f, true
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, false
	}
	return i, true
}

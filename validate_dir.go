package fhir_etl

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	ErrDanglingReference = errors.New("reference to a missing record")
	ErrDuplicateID       = errors.New("duplicate id")
)

// ValidationIssue locates a problem at line Line (from 1) of a file.
type ValidationIssue struct {
	Path   string
	Line   int
	Err    error
	Record map[string]any
}

func (i ValidationIssue) Error() string {
	return fmt.Sprintf("%s:%d %v", i.Path, i.Line, i.Err)
}

type ValidationResult struct {
	Resources  map[string]int // valid records per resource type
	Exceptions []ValidationIssue
}

type ndjsonLine struct {
	path   string
	lineNo int
	record Resource
}

// ValidateDir validates every line of every .ndjson file in dir and checks
// that references between the files resolve. Only errors reading the
// directory are returned; everything else is collected in the result.
func ValidateDir(dir string, v Validator) (*ValidationResult, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.ndjson"))
	if err != nil {
		return nil, fmt.Errorf("Failed to list %s: %w", dir, err)
	}
	sort.Strings(paths)

	result := &ValidationResult{Resources: map[string]int{}}
	ids := map[string]map[string]bool{}
	var lines []ndjsonLine

	for _, path := range paths {
		resourceType := strings.TrimSuffix(filepath.Base(path), ".ndjson")
		seen := map[string]bool{}
		ids[resourceType] = seen
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("Failed to open %s: %w", path, err)
		}
		err = scanLines(f, func(lineNo int, line []byte) {
			r, err := DecodeResource(line)
			if err != nil {
				result.Exceptions = append(result.Exceptions, ValidationIssue{Path: path, Line: lineNo, Err: err})
				return
			}
			if _, err := v.Validate(resourceType, r); err != nil {
				result.Exceptions = append(result.Exceptions, ValidationIssue{Path: path, Line: lineNo, Err: err, Record: r})
				return
			}
			if seen[r.ID()] {
				result.Exceptions = append(result.Exceptions, ValidationIssue{Path: path, Line: lineNo, Err: fmt.Errorf("%w %s", ErrDuplicateID, r.ID()), Record: r})
				return
			}
			seen[r.ID()] = true
			result.Resources[resourceType]++
			lines = append(lines, ndjsonLine{path: path, lineNo: lineNo, record: r})
		})
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("Failed to read %s: %w", path, err)
		}
	}

	for _, l := range lines {
		for _, ref := range References(l.record) {
			resourceType, id, ok := strings.Cut(ref, "/")
			if !ok {
				continue
			}
			known, present := ids[resourceType]
			if !present || known[id] {
				continue
			}
			result.Exceptions = append(result.Exceptions, ValidationIssue{
				Path:   l.path,
				Line:   l.lineNo,
				Err:    fmt.Errorf("%w: %s", ErrDanglingReference, ref),
				Record: l.record,
			})
		}
	}
	return result, nil
}

// References returns every "reference" string nested in v.
func References(v any) []string {
	var refs []string
	var walk func(any)
	walk = func(v any) {
		switch t := v.(type) {
		case Resource:
			walk(map[string]any(t))
		case map[string]any:
			keys := make([]string, 0, len(t))
			for k := range t {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if s, ok := t[k].(string); ok && k == "reference" {
					refs = append(refs, s)
					continue
				}
				walk(t[k])
			}
		case []any:
			for _, item := range t {
				walk(item)
			}
		}
	}
	walk(v)
	return refs
}

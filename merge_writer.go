package fhir_etl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

var (
	ErrSingleton    = errors.New("resource type is written whole, not merged")
	ErrNotSingleton = errors.New("resource type is merged, not written whole")
)

// MergeStats counts what a merge did to an output file.
type MergeStats struct {
	ResourceType string
	Existing     int // records read from the file before merging
	Added        int // new ids appended
	Updated      int // existing ids replaced (overwrite only)
	Kept         int // existing ids left untouched
	Skipped      int // malformed lines dropped from the existing file
	Dropped      int // incoming records that failed validation
	Total        int // records in the rewritten file
}

// MergeWriter owns the per resource type NDJSON files of an output directory.
type MergeWriter struct {
	dir       string
	validator Validator
}

func NewMergeWriter(dir string, validator Validator) *MergeWriter {
	return &MergeWriter{dir: dir, validator: validator}
}

func (w *MergeWriter) Dir() string { return w.dir }

// Path is the output file of a resource type.
func (w *MergeWriter) Path(resourceType string) string {
	return filepath.Join(w.dir, resourceType+".ndjson")
}

func knownResourceType(resourceType string) bool {
	for _, t := range ResourceTypes {
		if t == resourceType {
			return true
		}
	}
	return false
}

// Clean sanitizes, validates and normalizes records. Records that fail
// validation are logged and left out; their errors are returned alongside.
func (w *MergeWriter) Clean(resourceType string, records []Resource) ([]Resource, []error) {
	cleaned := make([]Resource, 0, len(records))
	var errs []error
	for _, r := range records {
		sanitized := SanitizeResource(r)
		validated, err := w.validator.Validate(resourceType, sanitized)
		if err != nil {
			err = fmt.Errorf("%s %s: %w", resourceType, r.ID(), err)
			log.Printf("Validation failed for %v", err)
			errs = append(errs, err)
			continue
		}
		cleaned = append(cleaned, NormalizeNumbers(validated).(Resource))
	}
	return cleaned, errs
}

// Write cleans records and merges the survivors into the resource type's file.
func (w *MergeWriter) Write(resourceType string, records []Resource, overwrite bool) (MergeStats, error) {
	if !knownResourceType(resourceType) {
		return MergeStats{ResourceType: resourceType}, fmt.Errorf("%w: %q", ErrUnknownResourceType, resourceType)
	}
	cleaned, errs := w.Clean(resourceType, records)
	stats, err := w.MergeAndWrite(resourceType, cleaned, overwrite)
	stats.Dropped = len(errs)
	return stats, err
}

// MergeAndWrite merges already validated records into the resource type's file.
func (w *MergeWriter) MergeAndWrite(resourceType string, records []Resource, overwrite bool) (MergeStats, error) {
	if !knownResourceType(resourceType) {
		return MergeStats{ResourceType: resourceType}, fmt.Errorf("%w: %q", ErrUnknownResourceType, resourceType)
	}
	if IsSingletonType(resourceType) {
		return MergeStats{ResourceType: resourceType}, fmt.Errorf("%w: %q", ErrSingleton, resourceType)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return MergeStats{ResourceType: resourceType}, fmt.Errorf("Failed to create output directory %s: %w", w.dir, err)
	}
	stats, err := MergeNDJSON(w.Path(resourceType), records, overwrite)
	stats.ResourceType = resourceType
	return stats, err
}

// MergeNDJSON reads path (if present), overlays records by id and rewrites
// the file. Existing records keep their position; new ids are appended in
// arrival order. An existing id is replaced only when overwrite is set.
func MergeNDJSON(path string, records []Resource, overwrite bool) (MergeStats, error) {
	var stats MergeStats
	order, index, err := readIndexed(path, &stats)
	existed := err == nil
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return stats, err
	}
	stats.Existing = len(order)

	for _, r := range records {
		id := r.ID()
		if _, ok := index[id]; !ok {
			order = append(order, id)
			index[id] = r
			stats.Added++
			continue
		}
		if overwrite {
			index[id] = r
			stats.Updated++
		} else {
			stats.Kept++
		}
	}

	out := make([]Resource, 0, len(order))
	for _, id := range order {
		out = append(out, index[id])
	}
	if err := writeNDJSON(path, out); err != nil {
		return stats, err
	}
	stats.Total = len(out)

	name := filepath.Base(path)
	switch {
	case !existed:
		log.Printf("%s has been created.", name)
	case overwrite:
		log.Printf("%s has new updates to existing data.", name)
	default:
		log.Printf("%s has been extended, without updating existing data.", name)
	}
	return stats, nil
}

func readIndexed(path string, stats *MergeStats) ([]string, map[string]Resource, error) {
	index := map[string]Resource{}
	var order []string
	f, err := os.Open(path)
	if err != nil {
		return order, index, err
	}
	defer f.Close()

	err = scanLines(f, func(lineNo int, line []byte) {
		r, err := DecodeResource(line)
		if err != nil {
			log.Printf("Skipping malformed line %d of %s: %v", lineNo, path, err)
			stats.Skipped++
			return
		}
		id, ok := r["id"].(string)
		if !ok {
			log.Printf("Skipping line %d of %s: no id", lineNo, path)
			stats.Skipped++
			return
		}
		if _, seen := index[id]; !seen {
			order = append(order, id)
		}
		index[id] = r
	})
	if err != nil {
		return nil, nil, fmt.Errorf("Failed to read %s: %w", path, err)
	}
	return order, index, nil
}

// scanLines calls fn with every non blank line of r, numbered from 1.
func scanLines(r io.Reader, fn func(lineNo int, line []byte)) error {
	br := bufio.NewReader(r)
	lineNo := 0
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			lineNo++
			if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
				fn(lineNo, trimmed)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func writeNDJSON(path string, records []Resource) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("Failed to create %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			f.Close()
			return fmt.Errorf("Failed to encode %s record %s: %w", filepath.Base(path), r.ID(), err)
		}
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("Failed to write %s: %w", path, err)
	}
	return f.Close()
}

// WriteSingleton cleans a top level resource (the study, the group) and
// writes it as the only value of its file, replacing whatever was there.
func (w *MergeWriter) WriteSingleton(resourceType string, record Resource) error {
	if !knownResourceType(resourceType) {
		return fmt.Errorf("%w: %q", ErrUnknownResourceType, resourceType)
	}
	if !IsSingletonType(resourceType) {
		return fmt.Errorf("%w: %q", ErrNotSingleton, resourceType)
	}
	cleaned, errs := w.Clean(resourceType, []Resource{record})
	if len(errs) > 0 {
		return errs[0]
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("Failed to create output directory %s: %w", w.dir, err)
	}
	if err := writeNDJSON(w.Path(resourceType), cleaned); err != nil {
		return err
	}
	log.Printf("%s has been written.", filepath.Base(w.Path(resourceType)))
	return nil
}

// ReadAll returns the records of a resource type's file in file order.
func (w *MergeWriter) ReadAll(resourceType string) ([]Resource, error) {
	return ReadNDJSON(w.Path(resourceType))
}

// ReadNDJSON decodes every well formed line of an NDJSON file.
func ReadNDJSON(path string) ([]Resource, error) {
	var stats MergeStats
	order, index, err := readIndexed(path, &stats)
	if err != nil {
		return nil, err
	}
	out := make([]Resource, 0, len(order))
	for _, id := range order {
		out = append(out, index[id])
	}
	return out, nil
}

// IdentifierValues collects the identifier values under system of every
// record written for the resource type.
func (w *MergeWriter) IdentifierValues(resourceType, system string) (map[string]bool, error) {
	records, err := w.ReadAll(resourceType)
	if err != nil {
		return nil, fmt.Errorf("Failed to read %s output: %w", resourceType, err)
	}
	values := map[string]bool{}
	for _, r := range records {
		identifiers, _ := r["identifier"].([]any)
		for _, i := range identifiers {
			m, ok := i.(map[string]any)
			if !ok || m["system"] != system {
				continue
			}
			if v, ok := m["value"].(string); ok && v != "" {
				values[v] = true
			}
		}
	}
	return values, nil
}

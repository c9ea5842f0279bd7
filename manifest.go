package fhir_etl

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/zeebo/xxh3"
)

const ManifestName = "manifest.json"

// Manifest records what a run left in the output directory.
type Manifest struct {
	RunID       string         `json:"runId"`
	Cohort      string         `json:"cohort"`
	ProjectID   string         `json:"projectId"`
	StudyID     string         `json:"studyId"`
	StartedAt   string         `json:"startedAt"`
	CompletedAt string         `json:"completedAt"`
	Overwrite   bool           `json:"overwrite"`
	Rejected    int            `json:"rejected"`
	Files       []ManifestFile `json:"files"`
}

// ManifestFile describes one output file. Records counts the lines of the
// file; the merge counts are those of this run.
type ManifestFile struct {
	ResourceType string `json:"resourceType"`
	Name         string `json:"name"`
	Records      int    `json:"records"`
	Added        int    `json:"added"`
	Updated      int    `json:"updated"`
	Dropped      int    `json:"dropped"`
	Bytes        int64  `json:"bytes"`
	XXH3         string `json:"xxh3"`
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewRunID returns a new time ordered run id.
func NewRunID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}

// Checksum is the hex xxh3 digest of content.
func Checksum(content []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(content))
}

// BuildManifest describes every resource type file present in dir.
func BuildManifest(dir string, cohort Cohort, stats map[string]MergeStats, started time.Time) (*Manifest, error) {
	m := &Manifest{
		RunID:       NewRunID(),
		Cohort:      cohort.Config.Name,
		ProjectID:   cohort.Config.ProjectID,
		StudyID:     cohort.StudyID(),
		StartedAt:   FormatDate(started),
		CompletedAt: FormatDate(time.Now()),
	}
	for _, rt := range ResourceTypes {
		name := rt + ".ndjson"
		content, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("Failed to read %s: %w", name, err)
		}
		s := stats[rt]
		m.Files = append(m.Files, ManifestFile{
			ResourceType: rt,
			Name:         name,
			Records:      countLines(content),
			Added:        s.Added,
			Updated:      s.Updated,
			Dropped:      s.Dropped,
			Bytes:        int64(len(content)),
			XXH3:         Checksum(content),
		})
	}
	return m, nil
}

func countLines(content []byte) int {
	n := 0
	for _, line := range bytes.Split(content, []byte("\n")) {
		if len(bytes.TrimSpace(line)) > 0 {
			n++
		}
	}
	return n
}

func (m *Manifest) Write(dir string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("Failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestName), append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("Failed to write manifest: %w", err)
	}
	return nil
}

func ReadManifest(dir string) (*Manifest, error) {
	b, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("Failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("Failed to unmarshal manifest: %w", err)
	}
	return &m, nil
}

// Summary is the one line description used in announcements.
func (m *Manifest) Summary() string {
	records := 0
	for _, f := range m.Files {
		records += f.Records
	}
	return fmt.Sprintf("fhir-etl run %s for %s wrote %d records in %d files (%d rejected)",
		m.RunID, m.Cohort, records, len(m.Files), m.Rejected)
}

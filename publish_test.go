package fhir_etl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTestOutput(t *testing.T) (string, *Manifest) {
	t.Helper()
	dir := t.TempDir()
	writeLines(t, dir, "Patient.ndjson", `{"resourceType":"Patient","id":"p1"}`, `{"resourceType":"Patient","id":"p2"}`)
	m, err := BuildManifest(dir, NewCohort(DefaultCohorts()[KindGTEx]), nil, time.Now())
	if err != nil {
		t.Fatalf("cannot build manifest: %q", err)
	}
	if err := m.Write(dir); err != nil {
		t.Fatalf("cannot write manifest: %q", err)
	}
	return dir, m
}

// corruptingPublisher hands back different bytes from those it was given.
type corruptingPublisher struct {
	fakePublisher
}

func (c *corruptingPublisher) GetObject(ctx context.Context, key string) ([]byte, error) {
	return append(c.objects[key], '\n'), nil
}

func TestPublishOutput(t *testing.T) {

	t.Run("plain", func(t *testing.T) {
		dir, m := writeTestOutput(t)
		p := &fakePublisher{}
		if err := PublishOutput(context.Background(), p, dir, m, false); err != nil {
			t.Fatalf("cannot publish: %q", err)
		}
		want, _ := os.ReadFile(filepath.Join(dir, "Patient.ndjson"))
		if string(p.objects["Patient.ndjson"]) != string(want) {
			t.Errorf("got %q want %q", p.objects["Patient.ndjson"], want)
		}
		if p.contentTypes["Patient.ndjson"] != ndjsonContentType {
			t.Errorf("got content type %q", p.contentTypes["Patient.ndjson"])
		}
		if last := p.keys[len(p.keys)-1]; last != ManifestName {
			t.Errorf("got last key %q want %q", last, ManifestName)
		}
	})

	t.Run("compressed", func(t *testing.T) {
		dir, m := writeTestOutput(t)
		p := &fakePublisher{}
		if err := PublishOutput(context.Background(), p, dir, m, true); err != nil {
			t.Fatalf("cannot publish: %q", err)
		}
		compressed, ok := p.objects["Patient.ndjson.zst"]
		if !ok {
			t.Fatalf("got keys %v", p.keys)
		}
		if p.contentTypes["Patient.ndjson.zst"] != zstdContentType {
			t.Errorf("got content type %q", p.contentTypes["Patient.ndjson.zst"])
		}
		got, err := Decompress(compressed)
		if err != nil {
			t.Fatalf("cannot decompress: %q", err)
		}
		want, _ := os.ReadFile(filepath.Join(dir, "Patient.ndjson"))
		if string(got) != string(want) {
			t.Errorf("got %q want %q", got, want)
		}
		if _, ok := p.objects[ManifestName]; !ok {
			t.Errorf("manifest not published")
		}
	})

	t.Run("files that do not read back intact fail the publish", func(t *testing.T) {
		dir, m := writeTestOutput(t)
		p := &corruptingPublisher{}
		err := PublishOutput(context.Background(), p, dir, m, false)
		if !errors.Is(err, ErrChecksumMismatch) {
			t.Errorf("got %v want %v", err, ErrChecksumMismatch)
		}
		if _, ok := p.objects[ManifestName]; ok {
			t.Errorf("manifest published after a checksum mismatch")
		}
	})
}

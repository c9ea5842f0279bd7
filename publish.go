package fhir_etl

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

var ErrChecksumMismatch = errors.New("published file does not match its checksum")

// Publisher copies an output file to remote storage under key.
type Publisher interface {
	Name() string
	Put(ctx context.Context, key string, content []byte, contentType string) error
}

// Fetcher is a Publisher that can read back what it stored. Published files
// are read back and checked against the manifest checksum.
type Fetcher interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// Remover is a Publisher that can delete keys. The variant of each file left
// by a run with the other --compress setting is removed.
type Remover interface {
	DeleteObject(ctx context.Context, key string) error
}

const (
	ndjsonContentType = "application/fhir+ndjson"
	jsonContentType   = "application/json"
	zstdContentType   = "application/zstd"
)

// PublishOutput uploads the files listed in the manifest and then the
// manifest itself. With compress set, resource files are zstd compressed and
// get a ".zst" suffix.
func PublishOutput(ctx context.Context, p Publisher, dir string, m *Manifest, compress bool) error {
	var enc *zstd.Encoder
	if compress {
		var err error
		enc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return fmt.Errorf("Failed to create zstd encoder: %w", err)
		}
		defer enc.Close()
	}

	for _, f := range m.Files {
		content, err := os.ReadFile(filepath.Join(dir, f.Name))
		if err != nil {
			return fmt.Errorf("Failed to read %s: %w", f.Name, err)
		}
		key, contentType := f.Name, ndjsonContentType
		if enc != nil {
			content = enc.EncodeAll(content, make([]byte, 0, len(content)/4))
			key, contentType = f.Name+".zst", zstdContentType
		}
		if err := p.Put(ctx, key, content, contentType); err != nil {
			return fmt.Errorf("Failed to publish %s to %s: %w", key, p.Name(), err)
		}
		if err := verifyPublished(ctx, p, key, f.XXH3, enc != nil); err != nil {
			return err
		}
		if r, ok := p.(Remover); ok {
			stale := f.Name + ".zst"
			if enc != nil {
				stale = f.Name
			}
			if err := r.DeleteObject(ctx, stale); err != nil {
				return fmt.Errorf("Failed to remove %s from %s: %w", stale, p.Name(), err)
			}
		}
		log.Printf("Published %s to %s", key, p.Name())
	}

	manifest, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return fmt.Errorf("Failed to read %s: %w", ManifestName, err)
	}
	if err := p.Put(ctx, ManifestName, manifest, jsonContentType); err != nil {
		return fmt.Errorf("Failed to publish %s to %s: %w", ManifestName, p.Name(), err)
	}
	return nil
}

func verifyPublished(ctx context.Context, p Publisher, key, checksum string, compressed bool) error {
	fetcher, ok := p.(Fetcher)
	if !ok {
		return nil
	}
	content, err := fetcher.GetObject(ctx, key)
	if err != nil {
		return fmt.Errorf("Failed to read back %s from %s: %w", key, p.Name(), err)
	}
	if compressed {
		if content, err = Decompress(content); err != nil {
			return fmt.Errorf("Failed to read back %s from %s: %w", key, p.Name(), err)
		}
	}
	if got := Checksum(content); got != checksum {
		return fmt.Errorf("%w: %s on %s is %s, manifest has %s", ErrChecksumMismatch, key, p.Name(), got, checksum)
	}
	return nil
}

// Decompress reverses the compression applied by PublishOutput.
func Decompress(content []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("Failed to create zstd decoder: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(content, nil)
	if err != nil {
		return nil, fmt.Errorf("Failed to decompress: %w", err)
	}
	return out, nil
}

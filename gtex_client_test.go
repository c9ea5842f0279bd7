package fhir_etl

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
)

func TestGTExClient(t *testing.T) {
	server := newSourceServer(t)
	cfg := testGTExConfig(t, server.URL).GTEx
	client := NewGTExClient(server.Client(), cfg)
	ctx := context.Background()

	t.Run("reads every page", func(t *testing.T) {
		rows, err := client.Subjects(ctx)
		if err != nil {
			t.Fatalf("cannot read subjects: %q", err)
		}
		var ids []string
		for _, row := range rows {
			ids = append(ids, row.String("subjectId"))
		}
		want := []string{"GTEX-1117F", "GTEX-111CU", "GTEX-111FC"}
		if !reflect.DeepEqual(ids, want) {
			t.Errorf("got %v want %v", ids, want)
		}
	})

	t.Run("sends the dataset and page size", func(t *testing.T) {
		var mu sync.Mutex
		var queries []string
		s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			queries = append(queries, r.URL.RawQuery)
			mu.Unlock()
			io.WriteString(w, `{"data": [], "paging_info": {"numberOfPages": 1}}`)
		}))
		defer s.Close()
		c := NewGTExClient(s.Client(), GTExConfig{DatasetID: "gtex_v10", ItemsPerPage: 100, SampleEndpoint: s.URL + "/sample"})
		if _, err := c.Samples(ctx); err != nil {
			t.Fatalf("cannot read samples: %q", err)
		}
		want := []string{"datasetId=gtex_v10&itemsPerPage=100&page=0"}
		if !reflect.DeepEqual(queries, want) {
			t.Errorf("got %v want %v", queries, want)
		}
	})

	t.Run("file list skips the first fileset", func(t *testing.T) {
		filesets, err := client.Filesets(ctx)
		if err != nil {
			t.Fatalf("cannot read file list: %q", err)
		}
		var names []string
		for _, fs := range filesets {
			names = append(names, fs.Name)
		}
		if want := []string{"eQTL", "Annotations"}; !reflect.DeepEqual(names, want) {
			t.Errorf("got %v want %v", names, want)
		}
		if len(filesets[0].Files) != 2 {
			t.Errorf("got %d eQTL files want 2", len(filesets[0].Files))
		}
	})

	t.Run("unknown file dataset", func(t *testing.T) {
		other := cfg
		other.FileDataset = "GTEx Analysis V6"
		if _, err := NewGTExClient(server.Client(), other).Filesets(ctx); err == nil {
			t.Errorf("no error for a missing dataset")
		}
	})

	t.Run("http errors are returned", func(t *testing.T) {
		other := cfg
		other.SubjectEndpoint = server.URL + "/gtex/api/v2/dataset/missing"
		_, err := NewGTExClient(server.Client(), other).Subjects(ctx)
		var statusErr *StatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
			t.Errorf("got %v want a 404 *StatusError", err)
		}
	})
}

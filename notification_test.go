package fhir_etl

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

var testManifest = &Manifest{
	RunID:  "01JA0000000000000000000000",
	Cohort: "gtex",
	Files:  []ManifestFile{{ResourceType: PatientType, Name: "Patient.ndjson", Records: 3}},
}

func TestSlackNotifier(t *testing.T) {

	t.Run("posts the run summary", func(t *testing.T) {
		var got map[string]string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("got content type %q", r.Header.Get("Content-Type"))
			}
			body, _ := io.ReadAll(r.Body)
			json.Unmarshal(body, &got)
			io.WriteString(w, "ok")
		}))
		defer server.Close()

		if err := NewSlackNotifier(server.URL).Notify(context.Background(), testManifest); err != nil {
			t.Fatalf("cannot notify slack: %q", err)
		}
		if got["text"] != testManifest.Summary() {
			t.Errorf("got %q want %q", got["text"], testManifest.Summary())
		}
	})

	t.Run("webhook errors are returned", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "invalid_token", http.StatusForbidden)
		}))
		defer server.Close()

		err := NewSlackNotifier(server.URL).Notify(context.Background(), testManifest)
		want := "slack webhook returned 403: invalid_token"
		if err == nil || err.Error() != want {
			t.Errorf("got %v want %q", err, want)
		}
	})
}

func TestNATSNotifier(t *testing.T) {
	conn := &fakeNATS{}
	n := &NATSNotifier{conn: conn, subject: "fhir-etl.runs"}
	if err := n.Notify(context.Background(), testManifest); err != nil {
		t.Fatalf("cannot notify nats: %q", err)
	}
	msgs := conn.published["fhir-etl.runs"]
	if len(msgs) != 1 {
		t.Fatalf("got %d messages want 1", len(msgs))
	}
	var got Manifest
	if err := json.Unmarshal(msgs[0], &got); err != nil {
		t.Fatalf("cannot unmarshal message: %q", err)
	}
	if got.RunID != testManifest.RunID {
		t.Errorf("got run %q want %q", got.RunID, testManifest.RunID)
	}
	if !conn.flushed {
		t.Errorf("connection not flushed")
	}
	n.Close()
	if !conn.closed {
		t.Errorf("connection not closed")
	}
}

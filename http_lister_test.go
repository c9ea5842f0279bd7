package fhir_etl

import (
	"context"
	"reflect"
	"testing"
)

func TestHTTPLister(t *testing.T) {
	server := newSourceServer(t)

	got, err := NewHTTPLister(server.Client(), server.URL+"/1kg/vcf", "vcf").List(context.Background())
	if err != nil {
		t.Fatalf("cannot list: %q", err)
	}
	want := []RemoteFile{
		{Name: OneKGFileNames[0], Size: 2048, LastModified: testModified},
		{Name: OneKGFileNames[1], Size: 2048, LastModified: testModified},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
	for i := range want {
		if got[i].Name != want[i].Name || got[i].Size != want[i].Size || !got[i].LastModified.Equal(want[i].LastModified) {
			t.Errorf("got %+v want %+v", got[i], want[i])
		}
	}
}

func TestIndexLinks(t *testing.T) {
	got, err := indexLinks([]byte(OneKGIndexHTML))
	if err != nil {
		t.Fatalf("cannot parse index: %q", err)
	}
	want := append(append([]string(nil), OneKGFileNames...), "README.20141104")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v want %v", got, want)
	}
}

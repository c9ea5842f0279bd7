package fhir_etl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/databricks/databricks-sdk-go/service/files"
	"github.com/databricks/databricks-sdk-go/service/pipelines"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var testModified = time.Date(2015, time.February, 18, 10, 46, 1, 0, time.UTC)

// newSourceServer serves the cohort source documents of shared_testing.go.
func newSourceServer(t testing.TB) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/1kg/sample_info.txt", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, OneKGSampleSheet)
	})
	mux.HandleFunc("/1kg/vcf/header", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, OneKGVCFHeader)
	})
	mux.HandleFunc("/1kg/vcf/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/1kg/vcf/" {
			io.WriteString(w, OneKGIndexHTML)
			return
		}
		w.Header().Set("Content-Length", "2048")
		w.Header().Set("Last-Modified", testModified.Format(http.TimeFormat))
		if r.Method == http.MethodHead {
			return
		}
		w.Write(make([]byte, 2048))
	})
	mux.HandleFunc("/gtex/api/v2/dataset/subject", func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil || n < 0 || n >= len(GTExSubjectPages) {
			http.Error(w, "no such page", http.StatusNotFound)
			return
		}
		io.WriteString(w, GTExSubjectPages[n])
	})
	mux.HandleFunc("/gtex/api/v2/dataset/sample", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, GTExSamplePage)
	})
	mux.HandleFunc("/gtex/api/v2/dataset/fileList", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, GTExFileList)
	})
	mux.HandleFunc("/gtex/SampleAttributesDS.txt", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, GTExSampleAttributes)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// testOneKGConfig is the built in 1kgenomes cohort with its sources moved to
// the test server. Minting settings are unchanged.
func testOneKGConfig(t testing.TB, baseURL string) CohortConfig {
	t.Helper()
	c := DefaultCohorts()[KindOneKGenomes]
	c.SampleSheetURL = baseURL + "/1kg/sample_info.txt"
	c.Files.BaseURL = baseURL + "/1kg/vcf"
	c.Files.HeaderURL = baseURL + "/1kg/vcf/header"
	return c
}

func testGTExConfig(t testing.TB, baseURL string) CohortConfig {
	t.Helper()
	c := DefaultCohorts()[KindGTEx]
	c.GTEx.SubjectEndpoint = baseURL + "/gtex/api/v2/dataset/subject"
	c.GTEx.SampleEndpoint = baseURL + "/gtex/api/v2/dataset/sample"
	c.GTEx.FileEndpoint = baseURL + "/gtex/api/v2/dataset/fileList"
	c.GTEx.SampleAttributesURL = baseURL + "/gtex/SampleAttributesDS.txt"
	return c
}

func testTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("fhir-etl-test")
}

func newTestValidator(t testing.TB) *SchemaValidator {
	t.Helper()
	v, err := NewSchemaValidator()
	if err != nil {
		t.Fatalf("cannot create schema validator: %q", err)
	}
	return v
}

// fakeValidator accepts every record except those whose id is rejected.
type fakeValidator struct {
	rejected map[string]bool
}

func (f fakeValidator) Validate(resourceType string, r Resource) (Resource, error) {
	if f.rejected[r.ID()] {
		return nil, &SchemaError{ResourceType: resourceType, Path: "id", Message: "rejected"}
	}
	return r, nil
}

type fakeLister struct {
	files []RemoteFile
	err   error
}

func (f fakeLister) List(context.Context) ([]RemoteFile, error) {
	return f.files, f.err
}

type fakeFTPConn struct {
	names    []string
	sizes    map[string]int64
	times    map[string]time.Time
	loginErr error
	dir      string
	quit     bool
}

func (f *fakeFTPConn) Login(user, password string) error { return f.loginErr }

func (f *fakeFTPConn) ChangeDir(path string) error {
	f.dir = path
	return nil
}

func (f *fakeFTPConn) NameList(string) ([]string, error) { return f.names, nil }

func (f *fakeFTPConn) FileSize(path string) (int64, error) {
	size, ok := f.sizes[path]
	if !ok {
		return 0, errors.New("550 SIZE not allowed")
	}
	return size, nil
}

func (f *fakeFTPConn) GetTime(path string) (time.Time, error) {
	mt, ok := f.times[path]
	if !ok {
		return time.Time{}, errors.New("550 MDTM not allowed")
	}
	return mt, nil
}

func (f *fakeFTPConn) Quit() error {
	f.quit = true
	return nil
}

type fakeS3 struct {
	objects      map[string][]byte
	contentTypes map[string]string
	tamper       func([]byte) []byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	key := *params.Bucket + "/" + *params.Key
	f.objects[key] = b
	if params.ContentType != nil {
		f.contentTypes[key] = *params.ContentType
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[*params.Bucket+"/"+*params.Key]
	if !ok {
		return nil, fmt.Errorf("NoSuchKey: %s", *params.Key)
	}
	if f.tamper != nil {
		b = f.tamper(append([]byte(nil), b...))
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *params.Bucket+"/"+*params.Key)
	return &s3.DeleteObjectOutput{}, nil
}

type fakeFiles struct {
	uploads   map[string][]byte
	overwrite map[string]bool
}

func (f *fakeFiles) Upload(ctx context.Context, request files.UploadRequest) error {
	defer request.Contents.Close()
	b, err := io.ReadAll(request.Contents)
	if err != nil {
		return err
	}
	if f.uploads == nil {
		f.uploads = map[string][]byte{}
		f.overwrite = map[string]bool{}
	}
	f.uploads[request.FilePath] = b
	f.overwrite[request.FilePath] = request.Overwrite
	return nil
}

type fakePipelines struct {
	all      []pipelines.PipelineStateInfo
	waited   []string
	started  []string
	startErr error
}

func (f *fakePipelines) ListPipelinesAll(ctx context.Context, request pipelines.ListPipelinesRequest) ([]pipelines.PipelineStateInfo, error) {
	return f.all, nil
}

func (f *fakePipelines) WaitGetPipelineIdle(ctx context.Context, pipelineId string, timeout time.Duration, callback func(*pipelines.GetPipelineResponse)) (*pipelines.GetPipelineResponse, error) {
	f.waited = append(f.waited, pipelineId)
	return &pipelines.GetPipelineResponse{PipelineId: pipelineId}, nil
}

func (f *fakePipelines) StartUpdate(ctx context.Context, request pipelines.StartUpdate) (*pipelines.StartUpdateResponse, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started = append(f.started, request.PipelineId)
	return &pipelines.StartUpdateResponse{UpdateId: "update-1"}, nil
}

type fakeNATS struct {
	published map[string][][]byte
	flushed   bool
	closed    bool
}

func (f *fakeNATS) Publish(subj string, data []byte) error {
	if f.published == nil {
		f.published = map[string][][]byte{}
	}
	f.published[subj] = append(f.published[subj], data)
	return nil
}

func (f *fakeNATS) FlushWithContext(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("context requires a deadline")
	}
	f.flushed = true
	return nil
}

func (f *fakeNATS) Close() { f.closed = true }

type fakePublisher struct {
	mu           sync.Mutex
	keys         []string
	objects      map[string][]byte
	contentTypes map[string]string
}

func (f *fakePublisher) Name() string { return "fake" }

func (f *fakePublisher) Put(ctx context.Context, key string, content []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = map[string][]byte{}
		f.contentTypes = map[string]string{}
	}
	f.keys = append(f.keys, key)
	f.objects[key] = append([]byte(nil), content...)
	f.contentTypes[key] = contentType
	return nil
}

type fakeNotifier struct {
	manifests []*Manifest
	err       error
}

func (f *fakeNotifier) Notify(ctx context.Context, m *Manifest) error {
	f.manifests = append(f.manifests, m)
	return f.err
}

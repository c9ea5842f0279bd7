package fhir_etl

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Transformer runs a cohort end to end: fetch, map, clean, merge write, then
// record the run in a manifest and hand it to the publishers and notifiers.
type Transformer struct {
	Cohort    Cohort
	Writer    *MergeWriter
	Client    *http.Client
	Lister    FileLister
	Tracer    trace.Tracer
	Overwrite bool

	Publishers []Publisher
	Compress   bool
	Notifiers  []Notifier

	stats    map[string]MergeStats
	rejected int
}

func NewTransformer(cohort Cohort, writer *MergeWriter, client *http.Client, lister FileLister, tracer trace.Tracer) *Transformer {
	return &Transformer{
		Cohort: cohort,
		Writer: writer,
		Client: clientOrDefault(client),
		Lister: lister,
		Tracer: tracer,
		stats:  map[string]MergeStats{},
	}
}

const (
	runMsg            = "Running cohort transform"
	ProjectKey        = "Project"
	ResourceTypeKey   = "Resource Type"
	RecordCountKey    = "Record Count"
	writeMsg          = "Writing resources"
	writeErrMsg       = "Error writing resources"
	writeSucMsg       = "Successfully wrote resources"
	singletonMsg      = "Writing singleton resource"
	singletonErrMsg   = "Error writing singleton resource"
	singletonSucMsg   = "Successfully wrote singleton resource"
	manifestMsg       = "Writing run manifest"
	manifestErrMsg    = "Error writing run manifest"
	manifestSucMsg    = "Successfully wrote run manifest"
	publishMsg        = "Publishing output"
	publishErrMsg     = "Error publishing output"
	publishSucMsg     = "Successfully published output"
	notifyMsg         = "Announcing run"
	notifyErrMsg      = "Error announcing run"
	notifySucMsg      = "Successfully announced run"
	unsupportedKindEr = "Unsupported cohort kind"
)

// Run transforms the cohort. Transport and file errors abort the run and are
// returned; records failing validation are logged and left out. Files
// written before a failure stay written.
func (t *Transformer) Run(ctx context.Context) (*Manifest, error) {
	runCtx, runSpan := t.Tracer.Start(ctx, runMsg)
	runSpan.SetAttributes(attribute.String(ProjectKey, t.Cohort.Config.Name))
	started := time.Now()

	var err error
	switch t.Cohort.Config.Kind {
	case KindOneKGenomes:
		err = t.runOneKG(runCtx)
	case KindGTEx:
		err = t.runGTEx(runCtx)
	default:
		err = fmt.Errorf("%s: %q", unsupportedKindEr, t.Cohort.Config.Kind)
	}
	if handleError(err, fmt.Sprintf("Error transforming %s", t.Cohort.Config.Name), runSpan) {
		return nil, err
	}

	manifest, err := t.writeManifest(runCtx, started)
	if handleError(err, manifestErrMsg, runSpan) {
		return nil, err
	}
	if err := t.publish(runCtx, manifest); handleError(err, publishErrMsg, runSpan) {
		return manifest, err
	}
	if err := t.notify(runCtx, manifest); handleError(err, notifyErrMsg, runSpan) {
		return manifest, err
	}
	runSpan.End()
	return manifest, nil
}

// write cleans and merges records of one resource type.
func (t *Transformer) write(ctx context.Context, resourceType string, records []Resource) error {
	_, span := t.Tracer.Start(ctx, writeMsg)
	span.SetAttributes(attribute.String(ResourceTypeKey, resourceType), attribute.Int(RecordCountKey, len(records)))
	stats, err := t.Writer.Write(resourceType, records, t.Overwrite)
	if handleError(err, writeErrMsg, span) {
		return fmt.Errorf("Failed to write %s: %w", resourceType, err)
	}
	t.rejected += stats.Dropped
	t.stats[resourceType] = stats
	log.Printf("%s: %d existing, %d added, %d updated, %d kept, %d dropped, %d total",
		resourceType, stats.Existing, stats.Added, stats.Updated, stats.Kept, stats.Dropped, stats.Total)
	span.AddEvent(writeSucMsg)
	span.End()
	return nil
}

// writeSingleton writes the study or the group. A singleton failing
// validation is reported and skipped, the same as any other record.
func (t *Transformer) writeSingleton(ctx context.Context, resourceType string, record any) error {
	_, span := t.Tracer.Start(ctx, singletonMsg)
	span.SetAttributes(attribute.String(ResourceTypeKey, resourceType))
	r, err := ToResource(record)
	if handleError(err, singletonErrMsg, span) {
		return err
	}
	err = t.Writer.WriteSingleton(resourceType, r)
	var schemaErr *SchemaError
	if errors.As(err, &schemaErr) {
		t.rejected++
		log.Printf("Skipping %s: %v", resourceType, err)
		span.AddEvent(fmt.Sprintf("%s: %v", singletonErrMsg, err))
		span.End()
		return nil
	}
	if handleError(err, singletonErrMsg, span) {
		return err
	}
	t.stats[resourceType] = MergeStats{ResourceType: resourceType, Added: 1, Total: 1}
	span.AddEvent(singletonSucMsg)
	span.End()
	return nil
}

func (t *Transformer) writeManifest(ctx context.Context, started time.Time) (*Manifest, error) {
	_, span := t.Tracer.Start(ctx, manifestMsg)
	m, err := BuildManifest(t.Writer.Dir(), t.Cohort, t.stats, started)
	if handleError(err, manifestErrMsg, span) {
		return nil, err
	}
	m.Overwrite = t.Overwrite
	m.Rejected = t.rejected
	if err := m.Write(t.Writer.Dir()); handleError(err, manifestErrMsg, span) {
		return nil, err
	}
	span.SetAttributes(attribute.String("Run ID", m.RunID))
	span.AddEvent(manifestSucMsg)
	span.End()
	return m, nil
}

func (t *Transformer) publish(ctx context.Context, m *Manifest) error {
	if len(t.Publishers) == 0 {
		return nil
	}
	_, span := t.Tracer.Start(ctx, publishMsg)
	for _, p := range t.Publishers {
		if err := PublishOutput(ctx, p, t.Writer.Dir(), m, t.Compress); handleError(err, publishErrMsg, span) {
			return err
		}
	}
	span.AddEvent(publishSucMsg)
	span.End()
	return nil
}

func (t *Transformer) notify(ctx context.Context, m *Manifest) error {
	if len(t.Notifiers) == 0 {
		return nil
	}
	_, span := t.Tracer.Start(ctx, notifyMsg)
	for _, n := range t.Notifiers {
		if err := n.Notify(ctx, m); handleError(err, notifyErrMsg, span) {
			return err
		}
	}
	span.AddEvent(notifySucMsg)
	span.End()
	return nil
}

func toResources[T any](items []T) ([]Resource, error) {
	out := make([]Resource, 0, len(items))
	for _, item := range items {
		r, err := ToResource(item)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func handleError(err error, message string, span trace.Span) bool {
	if err != nil {
		msg := fmt.Sprintf("%s: %v", message, err)
		span.AddEvent(msg)
		span.SetStatus(codes.Error, msg)
		span.End()
		return true
	}
	return false
}

package fhir_etl

import (
	"context"
	"fmt"
	"log"
	"sort"

	"go.opentelemetry.io/otel/attribute"
)

const (
	oneKGSamplesMsg      = "Transforming 1000 Genomes sample sheet"
	oneKGSamplesErrMsg   = "Error transforming 1000 Genomes sample sheet"
	oneKGSamplesSucMsg   = "Successfully transformed 1000 Genomes sample sheet"
	oneKGFilesMsg        = "Transforming 1000 Genomes release files"
	oneKGFilesErrMsg     = "Error transforming 1000 Genomes release files"
	oneKGFilesSucMsg     = "Successfully transformed 1000 Genomes release files"
	SampleSheetKey       = "Sample Sheet"
	ReleaseDirectoryKey  = "Release Directory"
	headerSampleCountKey = "Header Sample Count"
)

func (t *Transformer) runOneKG(ctx context.Context) error {
	if err := t.oneKGSamples(ctx); err != nil {
		return err
	}
	return t.oneKGFiles(ctx)
}

// oneKGSamples writes the study and the participants, enrollments and
// specimens of the sample sheet.
func (t *Transformer) oneKGSamples(ctx context.Context) error {
	spanCtx, span := t.Tracer.Start(ctx, oneKGSamplesMsg)
	span.SetAttributes(attribute.String(SampleSheetKey, t.Cohort.Config.SampleSheetURL))

	rows, err := FetchTSV(spanCtx, t.Client, t.Cohort.Config.SampleSheetURL)
	if handleError(err, oneKGSamplesErrMsg, span) {
		return err
	}
	log.Printf("Converting %d sample sheet rows", len(rows))

	c := t.Cohort
	var patients []Patient
	var subjects []ResearchSubject
	var specimens []Specimen
	for i, row := range rows {
		if _, ok := row.Get(sampleColumn); !ok {
			log.Printf("Row %d of the sample sheet has no %s", i+1, sampleColumn)
		}
		patients = append(patients, c.OneKGPatient(row))
		subjects = append(subjects, c.OneKGResearchSubject(row))
		specimens = append(specimens, c.OneKGSpecimen(row))
	}

	if err := t.writeSingleton(spanCtx, ResearchStudyType, c.ResearchStudy()); handleError(err, oneKGSamplesErrMsg, span) {
		return err
	}
	if err := writeTyped(t, spanCtx, PatientType, patients); handleError(err, oneKGSamplesErrMsg, span) {
		return err
	}
	if err := writeTyped(t, spanCtx, ResearchSubjectType, subjects); handleError(err, oneKGSamplesErrMsg, span) {
		return err
	}
	if err := writeTyped(t, spanCtx, SpecimenType, specimens); handleError(err, oneKGSamplesErrMsg, span) {
		return err
	}
	span.AddEvent(oneKGSamplesSucMsg)
	span.End()
	return nil
}

// oneKGFiles writes a DocumentReference per release file and the group of
// specimens named in the release's VCF header. The group only lists samples
// that already have a Specimen in the output.
func (t *Transformer) oneKGFiles(ctx context.Context) error {
	spanCtx, span := t.Tracer.Start(ctx, oneKGFilesMsg)
	files := t.Cohort.Config.Files
	span.SetAttributes(attribute.String(ReleaseDirectoryKey, files.BaseURL))
	if t.Lister == nil {
		err := fmt.Errorf("no file lister configured")
		handleError(err, oneKGFilesErrMsg, span)
		return err
	}

	remote, err := t.Lister.List(spanCtx)
	if handleError(err, oneKGFilesErrMsg, span) {
		return err
	}
	log.Printf("Found %d release files", len(remote))

	headerIDs, err := FetchVCFSampleIDs(spanCtx, t.Client, files.HeaderURL)
	if handleError(err, oneKGFilesErrMsg, span) {
		return err
	}
	span.SetAttributes(attribute.Int(headerSampleCountKey, len(headerIDs)))

	known, err := t.Writer.IdentifierValues(SpecimenType, t.Cohort.Config.IdentifierSystem)
	if handleError(err, oneKGFilesErrMsg, span) {
		return err
	}
	members := intersect(headerIDs, known)
	log.Printf("%d of %d header samples found in %s", len(members), len(headerIDs), t.Writer.Path(SpecimenType))

	group := t.Cohort.OneKGGroup(members)
	groupRef := &Reference{Reference: GroupType + "/" + group.ID}
	docs := make([]DocumentReference, 0, len(remote))
	for _, f := range remote {
		doc := t.Cohort.OneKGDocumentReference(f)
		doc.Subject = groupRef
		docs = append(docs, doc)
	}

	if err := t.writeSingleton(spanCtx, GroupType, group); handleError(err, oneKGFilesErrMsg, span) {
		return err
	}
	if err := writeTyped(t, spanCtx, DocumentReferenceType, docs); handleError(err, oneKGFilesErrMsg, span) {
		return err
	}
	span.AddEvent(oneKGFilesSucMsg)
	span.End()
	return nil
}

// intersect returns the sorted, distinct ids that are also in known.
func intersect(ids []string, known map[string]bool) []string {
	seen := map[string]bool{}
	var out []string
	for _, id := range ids {
		if known[id] && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func writeTyped[T any](t *Transformer, ctx context.Context, resourceType string, items []T) error {
	records, err := toResources(items)
	if err != nil {
		return err
	}
	return t.write(ctx, resourceType, records)
}

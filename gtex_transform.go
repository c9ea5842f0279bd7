package fhir_etl

import (
	"context"
	"log"

	"go.opentelemetry.io/otel/attribute"
)

const (
	gtexSubjectsMsg    = "Transforming GTEx subjects"
	gtexSubjectsErrMsg = "Error transforming GTEx subjects"
	gtexSubjectsSucMsg = "Successfully transformed GTEx subjects"
	gtexSamplesMsg     = "Transforming GTEx samples"
	gtexSamplesErrMsg  = "Error transforming GTEx samples"
	gtexSamplesSucMsg  = "Successfully transformed GTEx samples"
	gtexFilesMsg       = "Transforming GTEx files"
	gtexFilesErrMsg    = "Error transforming GTEx files"
	gtexFilesSucMsg    = "Successfully transformed GTEx files"
	DatasetKey         = "Dataset"
)

func (t *Transformer) runGTEx(ctx context.Context) error {
	client := NewGTExClient(t.Client, t.Cohort.Config.GTEx)
	if err := t.writeSingleton(ctx, ResearchStudyType, t.Cohort.ResearchStudy()); err != nil {
		return err
	}
	if err := t.gtexSubjects(ctx, client); err != nil {
		return err
	}
	if err := t.gtexSamples(ctx, client); err != nil {
		return err
	}
	return t.gtexFiles(ctx, client)
}

func (t *Transformer) gtexSubjects(ctx context.Context, client *GTExClient) error {
	spanCtx, span := t.Tracer.Start(ctx, gtexSubjectsMsg)
	span.SetAttributes(attribute.String(DatasetKey, t.Cohort.Config.GTEx.DatasetID))

	rows, err := client.Subjects(spanCtx)
	if handleError(err, gtexSubjectsErrMsg, span) {
		return err
	}
	log.Printf("Converting %d subjects", len(rows))
	var patients []Patient
	var subjects []ResearchSubject
	for _, row := range rows {
		patients = append(patients, t.Cohort.GTExPatient(row))
		subjects = append(subjects, t.Cohort.GTExResearchSubject(row))
	}
	if err := writeTyped(t, spanCtx, PatientType, patients); handleError(err, gtexSubjectsErrMsg, span) {
		return err
	}
	if err := writeTyped(t, spanCtx, ResearchSubjectType, subjects); handleError(err, gtexSubjectsErrMsg, span) {
		return err
	}
	span.AddEvent(gtexSubjectsSucMsg)
	span.End()
	return nil
}

// gtexSamples writes the specimens and the group of those also listed in the
// sample attribute annotations.
func (t *Transformer) gtexSamples(ctx context.Context, client *GTExClient) error {
	spanCtx, span := t.Tracer.Start(ctx, gtexSamplesMsg)
	span.SetAttributes(attribute.String(DatasetKey, t.Cohort.Config.GTEx.DatasetID))

	rows, err := client.Samples(spanCtx)
	if handleError(err, gtexSamplesErrMsg, span) {
		return err
	}
	log.Printf("Converting %d samples", len(rows))
	specimens := make([]Specimen, 0, len(rows))
	aliquots := map[string]bool{}
	for _, row := range rows {
		specimens = append(specimens, t.Cohort.GTExSpecimen(row))
		if id, ok := row.Get(aliquotIDField); ok {
			aliquots[id] = true
		}
	}
	if err := writeTyped(t, spanCtx, SpecimenType, specimens); handleError(err, gtexSamplesErrMsg, span) {
		return err
	}

	annotations, err := FetchTSV(spanCtx, t.Client, t.Cohort.Config.GTEx.SampleAttributesURL)
	if handleError(err, gtexSamplesErrMsg, span) {
		return err
	}
	members := AnnotatedAliquots(annotations, aliquots)
	log.Printf("intersection id count: %d", len(members))
	if err := t.writeSingleton(spanCtx, GroupType, t.Cohort.GTExGroup(members)); handleError(err, gtexSamplesErrMsg, span) {
		return err
	}
	span.AddEvent(gtexSamplesSucMsg)
	span.End()
	return nil
}

func (t *Transformer) gtexFiles(ctx context.Context, client *GTExClient) error {
	spanCtx, span := t.Tracer.Start(ctx, gtexFilesMsg)
	span.SetAttributes(attribute.String(DatasetKey, t.Cohort.Config.GTEx.FileDataset))

	filesets, err := client.Filesets(spanCtx)
	if handleError(err, gtexFilesErrMsg, span) {
		return err
	}
	var docs []DocumentReference
	for _, fs := range filesets {
		for _, f := range fs.Files {
			docs = append(docs, t.Cohort.GTExDocumentReference(fs, f))
		}
	}
	log.Printf("Converting %d files of %d filesets", len(docs), len(filesets))
	if err := writeTyped(t, spanCtx, DocumentReferenceType, docs); handleError(err, gtexFilesErrMsg, span) {
		return err
	}
	span.AddEvent(gtexFilesSucMsg)
	span.End()
	return nil
}

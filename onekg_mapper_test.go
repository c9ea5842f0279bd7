package fhir_etl

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func oneKGRows(t *testing.T) []Row {
	t.Helper()
	rows, err := ReadTSV(strings.NewReader(OneKGSampleSheet))
	if err != nil {
		t.Fatalf("cannot read sample sheet: %q", err)
	}
	return rows
}

func TestOneKGMapper(t *testing.T) {
	c := NewCohort(DefaultCohorts()[KindOneKGenomes])
	rows := oneKGRows(t)

	t.Run("two samples give two patients in one study", func(t *testing.T) {
		first, second := c.OneKGPatient(rows[0]), c.OneKGPatient(rows[1])
		if first.ID != "bc1aa290-658b-528d-bc9e-a1ce3de0a819" {
			t.Errorf("got HG00001 id %q", first.ID)
		}
		if second.ID != "92db0734-7b1b-515c-8f01-c02cfeb04531" {
			t.Errorf("got HG00002 id %q", second.ID)
		}
		if again := c.OneKGPatient(rows[0]); again.ID != first.ID {
			t.Errorf("id not reproducible: %q then %q", first.ID, again.ID)
		}
		want := "ResearchStudy/4502d1f5-5275-5be7-9942-21f7fb8a6f70"
		for _, p := range []Patient{first, second} {
			last := p.Extension[len(p.Extension)-1]
			if last.URL != PartOfStudyURL || last.ValueReference == nil || last.ValueReference.Reference != want {
				t.Errorf("patient %s part-of-study got %+v want %q", p.ID, last, want)
			}
		}
	})

	t.Run("patient extensions", func(t *testing.T) {
		got := c.OneKGPatient(rows[0])
		want := []Extension{
			StringExtension(SexExtensionURL, "male"),
			StringExtension(RaceExtensionURL, "British in England and Scotland"),
			StringExtension(PopulationURL, "GBR"),
			c.PartOfStudy(),
		}
		if !reflect.DeepEqual(got.Extension, want) {
			t.Errorf("got %+v want %+v", got.Extension, want)
		}
		wantIdentifier := []Identifier{{Use: "official", System: c.Config.IdentifierSystem, Value: "HG00001"}}
		if !reflect.DeepEqual(got.Identifier, wantIdentifier) {
			t.Errorf("got %+v want %+v", got.Identifier, wantIdentifier)
		}
	})

	t.Run("research subject links patient and study", func(t *testing.T) {
		got := c.OneKGResearchSubject(rows[0])
		if got.Subject.Reference != "Patient/bc1aa290-658b-528d-bc9e-a1ce3de0a819" {
			t.Errorf("got subject %q", got.Subject.Reference)
		}
		if got.Study.Reference != c.StudyReference() {
			t.Errorf("got study %q want %q", got.Study.Reference, c.StudyReference())
		}
	})

	t.Run("specimen placeholders", func(t *testing.T) {
		lcl := c.OneKGSpecimen(rows[0])
		if got := lcl.Type.Coding[0]; got.Code != "LCL" || got.Display != "Lymphoblastoid Cell Line" {
			t.Errorf("got type %+v", got)
		}
		blood := c.OneKGSpecimen(rows[1])
		if got := blood.Type.Coding[0]; got.Code != "Whole blood" || got.Display != "Whole blood" {
			t.Errorf("got type %+v", got)
		}
		if got := blood.Collection.Method.Coding[0].Code; got != NotSpecified {
			t.Errorf("got method %q want %q", got, NotSpecified)
		}
		if got := c.OneKGSpecimen(Row{}).Subject; got.Display != NotSpecified || got.Reference != "" {
			t.Errorf("got subject %+v for a row without sample", got)
		}
	})

	t.Run("document reference", func(t *testing.T) {
		f := RemoteFile{Name: OneKGFileNames[0], Size: 1024, LastModified: testModified}
		got := c.OneKGDocumentReference(f)
		if got.Date != "2015-02-18T10:46:01+00:00" {
			t.Errorf("got date %q", got.Date)
		}
		if got.Category[0].Coding[0].Code != "1" || got.Category[0].Coding[0].Display != "Chromosome 1" {
			t.Errorf("got category %+v", got.Category)
		}
		att := got.Content[0].Attachment
		if att.Title != "file:///"+f.Name || att.Size != 1024 || att.ContentType != "text/vcf" {
			t.Errorf("got attachment %+v", att)
		}
		if got.ID != c.Minter.MintIdentifier(DocumentReferenceType, Identifier{System: c.Config.Files.FTPDirectory, Value: f.Name}) {
			t.Errorf("id not minted from the release directory")
		}
	})

	t.Run("group lists specimens", func(t *testing.T) {
		got := c.OneKGGroup([]string{"HG00001", "HG00002"})
		if got.Identifier[0].Value != c.Config.Files.HeaderURL {
			t.Errorf("got identifier %+v", got.Identifier)
		}
		if len(got.Member) != 2 || got.Member[0].Entity.Reference != c.Ref(SpecimenType, "HG00001") {
			t.Errorf("got members %+v", got.Member)
		}
	})
}

func TestOneKGRecordsValidate(t *testing.T) {
	v := newTestValidator(t)
	c := NewCohort(DefaultCohorts()[KindOneKGenomes])
	var records []any
	for _, row := range oneKGRows(t) {
		records = append(records, c.OneKGPatient(row), c.OneKGResearchSubject(row), c.OneKGSpecimen(row))
	}
	records = append(records,
		c.ResearchStudy(),
		c.OneKGGroup([]string{"HG00001"}),
		c.OneKGDocumentReference(RemoteFile{Name: OneKGFileNames[1], LastModified: time.Now()}),
	)
	for _, record := range records {
		r, err := ToResource(record)
		if err != nil {
			t.Fatalf("cannot convert %T: %q", record, err)
		}
		if _, err := v.Validate(r.ResourceType(), SanitizeResource(r)); err != nil {
			t.Errorf("%s %s rejected: %q", r.ResourceType(), r.ID(), err)
		}
	}
}

package fhir_etl

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// GTEx API fields.
const (
	subjectIDField  = "subjectId"
	sexField        = "sex"
	ageBracketField = "ageBracket"
	hardyScaleField = "hardyScale"
	aliquotIDField  = "aliquotId"
	dataTypeField   = "dataType"
	freezeTypeField = "freezeType"
	fileNameField   = "name"
	fileTypeField   = "type"
	fileSizeField   = "size"
	releaseField    = "release"
)

// GTExPatient maps a subject record. Subjects with a Hardy scale are deceased
// and carry the circumstance of death; living subjects carry an estimated
// birth year range derived from their age bracket.
func (c Cohort) GTExPatient(row Row) Patient {
	subject := row.String(subjectIDField)
	hardy, deceased := row.Get(hardyScaleField)

	var ext []Extension
	if v, ok := row.Get(sexField); ok {
		ext = append(ext, StringExtension(SexExtensionURL, v))
	}
	if deceased {
		ext = append(ext, StringExtension(DueToExtensionURL, hardy))
	} else if years, ok := BirthYearRange(row.String(ageBracketField), c.Config.GTEx.ReferenceYear); ok {
		ext = append(ext, StringExtension(AgeExtensionURL, years))
	}
	ext = append(ext, c.PartOfStudy())

	return Patient{
		ResourceType:    PatientType,
		ID:              c.MintID(PatientType, subject),
		Meta:            &Meta{Profile: []string{ParticipantProfile}},
		Identifier:      c.official(subject),
		DeceasedBoolean: &deceased,
		Extension:       ext,
	}
}

// BirthYearRange turns an age bracket such as "60-69" into the birth years
// "{year-69} - {year-60}".
func BirthYearRange(bracket string, referenceYear int) (string, bool) {
	lo, hi, found := strings.Cut(bracket, "-")
	if !found {
		return "", false
	}
	from, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return "", false
	}
	to, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%d - %d", referenceYear-to, referenceYear-from), true
}

func (c Cohort) GTExResearchSubject(row Row) ResearchSubject {
	return c.ResearchSubject(row.String(subjectIDField))
}

// GTExSpecimen maps a sample record. Samples are keyed by aliquot.
func (c Cohort) GTExSpecimen(row Row) Specimen {
	aliquot := row.String(aliquotIDField)
	subject, ok := row.Get(subjectIDField)
	dataType := row.StringOr(dataTypeField, "None")
	freeze := row.StringOr(freezeTypeField, NotSpecified)
	return Specimen{
		ResourceType: SpecimenType,
		ID:           c.MintID(SpecimenType, aliquot),
		Meta:         &Meta{Profile: []string{SampleProfile}},
		Identifier:   c.official(aliquot),
		Type: &CodeableConcept{Coding: []Coding{{
			System:  SpecimenTypeSystem,
			Code:    dataType,
			Display: dataType,
		}}},
		Subject: c.subjectReference(subject, ok),
		Collection: &SpecimenCollection{Method: &CodeableConcept{Coding: []Coding{{
			System:  CollectionMethodSys,
			Code:    freeze,
			Display: freeze,
		}}}},
		Extension: []Extension{c.PartOfStudy()},
	}
}

// GTExFileset is one group of downloadable files of a GTEx dataset release.
type GTExFileset struct {
	Name    string `json:"name"`
	Subpath string `json:"subpath"`
	Files   []Row  `json:"files"`
}

// GTExDocumentReference maps one file of a fileset.
func (c Cohort) GTExDocumentReference(fs GTExFileset, file Row) DocumentReference {
	g := c.Config.GTEx
	name := file.String(fileNameField)
	fileType := file.StringOr(fileTypeField, NotSpecified)

	var ext []Extension
	if size, ok := file.Get(fileSizeField); ok {
		ext = append(ext, StringExtension(FileSizeURL, size))
	}
	ext = append(ext, c.PartOfStudy())

	return DocumentReference{
		ResourceType: DocumentReferenceType,
		ID:           c.MintID(DocumentReferenceType, name),
		Identifier:   c.official(name),
		Version:      file.String(releaseField),
		Status:       "superseded",
		Type: &CodeableConcept{Coding: []Coding{{
			System:  g.FileEndpoint,
			Code:    fileType,
			Display: fileType,
		}}},
		Content: []DocumentContent{{
			Attachment: Attachment{
				ContentType: MimeType(name),
				URL:         fmt.Sprintf("%s/%s/%s/", strings.TrimSuffix(g.FileStorageURL, "/"), fs.Subpath, g.FileRelease),
				Title:       name,
			},
			Profile: []ContentProfile{{ValueCoding: &Coding{
				System:  g.FileOverviewSystem,
				Code:    fs.Subpath,
				Display: fs.Name,
			}}},
		}},
		Extension: ext,
	}
}

// TrimSampleID reduces a SampleAttributesDS SAMPID such as
// "GTEX-1117F-0003-SM-58Q7G" to the aliquot id "SM-58Q7G".
func TrimSampleID(sampID string) string {
	parts := strings.Split(strings.TrimSpace(sampID), "-")
	if len(parts) < 2 {
		return strings.TrimSpace(sampID)
	}
	return parts[len(parts)-2] + "-" + parts[len(parts)-1]
}

// AnnotatedAliquots returns, sorted, the aliquot ids present both in the
// sample attribute annotations and in aliquots.
func AnnotatedAliquots(annotations []Row, aliquots map[string]bool) []string {
	seen := map[string]bool{}
	var keys []string
	for _, row := range annotations {
		sampID, ok := row.Get("SAMPID")
		if !ok {
			continue
		}
		id := TrimSampleID(sampID)
		if aliquots[id] && !seen[id] {
			seen[id] = true
			keys = append(keys, id)
		}
	}
	sort.Strings(keys)
	return keys
}

// GTExGroup gathers the annotated specimens. It is minted from the study value
// and identified by the annotation file.
func (c Cohort) GTExGroup(specimenKeys []string) Group {
	study := c.Config.Study.Value
	identifier := Identifier{System: c.Config.GTEx.SampleAttributesURL, Value: study}
	return c.Group(identifier, study, specimenKeys)
}

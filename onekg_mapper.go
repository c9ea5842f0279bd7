package fhir_etl

import "time"

// 1000 Genomes sample sheet columns.
const (
	sampleColumn       = "Sample"
	genderColumn       = "Gender"
	populationColumn   = "Population"
	populationDescCol  = "Population Description"
	dnaSourceColumn    = "DNA Source from Coriell"
	lcPlatformColumn   = "Main project LC platform"
	lymphoblastoidCode = "LCL"
	wholeBlood         = "Whole blood"
)

// OneKGPatient maps a sample sheet row to the participant it was drawn from.
func (c Cohort) OneKGPatient(row Row) Patient {
	sample := row.String(sampleColumn)
	var ext []Extension
	if v, ok := row.Get(genderColumn); ok {
		ext = append(ext, StringExtension(SexExtensionURL, v))
	}
	if v, ok := row.Get(populationDescCol); ok {
		ext = append(ext, StringExtension(RaceExtensionURL, v))
	}
	if v, ok := row.Get(populationColumn); ok {
		ext = append(ext, StringExtension(PopulationURL, v))
	}
	ext = append(ext, c.PartOfStudy())
	return Patient{
		ResourceType: PatientType,
		ID:           c.MintID(PatientType, sample),
		Meta:         &Meta{Profile: []string{ParticipantProfile}},
		Identifier:   c.official(sample),
		Extension:    ext,
	}
}

func (c Cohort) OneKGResearchSubject(row Row) ResearchSubject {
	return c.ResearchSubject(row.String(sampleColumn))
}

// OneKGSpecimen maps a sample sheet row to its DNA sample. Samples are keyed
// by the same "Sample" value as their participant.
func (c Cohort) OneKGSpecimen(row Row) Specimen {
	sample, ok := row.Get(sampleColumn)
	source := row.StringOr(dnaSourceColumn, wholeBlood)
	display := wholeBlood
	if source == lymphoblastoidCode {
		display = "Lymphoblastoid Cell Line"
	}
	platform := row.StringOr(lcPlatformColumn, NotSpecified)
	return Specimen{
		ResourceType: SpecimenType,
		ID:           c.MintID(SpecimenType, sample),
		Meta:         &Meta{Profile: []string{SampleProfile}},
		Identifier:   c.official(sample),
		Type: &CodeableConcept{Coding: []Coding{{
			System:  SpecimenTypeSystem,
			Code:    source,
			Display: display,
		}}},
		Subject: c.subjectReference(sample, ok),
		Collection: &SpecimenCollection{Method: &CodeableConcept{Coding: []Coding{{
			System:  CollectionMethodSys,
			Code:    platform,
			Display: platform,
		}}}},
		Extension: []Extension{c.PartOfStudy()},
	}
}

// RemoteFile is one entry of a release directory listing.
type RemoteFile struct {
	Name         string
	Size         int64
	LastModified time.Time
}

// OneKGDocumentReference maps a release file to a DocumentReference whose
// subject is left for the caller to set.
func (c Cohort) OneKGDocumentReference(f RemoteFile) DocumentReference {
	files := c.Config.Files
	format := DataFormat(f.Name)
	formatCoding := Coding{System: files.DataFormatSystem, Code: format, Display: format}

	var category []CodeableConcept
	if chr := Chromosome(f.Name); chr != "" {
		category = append(category, CodeableConcept{Coding: []Coding{{
			System:  files.ChromosomeSystem,
			Code:    chr,
			Display: "Chromosome " + chr,
		}}})
	}

	attachment := Attachment{
		ContentType: MimeType(f.Name),
		URL:         files.BaseURL,
		Title:       "file:///" + f.Name,
	}
	if f.Size > 0 {
		attachment.Size = f.Size
	}

	return DocumentReference{
		ResourceType: DocumentReferenceType,
		ID:           c.Minter.MintIdentifier(DocumentReferenceType, Identifier{System: files.FTPDirectory, Value: f.Name}),
		Identifier:   []Identifier{{Use: "official", System: files.BaseURL, Value: f.Name}},
		Version:      "1",
		Status:       "current",
		Type:         &CodeableConcept{Coding: []Coding{formatCoding}},
		Category:     category,
		Date:         FormatDate(f.LastModified),
		Content: []DocumentContent{{
			Attachment: attachment,
			Profile:    []ContentProfile{{ValueCoding: &formatCoding}},
		}},
		Extension: []Extension{c.PartOfStudy()},
	}
}

// OneKGGroup gathers the specimens named in the release's VCF header. Its
// identifier is the header's URL.
func (c Cohort) OneKGGroup(specimenKeys []string) Group {
	header := c.Config.Files.HeaderURL
	return c.Group(c.key(header), header, specimenKeys)
}

package fhir_etl

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	PatientType           = "Patient"
	SpecimenType          = "Specimen"
	ResearchSubjectType   = "ResearchSubject"
	ResearchStudyType     = "ResearchStudy"
	DocumentReferenceType = "DocumentReference"
	GroupType             = "Group"
)

// ResourceTypes lists every resource type written by the pipeline, in the
// order output files are produced.
var ResourceTypes = []string{
	ResearchStudyType,
	PatientType,
	ResearchSubjectType,
	SpecimenType,
	GroupType,
	DocumentReferenceType,
}

// singletonTypes are written as one JSON value instead of being merged line by line.
var singletonTypes = map[string]bool{
	ResearchStudyType: true,
	GroupType:         true,
}

func IsSingletonType(resourceType string) bool { return singletonTypes[resourceType] }

const (
	PartOfStudyURL      = "http://fhir-aggregator.org/fhir/StructureDefinition/part-of-study"
	SexExtensionURL     = "https://hl7.org/fhir/us/core/STU3.1.1/StructureDefinition-us-core-sex.html"
	RaceExtensionURL    = "https://hl7.org/fhir/us/core/STU3.1.1/StructureDefinition-us-core-race.html"
	PopulationURL       = "https://nih-ncpi.github.io/ncpi-fhir-ig-2/StructureDefinition-research-population.html"
	AgeExtensionURL     = "https://hl7.org/fhir/extensions/SearchParameter-patient-extensions-Patient-age.html"
	DueToExtensionURL   = "https://hl7.org/fhir/R4B/extension-condition-dueto.html"
	FileSizeURL         = "https://nih-ncpi.github.io/ncpi-fhir-ig-2/StructureDefinition-file-size.html"
	ParticipantProfile  = "https://nih-ncpi.github.io/ncpi-fhir-ig-2/StructureDefinition-ncpi-participant.html"
	SampleProfile       = "https://nih-ncpi.github.io/ncpi-fhir-ig-2/StructureDefinition-ncpi-sample.html"
	SpecimenTypeSystem  = "https://terminology.hl7.org/CodeSystem-v3-SpecimenType.html"
	CollectionMethodSys = "https://terminology.hl7.org/CodeSystem-v2-0488.html"

	NotSpecified = "Not specified"
)

// Resource is the generic form of a FHIR resource as it is sanitized,
// validated and written.
type Resource map[string]any

func (r Resource) ID() string {
	id, _ := r["id"].(string)
	return id
}

func (r Resource) ResourceType() string {
	rt, _ := r["resourceType"].(string)
	return rt
}

// ToResource converts a typed resource to its generic form. Numbers come back
// as json.Number, the same as a record read from an output file.
func ToResource(v any) (Resource, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("Failed to marshal resource: %w", err)
	}
	r, err := DecodeResource(b)
	if err != nil {
		return nil, fmt.Errorf("Failed to unmarshal resource: %w", err)
	}
	return r, nil
}

// DecodeResource decodes one JSON object, keeping numbers as json.Number so
// re-encoding writes them back digit for digit.
func DecodeResource(b []byte) (Resource, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var r Resource
	if err := dec.Decode(&r); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("invalid character after top-level value")
	}
	return r, nil
}

type Identifier struct {
	Use    string `json:"use,omitempty"`
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
	Display   string `json:"display,omitempty"`
}

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

type Meta struct {
	Profile []string `json:"profile,omitempty"`
}

type Extension struct {
	URL            string     `json:"url"`
	ValueString    string     `json:"valueString,omitempty"`
	ValueReference *Reference `json:"valueReference,omitempty"`
}

func StringExtension(url, value string) Extension {
	return Extension{URL: url, ValueString: value}
}

func PartOfStudy(studyReference string) Extension {
	return Extension{URL: PartOfStudyURL, ValueReference: &Reference{Reference: studyReference}}
}

type Patient struct {
	ResourceType    string       `json:"resourceType"`
	ID              string       `json:"id"`
	Meta            *Meta        `json:"meta,omitempty"`
	Identifier      []Identifier `json:"identifier,omitempty"`
	DeceasedBoolean *bool        `json:"deceasedBoolean,omitempty"`
	Extension       []Extension  `json:"extension,omitempty"`
}

type ResearchSubject struct {
	ResourceType string       `json:"resourceType"`
	ID           string       `json:"id"`
	Identifier   []Identifier `json:"identifier,omitempty"`
	Status       string       `json:"status"`
	Subject      Reference    `json:"subject"`
	Study        Reference    `json:"study"`
	Extension    []Extension  `json:"extension,omitempty"`
}

type SpecimenCollection struct {
	Method *CodeableConcept `json:"method,omitempty"`
}

type Specimen struct {
	ResourceType string              `json:"resourceType"`
	ID           string              `json:"id"`
	Meta         *Meta               `json:"meta,omitempty"`
	Identifier   []Identifier        `json:"identifier,omitempty"`
	Type         *CodeableConcept    `json:"type,omitempty"`
	Subject      *Reference          `json:"subject,omitempty"`
	Collection   *SpecimenCollection `json:"collection,omitempty"`
	Extension    []Extension         `json:"extension,omitempty"`
}

type ResearchStudy struct {
	ResourceType string       `json:"resourceType"`
	ID           string       `json:"id"`
	Identifier   []Identifier `json:"identifier,omitempty"`
	Title        string       `json:"title,omitempty"`
	Status       string       `json:"status"`
	Extension    []Extension  `json:"extension,omitempty"`
}

type GroupMember struct {
	Entity Reference `json:"entity"`
}

type Group struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id"`
	Identifier   []Identifier  `json:"identifier,omitempty"`
	Membership   string        `json:"membership"`
	Type         string        `json:"type"`
	Member       []GroupMember `json:"member,omitempty"`
	Extension    []Extension   `json:"extension,omitempty"`
}

type Attachment struct {
	ContentType string `json:"contentType,omitempty"`
	URL         string `json:"url,omitempty"`
	Title       string `json:"title,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

type ContentProfile struct {
	ValueCoding *Coding `json:"valueCoding,omitempty"`
}

type DocumentContent struct {
	Attachment Attachment       `json:"attachment"`
	Profile    []ContentProfile `json:"profile,omitempty"`
}

type DocumentReference struct {
	ResourceType string            `json:"resourceType"`
	ID           string            `json:"id"`
	Identifier   []Identifier      `json:"identifier,omitempty"`
	Version      string            `json:"version,omitempty"`
	Status       string            `json:"status"`
	Type         *CodeableConcept  `json:"type,omitempty"`
	Category     []CodeableConcept `json:"category,omitempty"`
	Subject      *Reference        `json:"subject,omitempty"`
	Date         string            `json:"date,omitempty"`
	Content      []DocumentContent `json:"content"`
	Extension    []Extension       `json:"extension,omitempty"`
}

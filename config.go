package fhir_etl

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the command line, bound by docopt. Every value option has a
// default, so numbers are kept as strings and parsed where they are used.
type Config struct {
	Validate  bool `docopt:"validate"`
	Transform bool `docopt:"transform"`
	Help      bool `docopt:"--help"`

	Path  string `docopt:"--path"`
	Debug bool   `docopt:"--debug"`

	Project    string `docopt:"--project"`
	OutDir     string `docopt:"--out"`
	Overwrite  bool   `docopt:"--overwrite"`
	CohortFile string `docopt:"--config"`
	Listing    string `docopt:"--listing"`

	TracerHost  string `docopt:"--tracerhost"`
	TracerPort  string `docopt:"--tracerport"`
	ServiceName string `docopt:"--servicename"`
	Environment string `docopt:"--env"`

	S3Bucket     string `docopt:"--s3bucket"`
	S3Prefix     string `docopt:"--s3prefix"`
	S3Endpoint   string `docopt:"--s3endpoint"`
	AWSProfile   string `docopt:"--awsprofile"`
	AWSRegion    string `docopt:"--awsregion"`
	SAML2AWSBin  string `docopt:"--saml2aws"`
	AWSSession   string `docopt:"--awssession"`
	DBHost       string `docopt:"--dbhost"`
	DBToken      string `docopt:"--dbtoken"`
	DBFSPath     string `docopt:"--dbfspath"`
	DBPipeline   string `docopt:"--dbpipeline"`
	Compress     bool   `docopt:"--compress"`
	HTTPTimeout  string `docopt:"--timeout"`

	SlackURL    string `docopt:"--slackurl"`
	NATSURL     string `docopt:"--natsurl"`
	NATSSubject string `docopt:"--natssubject"`
}

const (
	ListingFTP   = "ftp"
	ListingHTTPS = "https"
)

var TestConfig = Config{
	Transform:   true,
	Project:     "1kgenomes",
	OutDir:      "META",
	Listing:     ListingFTP,
	TracerHost:  "",
	TracerPort:  "4317",
	ServiceName: "fhir-etl",
	Environment: "test",
	AWSSession:  "3600",
	HTTPTimeout: "300",
	NATSSubject: "fhir-etl.runs",
}

// Check reports option values that cannot be used.
func (c Config) Check() error {
	if c.Transform {
		if c.Listing != ListingFTP && c.Listing != ListingHTTPS {
			return fmt.Errorf("--listing must be %q or %q, got %q", ListingFTP, ListingHTTPS, c.Listing)
		}
		if c.DBFSPath != "" || c.DBPipeline != "" {
			if c.DBHost == "" || c.DBToken == "" {
				return fmt.Errorf("--dbhost and --dbtoken are required with --dbfspath or --dbpipeline")
			}
		}
	}
	for name, v := range map[string]string{"--tracerport": c.TracerPort, "--awssession": c.AWSSession, "--timeout": c.HTTPTimeout} {
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("%s must be a number, got %q", name, v)
		}
	}
	return nil
}

func (c Config) TracerPortNumber() int {
	n, _ := strconv.Atoi(c.TracerPort)
	return n
}

func (c Config) AWSSessionSeconds() float64 {
	n, _ := strconv.Atoi(c.AWSSession)
	return float64(n)
}

func (c Config) HTTPTimeoutDuration() time.Duration {
	n, _ := strconv.Atoi(c.HTTPTimeout)
	return time.Duration(n) * time.Second
}

//go:embed cohorts.yaml
var defaultCohorts []byte

type StudyConfig struct {
	Value string `yaml:"value"`
	Title string `yaml:"title"`
}

type FilesConfig struct {
	FTPServer        string `yaml:"ftp_server"`
	FTPDirectory     string `yaml:"ftp_directory"`
	BaseURL          string `yaml:"base_url"`
	HeaderURL        string `yaml:"header_url"`
	NameFilter       string `yaml:"name_filter"`
	DataFormatSystem string `yaml:"data_format_system"`
	ChromosomeSystem string `yaml:"chromosome_system"`
}

type GTExConfig struct {
	DatasetID           string `yaml:"dataset_id"`
	ItemsPerPage        int    `yaml:"items_per_page"`
	SubjectEndpoint     string `yaml:"subject_endpoint"`
	SampleEndpoint      string `yaml:"sample_endpoint"`
	FileEndpoint        string `yaml:"file_endpoint"`
	FileDataset         string `yaml:"file_dataset"`
	FileRelease         string `yaml:"file_release"`
	FileStorageURL      string `yaml:"file_storage_url"`
	FileOverviewSystem  string `yaml:"file_overview_system"`
	SampleAttributesURL string `yaml:"sample_attributes_url"`
	ReferenceYear       int    `yaml:"reference_year"`
}

// CohortConfig describes where a cohort's metadata lives and how its
// identifiers are minted.
type CohortConfig struct {
	Name             string      `yaml:"-"`
	Kind             string      `yaml:"kind"`
	ProjectID        string      `yaml:"project_id"`
	NamespaceSeed    string      `yaml:"namespace_seed"`
	MintSystem       string      `yaml:"mint_system"`
	IdentifierSystem string      `yaml:"identifier_system"`
	Study            StudyConfig `yaml:"study"`
	SampleSheetURL   string      `yaml:"sample_sheet_url"`
	Files            FilesConfig `yaml:"files"`
	GTEx             GTExConfig  `yaml:"gtex"`
}

const (
	KindOneKGenomes = "1kgenomes"
	KindGTEx        = "gtex"
)

func (c CohortConfig) Minter() IDMinter {
	return NewIDMinter(c.NamespaceSeed, c.ProjectID)
}

// Validate reports the first missing setting the cohort's kind needs.
func (c CohortConfig) Validate() error {
	required := map[string]string{
		"kind":              c.Kind,
		"project_id":        c.ProjectID,
		"namespace_seed":    c.NamespaceSeed,
		"mint_system":       c.MintSystem,
		"identifier_system": c.IdentifierSystem,
		"study.value":       c.Study.Value,
	}
	switch c.Kind {
	case KindOneKGenomes:
		required["sample_sheet_url"] = c.SampleSheetURL
		required["files.base_url"] = c.Files.BaseURL
		required["files.header_url"] = c.Files.HeaderURL
		required["files.ftp_directory"] = c.Files.FTPDirectory
	case KindGTEx:
		required["gtex.subject_endpoint"] = c.GTEx.SubjectEndpoint
		required["gtex.sample_endpoint"] = c.GTEx.SampleEndpoint
		required["gtex.file_endpoint"] = c.GTEx.FileEndpoint
		required["gtex.sample_attributes_url"] = c.GTEx.SampleAttributesURL
	default:
		return fmt.Errorf("cohort %q: unsupported kind %q", c.Name, c.Kind)
	}
	keys := make([]string, 0, len(required))
	for k := range required {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if required[k] == "" {
			return fmt.Errorf("cohort %q: %s is required", c.Name, k)
		}
	}
	if c.Kind == KindGTEx && c.GTEx.ItemsPerPage <= 0 {
		return fmt.Errorf("cohort %q: gtex.items_per_page must be positive", c.Name)
	}
	return nil
}

type cohortFile struct {
	Cohorts map[string]CohortConfig `yaml:"cohorts"`
}

// LoadCohorts decodes a cohorts YAML document.
func LoadCohorts(r io.Reader) (map[string]CohortConfig, error) {
	var cf cohortFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil {
		return nil, fmt.Errorf("Failed to decode cohorts: %w", err)
	}
	for name, c := range cf.Cohorts {
		c.Name = name
		if err := c.Validate(); err != nil {
			return nil, err
		}
		cf.Cohorts[name] = c
	}
	return cf.Cohorts, nil
}

// DefaultCohorts returns the cohorts built into the binary.
func DefaultCohorts() map[string]CohortConfig {
	cohorts, err := LoadCohorts(bytes.NewReader(defaultCohorts))
	if err != nil {
		panic(fmt.Sprintf("embedded cohorts.yaml is invalid: %v", err))
	}
	return cohorts
}

// ResolveCohort looks up name in the cohorts file at path, or in the built in
// cohorts when path is empty.
func ResolveCohort(name, path string) (CohortConfig, error) {
	cohorts := DefaultCohorts()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return CohortConfig{}, fmt.Errorf("Failed to open cohorts file %s: %w", path, err)
		}
		defer f.Close()
		if cohorts, err = LoadCohorts(f); err != nil {
			return CohortConfig{}, err
		}
	}
	c, ok := cohorts[name]
	if !ok {
		names := make([]string, 0, len(cohorts))
		for n := range cohorts {
			names = append(names, n)
		}
		sort.Strings(names)
		return CohortConfig{}, fmt.Errorf("unknown project %q, expected one of %v", name, names)
	}
	return c, nil
}

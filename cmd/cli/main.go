package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	"github.com/briandowns/spinner"
	"github.com/docopt/docopt-go"
	"github.com/fatih/color"
	etl "github.com/fhir-aggregator/fhir-etl"
	"go.opentelemetry.io/otel"
)

const usage = `fhir-etl.

Usage:
  fhir-etl -h | --help
  fhir-etl validate --path=<dir> [--debug]
  fhir-etl transform --project=<name> [--out=<dir>] [--overwrite]
                     [--config=<file>] [--listing=<listing>] [--timeout=<seconds>]
                     [--tracerhost=<hostname>] [--tracerport=<port>]
                     [--servicename=<name>] [--env=<env>]
                     [--s3bucket=<bucket>] [--s3prefix=<prefix>] [--s3endpoint=<url>]
                     [--awsprofile=<profile>] [--awsregion=<region>]
                     [--saml2aws=<saml2aws>] [--awssession=<seconds>]
                     [--dbhost=<hostname>] [--dbtoken=<token>]
                     [--dbfspath=<path>] [--dbpipeline=<name>] [--compress]
                     [--slackurl=<url>] [--natsurl=<url>] [--natssubject=<subject>]

Options:
  -h --help                 Show this screen.
  --path=<dir>              Directory of NDJSON files to validate [default: ].
  --debug                   Print the records that failed validation.
  --project=<name>          The cohort to transform, 1kgenomes or gtex [default: ].
  --out=<dir>               Output directory, META/<project> when empty [default: ].
  --overwrite               Replace existing records instead of keeping them.
  --config=<file>           Cohort definitions, the built-in ones when empty [default: ].
  --listing=<listing>       How 1000 Genomes files are listed, ftp or https [default: ftp].
  --timeout=<seconds>       HTTP client timeout [default: 300].
  --tracerhost=<hostname>   OTel Tracer hostname, tracing is off when empty [default: ].
  --tracerport=<port>       OTel Tracer port [default: 4317].
  --servicename=<name>      Service name reported with traces [default: fhir-etl].
  --env=<env>               Deployment environment reported with traces [default: prod].
  --s3bucket=<bucket>       Publish output to this bucket [default: ].
  --s3prefix=<prefix>       Key prefix within the bucket [default: ].
  --s3endpoint=<url>        S3 compatible endpoint, AWS when empty [default: ].
  --awsprofile=<profile>    The aws creds profile [default: ].
  --awsregion=<region>      The aws region [default: us-east-1].
  --saml2aws=<saml2aws>     The saml2aws script [default: ].
  --awssession=<seconds>    Seconds before the saml2aws session is renewed [default: 3600].
  --dbhost=<hostname>       Databricks hostname [default: ].
  --dbtoken=<token>         Databricks personal access token [default: ].
  --dbfspath=<path>         Publish output to this Databricks volume path [default: ].
  --dbpipeline=<name>       Databricks pipeline started after publishing [default: ].
  --compress                Publish zstd compressed NDJSON.
  --slackurl=<url>          The URL to the slack channel notified of completed runs [default: ].
  --natsurl=<url>           NATS server the run manifest is published to [default: ].
  --natssubject=<subject>   NATS subject for run manifests [default: fhir-etl.runs].
`

// setupSignalListener cancels the run on the first interrupt. The transform
// returns once its current stage sees the cancelled context.
func setupSignalListener(cancel context.CancelFunc) {

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	go func() {
		// block until signal is received
		s := <-c
		log.Printf("Got signal: '%s', shutting down fhir-etl...\n", s)
		cancel()
	}()
}

func handleError(err error, message string) {
	if err != nil {
		log.Fatalf("%s: %v", message, err)
	}
}

func main() {
	args, err := docopt.ParseDoc(usage)
	handleError(err, "Arguments cannot be parsed")

	var config etl.Config
	err = args.Bind(&config)
	handleError(err, "Error binding arguments")
	handleError(config.Check(), "Invalid arguments")

	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	setupSignalListener(cancel)

	switch {
	case config.Validate:
		if !validate(config) {
			os.Exit(1)
		}
	case config.Transform:
		transform(ctx, config)
	}
}

func validate(config etl.Config) bool {
	info, err := os.Stat(config.Path)
	handleError(err, "Cannot read --path")
	if !info.IsDir() {
		log.Fatalf("%s is not a directory", config.Path)
	}

	validator, err := etl.NewSchemaValidator()
	handleError(err, "Schema validator cannot be created")

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " validating " + config.Path
	s.Start()
	result, err := etl.ValidateDir(config.Path, validator)
	s.Stop()
	handleError(err, "Validation cannot be run")

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	types := make([]string, 0, len(result.Resources))
	for resourceType := range result.Resources {
		types = append(types, resourceType)
	}
	sort.Strings(types)
	for _, resourceType := range types {
		green.Fprintf(os.Stderr, "%s: %d\n", resourceType, result.Resources[resourceType])
	}
	for _, issue := range result.Exceptions {
		red.Fprintln(os.Stderr, issue.Error())
		if config.Debug && issue.Record != nil {
			record, _ := json.Marshal(issue.Record)
			fmt.Fprintln(os.Stderr, string(record))
		}
	}
	if len(result.Exceptions) > 0 {
		red.Fprintf(os.Stderr, "%d exceptions\n", len(result.Exceptions))
		return false
	}
	return true
}

func transform(ctx context.Context, config etl.Config) {
	cohortConfig, err := etl.ResolveCohort(config.Project, config.CohortFile)
	handleError(err, "Cohort cannot be resolved")
	cohort := etl.NewCohort(cohortConfig)

	shutdownTracer, err := etl.InitTracerProvider(ctx, config.TracerHost, config.TracerPortNumber(), config.ServiceName, config.Environment)
	handleError(err, "Tracer cannot be created")
	defer shutdownTracer()
	tracer := otel.Tracer(config.ServiceName + "-tracer")

	outDir := config.OutDir
	if outDir == "" {
		outDir = filepath.Join("META", config.Project)
	}
	handleError(os.MkdirAll(outDir, 0o755), "Output directory cannot be created")

	validator, err := etl.NewSchemaValidator()
	handleError(err, "Schema validator cannot be created")
	writer := etl.NewMergeWriter(outDir, validator)

	client := &http.Client{Timeout: config.HTTPTimeoutDuration()}

	var lister etl.FileLister
	if cohortConfig.Kind == etl.KindOneKGenomes {
		files := cohortConfig.Files
		if config.Listing == etl.ListingHTTPS {
			lister = etl.NewHTTPLister(client, files.BaseURL, files.NameFilter)
		} else {
			lister = etl.NewFTPLister(files.FTPServer, files.FTPDirectory, files.NameFilter)
		}
	}

	transformer := etl.NewTransformer(cohort, writer, client, lister, tracer)
	transformer.Overwrite = config.Overwrite
	transformer.Compress = config.Compress

	if config.S3Bucket != "" {
		awsS3Service := etl.NewAWSS3Service(config.SAML2AWSBin, config.AWSProfile, config.AWSRegion, config.S3Endpoint, config.S3Bucket, config.S3Prefix, config.AWSSessionSeconds())
		transformer.Publishers = append(transformer.Publishers, awsS3Service)
	}
	if config.DBFSPath != "" {
		databricksRestService, err := etl.NewDatabricksRestService(config.DBHost, config.DBToken, config.DBFSPath)
		handleError(err, "Databricks files service cannot be created")
		transformer.Publishers = append(transformer.Publishers, databricksRestService)
	}

	if config.SlackURL != "" {
		transformer.Notifiers = append(transformer.Notifiers, etl.NewSlackNotifier(config.SlackURL))
	}
	if config.NATSURL != "" {
		natsNotifier, err := etl.NewNATSNotifier(config.NATSURL, config.NATSSubject)
		handleError(err, "NATS notifier cannot be created")
		defer natsNotifier.Close()
		transformer.Notifiers = append(transformer.Notifiers, natsNotifier)
	}
	if config.DBPipeline != "" {
		databricksService, err := etl.NewDatabricksService(config.DBHost, config.DBToken, config.DBPipeline)
		handleError(err, "Databricks pipeline service cannot be created")
		transformer.Notifiers = append(transformer.Notifiers, databricksService)
	}

	manifest, err := transformer.Run(ctx)
	if err != nil {
		shutdownTracer()
		log.Fatalf("Transform of %s failed: %v", config.Project, err)
	}
	log.Println(manifest.Summary())
	log.Println("Exiting fhir-etl...")
}

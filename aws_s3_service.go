package fhir_etl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// AWSS3Service publishes output files to a bucket. When a saml2aws script is
// configured it is run to refresh credentials once the session expires.
type AWSS3Service struct {
	saml2AWSBin     string
	profile         string
	region          string
	endpoint        string
	bucket          string
	prefix          string
	sessionStart    time.Time
	sessionDuration float64
	client          s3API
	newClient       func(ctx context.Context, profile, region, endpoint string) (s3API, error)
}

func NewAWSS3Service(saml2awsBin, profile, region, endpoint, bucket, prefix string, sessionDuration float64) *AWSS3Service {
	return &AWSS3Service{
		saml2AWSBin:     saml2awsBin,
		profile:         profile,
		region:          region,
		endpoint:        endpoint,
		bucket:          bucket,
		prefix:          prefix,
		sessionDuration: sessionDuration,
		newClient:       createClient,
	}
}

func (a *AWSS3Service) Name() string { return "s3://" + path.Join(a.bucket, a.prefix) }

// Key is the object key of an output file.
func (a *AWSS3Service) Key(name string) string {
	return path.Join(a.prefix, name)
}

func (a *AWSS3Service) Put(ctx context.Context, name string, content []byte, contentType string) error {
	s3Client, err := a.getClient(ctx)
	if err != nil {
		return fmt.Errorf("Failed to get s3 client: '%s': %w", name, err)
	}
	input := &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.Key(name)),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	}
	if _, err := s3Client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("Failed to upload object %s:%s: %w", a.bucket, a.Key(name), err)
	}
	return nil
}

func (a *AWSS3Service) DeleteObject(ctx context.Context, name string) error {
	s3Client, err := a.getClient(ctx)
	if err != nil {
		return fmt.Errorf("Failed to create S3 client %s:%s: %w", a.bucket, a.Key(name), err)
	}
	input := &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.Key(name)),
	}
	if _, err := s3Client.DeleteObject(ctx, input); err != nil {
		return fmt.Errorf("Failed to delete object %s:%s: %w", a.bucket, a.Key(name), err)
	}
	return nil
}

// GetObject reads back a published file.
func (a *AWSS3Service) GetObject(ctx context.Context, name string) ([]byte, error) {
	s3Client, err := a.getClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("Failed to create S3 client %s:%s: %w", a.bucket, a.Key(name), err)
	}
	input := &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.Key(name)),
	}
	output, err := s3Client.GetObject(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("Failed to get object %s:%s: %w", a.bucket, a.Key(name), err)
	}
	defer output.Body.Close()
	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("Failed to read object %s:%s: %w", a.bucket, a.Key(name), err)
	}
	return data, nil
}

func generateToken(ctx context.Context, saml2awsBin string) error {
	cmd := exec.CommandContext(ctx, "sh", saml2awsBin)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("Failed to run %q, err: %w", saml2awsBin, err)
	}
	return nil
}

func createClient(ctx context.Context, profile, region, endpoint string) (s3API, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("Failed to load SDK configuration: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func (a *AWSS3Service) getClient(ctx context.Context) (s3API, error) {
	if a.client != nil && !a.sessionIsExpired() {
		return a.client, nil
	}
	if a.saml2AWSBin != "" {
		if err := generateToken(ctx, a.saml2AWSBin); err != nil {
			return nil, fmt.Errorf("Failed to generate AWS token: %w", err)
		}
		// saml2aws returns before the profile is usable
		select {
		case <-time.After(time.Minute):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s3Client, err := a.newClient(ctx, a.profile, a.region, a.endpoint)
	if err != nil {
		return nil, fmt.Errorf("Failed to create S3 client: %w", err)
	}
	a.sessionStart = time.Now()
	a.client = s3Client
	return a.client, nil
}

// sessionIsExpired reports whether credentials need refreshing. Without a
// saml2aws script the client never expires.
func (a *AWSS3Service) sessionIsExpired() bool {
	if a.saml2AWSBin == "" {
		return false
	}
	return time.Since(a.sessionStart).Seconds() >= a.sessionDuration
}

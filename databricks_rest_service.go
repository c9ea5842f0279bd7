package fhir_etl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/databricks/databricks-sdk-go"
	"github.com/databricks/databricks-sdk-go/config"
	"github.com/databricks/databricks-sdk-go/service/files"
)

type filesAPI interface {
	Upload(ctx context.Context, request files.UploadRequest) error
}

// DatabricksRestService publishes output files to a Unity Catalog volume or
// DBFS path through the Files API.
type DatabricksRestService struct {
	files    filesAPI
	dbfsPath string
}

func NewDatabricksRestService(dbInstance, token, dbfsPath string) (*DatabricksRestService, error) {
	w, err := newWorkspaceClient(dbInstance, token)
	if err != nil {
		return nil, err
	}
	return &DatabricksRestService{files: w.Files, dbfsPath: strings.TrimSuffix(dbfsPath, "/")}, nil
}

func newWorkspaceClient(dbInstance, token string) (*databricks.WorkspaceClient, error) {
	w, err := databricks.NewWorkspaceClient(&databricks.Config{
		Host:        fmt.Sprintf("https://%s", dbInstance),
		Token:       token,
		Credentials: config.PatCredentials{},
	})
	if err != nil {
		return nil, fmt.Errorf("Cannot create a databricks workspace client: %w", err)
	}
	return w, nil
}

func (d *DatabricksRestService) Name() string { return "databricks:" + d.dbfsPath }

func (d *DatabricksRestService) FilePath(name string) string {
	return fmt.Sprintf("%s/%s", d.dbfsPath, name)
}

// Put uploads content, replacing any file already at the path. The content
// type is implied by the file name.
func (d *DatabricksRestService) Put(ctx context.Context, name string, content []byte, _ string) error {
	uploadReq := files.UploadRequest{
		FilePath:  d.FilePath(name),
		Contents:  io.NopCloser(bytes.NewReader(content)),
		Overwrite: true,
	}
	if err := d.files.Upload(ctx, uploadReq); err != nil {
		return fmt.Errorf("Failed to upload file: '%s': %w", d.FilePath(name), err)
	}
	return nil
}

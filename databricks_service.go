package fhir_etl

import (
	"context"
	"fmt"
	"time"

	"github.com/databricks/databricks-sdk-go/service/pipelines"
)

type pipelinesAPI interface {
	ListPipelinesAll(ctx context.Context, request pipelines.ListPipelinesRequest) ([]pipelines.PipelineStateInfo, error)
	WaitGetPipelineIdle(ctx context.Context, pipelineId string, timeout time.Duration, callback func(*pipelines.GetPipelineResponse)) (*pipelines.GetPipelineResponse, error)
	StartUpdate(ctx context.Context, request pipelines.StartUpdate) (*pipelines.StartUpdateResponse, error)
}

// DatabricksService starts the Delta Live Tables pipeline that ingests the
// published NDJSON files. It announces a run, so it is a Notifier.
type DatabricksService struct {
	pipelines    pipelinesAPI
	pipelineName string
	waitTimeout  time.Duration
}

func NewDatabricksService(dbInstance, token, pipelineName string) (*DatabricksService, error) {
	w, err := newWorkspaceClient(dbInstance, token)
	if err != nil {
		return nil, err
	}
	return &DatabricksService{pipelines: w.Pipelines, pipelineName: pipelineName, waitTimeout: 15 * time.Minute}, nil
}

func (d *DatabricksService) Notify(ctx context.Context, _ *Manifest) error {
	return d.ExecutePipeline(ctx)
}

// ExecutePipeline waits for the pipeline to be idle and starts an update.
func (d *DatabricksService) ExecutePipeline(ctx context.Context) error {
	pipelineId, err := d.getPipelineIdByName(ctx)
	if err != nil {
		return fmt.Errorf("Failed to get ingest pipeline id: '%s': %w", d.pipelineName, err)
	}

	if _, err = d.pipelines.WaitGetPipelineIdle(ctx, pipelineId, d.waitTimeout, nil); err != nil {
		return fmt.Errorf("Error waiting for pipeline to get in idle state: '%s': %w", d.pipelineName, err)
	}

	_, err = d.pipelines.StartUpdate(ctx, pipelines.StartUpdate{PipelineId: pipelineId})
	if err != nil {
		return fmt.Errorf("Failed to run ingest pipeline: '%s': %w", d.pipelineName, err)
	}
	return nil
}

func (d *DatabricksService) getPipelineIdByName(ctx context.Context) (string, error) {
	all, err := d.pipelines.ListPipelinesAll(ctx, pipelines.ListPipelinesRequest{})
	if err != nil {
		return "", err
	}
	for _, pipeline := range all {
		if pipeline.Name == d.pipelineName {
			return pipeline.PipelineId, nil
		}
	}
	return "", fmt.Errorf("pipeline '%s' not found", d.pipelineName)
}

package fhir_etl

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
)

type pagingInfo struct {
	NumberOfPages int `json:"numberOfPages"`
	Page          int `json:"page"`
	TotalNumberOf int `json:"totalNumberOfItems"`
}

type page struct {
	PagingInfo pagingInfo `json:"paging_info"`
	Data       []Row      `json:"data"`
}

type gtexDataset struct {
	Name     string        `json:"name"`
	Filesets []GTExFileset `json:"filesets"`
}

// GTExClient reads the GTEx portal API.
type GTExClient struct {
	client *http.Client
	cfg    GTExConfig
}

func NewGTExClient(client *http.Client, cfg GTExConfig) *GTExClient {
	return &GTExClient{client: clientOrDefault(client), cfg: cfg}
}

func (g *GTExClient) Subjects(ctx context.Context) ([]Row, error) {
	return g.Pages(ctx, g.cfg.SubjectEndpoint)
}

func (g *GTExClient) Samples(ctx context.Context) ([]Row, error) {
	return g.Pages(ctx, g.cfg.SampleEndpoint)
}

// Pages reads every page of a paginated endpoint, pages 0 through
// numberOfPages-1 as reported by the first.
func (g *GTExClient) Pages(ctx context.Context, endpoint string) ([]Row, error) {
	first, err := g.page(ctx, endpoint, 0)
	if err != nil {
		return nil, err
	}
	total := first.PagingInfo.NumberOfPages
	log.Printf("Aggregating %s data through a total of %d pages", endpoint, total)
	rows := append([]Row(nil), first.Data...)
	for n := 1; n < total; n++ {
		p, err := g.page(ctx, endpoint, n)
		if err != nil {
			return nil, err
		}
		rows = append(rows, p.Data...)
	}
	return rows, nil
}

func (g *GTExClient) page(ctx context.Context, endpoint string, n int) (page, error) {
	var p page
	u, err := url.Parse(endpoint)
	if err != nil {
		return p, fmt.Errorf("Failed to parse endpoint %s: %w", endpoint, err)
	}
	q := u.Query()
	q.Set("datasetId", g.cfg.DatasetID)
	q.Set("itemsPerPage", strconv.Itoa(g.cfg.ItemsPerPage))
	q.Set("page", strconv.Itoa(n))
	u.RawQuery = q.Encode()

	body, err := fetch(ctx, g.client, u.String())
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return p, fmt.Errorf("Failed to decode page %d of %s: %w", n, endpoint, err)
	}
	return p, nil
}

// Filesets returns the filesets of the configured file dataset, without the
// first one (protected and raw data).
func (g *GTExClient) Filesets(ctx context.Context) ([]GTExFileset, error) {
	body, err := fetch(ctx, g.client, g.cfg.FileEndpoint)
	if err != nil {
		return nil, err
	}
	var datasets []gtexDataset
	if err := json.Unmarshal(body, &datasets); err != nil {
		return nil, fmt.Errorf("Failed to decode file list: %w", err)
	}
	for _, d := range datasets {
		if d.Name != g.cfg.FileDataset {
			continue
		}
		if len(d.Filesets) == 0 {
			return nil, nil
		}
		return d.Filesets[1:], nil
	}
	return nil, fmt.Errorf("dataset %q not found in file list", g.cfg.FileDataset)
}

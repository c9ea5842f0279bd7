package fhir_etl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// StatusError is returned for any non 2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

func clientOrDefault(client *http.Client) *http.Client {
	if client == nil {
		return http.DefaultClient
	}
	return client
}

// fetch GETs url and returns the response body.
func fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("Failed to create request for %s: %w", url, err)
	}
	resp, err := clientOrDefault(client).Do(req)
	if err != nil {
		return nil, fmt.Errorf("Failed to GET %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("Failed to read response of %s: %w", url, err)
	}
	return body, nil
}

// FetchTSV downloads a tab separated sheet and parses it into rows.
func FetchTSV(ctx context.Context, client *http.Client, url string) ([]Row, error) {
	body, err := fetch(ctx, client, url)
	if err != nil {
		return nil, err
	}
	rows, err := ReadTSV(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("Failed to parse %s: %w", url, err)
	}
	return rows, nil
}

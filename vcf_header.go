package fhir_etl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNoCHROMHeader = errors.New("no #CHROM header line")
	ErrNoSampleIDs   = errors.New("no sample columns after the fixed VCF columns")
)

// fixed columns of a VCF #CHROM line before the sample columns
const vcfFixedColumns = 9

// ParseVCFSampleIDs returns the sample ids named on the #CHROM line of a VCF
// header.
func ParseVCFSampleIDs(header string) ([]string, error) {
	sc := bufio.NewScanner(strings.NewReader(header))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "#CHROM") {
			continue
		}
		columns := strings.Split(strings.TrimSpace(line), "\t")
		if len(columns) <= vcfFixedColumns {
			return nil, ErrNoSampleIDs
		}
		return columns[vcfFixedColumns:], nil
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("Failed to scan VCF header: %w", err)
	}
	return nil, ErrNoCHROMHeader
}

// FetchVCFSampleIDs downloads a VCF header and parses its sample ids.
func FetchVCFSampleIDs(ctx context.Context, client *http.Client, url string) ([]string, error) {
	body, err := fetch(ctx, client, url)
	if err != nil {
		return nil, err
	}
	ids, err := ParseVCFSampleIDs(string(body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}
	return ids, nil
}

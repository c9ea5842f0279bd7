package fhir_etl

import (
	"testing"
	"time"
)

func TestFileNames(t *testing.T) {
	tests := []struct {
		name, format, chromosome, mimeType string
	}{
		{"ALL.chr1.phase3_shapeit2_mvncall_integrated_v5_extra_anno.20130502.genotypes.vcf.gz", "VCF", "1", "text/vcf"},
		{"ALL.chrX.phase3.genotypes.vcf.gz.tbi", "VCF", "X", "application/octet-stream"},
		{"ALL.chrMT.phase3_callmom-v0_4.20130502.genotypes.vcf.gz", "VCF", "MT", "text/vcf"},
		{"ALL.wgs.phase3_shapeit2_mvncall_integrated_v5b.20130502.sites.vcf.gz", "VCF", "", "text/vcf"},
		{"GTEx_Analysis_v8_Annotations_SampleAttributesDS.txt", "TXT", "", "text/plain"},
		{"GTEx_Analysis_v8_filesets.json", "JSON", "", "application/json"},
		{"README", "UNKNOWN", "", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := DataFormat(tt.name); got != tt.format {
			t.Errorf("DataFormat(%q) got %q want %q", tt.name, got, tt.format)
		}
		if got := Chromosome(tt.name); got != tt.chromosome {
			t.Errorf("Chromosome(%q) got %q want %q", tt.name, got, tt.chromosome)
		}
		if got := MimeType(tt.name); got != tt.mimeType {
			t.Errorf("MimeType(%q) got %q want %q", tt.name, got, tt.mimeType)
		}
	}
}

func TestFormatDate(t *testing.T) {
	est := time.FixedZone("EST", -5*60*60)
	got := FormatDate(time.Date(2015, time.February, 18, 5, 46, 1, 0, est))
	want := "2015-02-18T10:46:01+00:00"
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

package fhir_etl

import (
	"mime"
	"path"
	"regexp"
	"strings"
	"time"
)

// FHIRDateTimeLayout renders UTC timestamps with an explicit offset.
const FHIRDateTimeLayout = "2006-01-02T15:04:05+00:00"

const unknownFormat = "UNKNOWN"

var chromosomeRegexp = regexp.MustCompile(`(?i)\bchr([0-9XYMT]+)\b`)

// compression and index suffixes that say nothing about the data format
var ignoredSuffixes = map[string]bool{"gz": true, "tbi": true, "csi": true}

// DataFormat is the upper cased extension left after dropping compression and
// index suffixes, e.g. "ALL.chr1.vcf.gz.tbi" gives "VCF".
func DataFormat(fileName string) string {
	parts := strings.Split(fileName, ".")
	for len(parts) > 1 && ignoredSuffixes[strings.ToLower(parts[len(parts)-1])] {
		parts = parts[:len(parts)-1]
	}
	if len(parts) < 2 {
		return unknownFormat
	}
	return strings.ToUpper(parts[len(parts)-1])
}

// Chromosome returns the chromosome named in a file name ("chr1", "chrX",
// "chrMT") without its prefix, or "" when there is none.
func Chromosome(fileName string) string {
	m := chromosomeRegexp.FindStringSubmatch(fileName)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

var genomicMimeTypes = map[string]string{
	".vcf": "text/vcf",
	".bed": "text/plain",
	".gtf": "text/plain",
	".gct": "text/plain",
	".txt": "text/plain",
	".tsv": "text/tab-separated-values",
	".bam": "application/octet-stream",
	".tbi": "application/octet-stream",
	".csi": "application/octet-stream",
}

var encodingSuffixes = map[string]bool{".gz": true, ".bz2": true, ".xz": true}

// MimeType guesses the content type of a file from its name. Compression
// suffixes are content encodings, so "a.vcf.gz" is "text/vcf".
func MimeType(fileName string) string {
	name := strings.ToLower(fileName)
	ext := path.Ext(name)
	if encodingSuffixes[ext] {
		name = strings.TrimSuffix(name, ext)
		ext = path.Ext(name)
	}
	if ext == "" {
		return "application/octet-stream"
	}
	if t, ok := genomicMimeTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if mediaType, _, err := mime.ParseMediaType(t); err == nil {
			return mediaType
		}
		return t
	}
	return "application/octet-stream"
}

// FormatDate renders t in UTC with the "+00:00" offset used in output files.
func FormatDate(t time.Time) string {
	return t.UTC().Format(FHIRDateTimeLayout)
}

package model

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
)

// Columns of the pipeline's <sample>_blast.csv, in the order it writes them.
var BlastColumns = []string{
	"query_seq_id",
	"subject_accession",
	"subject_strand",
	"query_length",
	"query_start",
	"query_end",
	"subject_length",
	"subject_start",
	"subject_end",
	"alignment_length",
	"percent_identity",
	"percent_coverage",
	"num_mismatch",
	"num_gaps",
	"e_value",
	"bitscore",
	"subject_taxids",
	"subject_names",
}

// FieldAnomaly records a numeric cell that could not be parsed. The field is
// stored as absent and the rest of the row is kept.
type FieldAnomaly struct {
	Row   int    `json:"row"` // 1-based, header excluded
	Field string `json:"field"`
	Value string `json:"value"`
}

// BlastResults is what one results file parsed to.
type BlastResults struct {
	Records   []ResultRecord
	Anomalies []FieldAnomaly
}

// ParseBlastResults reads the results file at path. A file that does not exist
// is ErrResultsFileMissing, which is not the same as a file with only a header.
func ParseBlastResults(path string) (*BlastResults, error) {

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrResultsFileMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("open blast results: %w", err)
	}
	defer f.Close()

	res, err := ReadBlastResults(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

// ReadBlastResults parses CSV rows into ResultRecords. Columns are matched by
// header name so extra or reordered columns are fine; a missing one is not.
func ReadBlastResults(r io.Reader) (*BlastResults, error) {

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		// Completely empty file, nothing was found.
		return &BlastResults{Records: []ResultRecord{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, col := range BlastColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("results header is missing column %q", col)
		}
	}

	results := &BlastResults{Records: []ResultRecord{}}
	row := 0

	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row+1, err)
		}
		row++

		p := rowParser{row: row, fields: fields, index: index, anomalies: &results.Anomalies}

		results.Records = append(results.Records, ResultRecord{
			QuerySeqID:       p.text("query_seq_id"),
			SubjectAccession: p.text("subject_accession"),
			SubjectStrand:    p.text("subject_strand"),
			QueryLength:      p.int("query_length"),
			QueryStart:       p.int("query_start"),
			QueryEnd:         p.int("query_end"),
			SubjectLength:    p.int("subject_length"),
			SubjectStart:     p.int("subject_start"),
			SubjectEnd:       p.int("subject_end"),
			AlignmentLength:  p.int("alignment_length"),
			PercentIdentity:  p.float("percent_identity"),
			PercentCoverage:  p.float("percent_coverage"),
			NumMismatch:      p.int("num_mismatch"),
			NumGaps:          p.int("num_gaps"),
			EValue:           p.float("e_value"),
			Bitscore:         p.int("bitscore"),
			SubjectTaxids:    p.text("subject_taxids"),
			SubjectNames:     p.text("subject_names"),
		})
	}

	return results, nil
}

type rowParser struct {
	row       int
	fields    []string
	index     map[string]int
	anomalies *[]FieldAnomaly
}

// Short rows are treated as empty trailing cells.
func (p rowParser) text(name string) string {
	i := p.index[name]
	if i >= len(p.fields) {
		return ""
	}
	return strings.TrimSpace(p.fields[i])
}

func (p rowParser) int(name string) *int64 {
	raw := p.text(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// blastn writes bitscore as a float ("1.234e+03") on long hits.
		if f, ferr := strconv.ParseFloat(raw, 64); ferr == nil && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			v = int64(f)
		} else {
			p.anomaly(name, raw)
			return nil
		}
	}
	return &v
}

func (p rowParser) float(name string) *float64 {
	raw := p.text(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		p.anomaly(name, raw)
		return nil
	}
	return &v
}

func (p rowParser) anomaly(name, raw string) {
	*p.anomalies = append(*p.anomalies, FieldAnomaly{Row: p.row, Field: name, Value: raw})
}

package model

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blastHeader = "query_seq_id,subject_accession,subject_strand,query_length,query_start,query_end," +
	"subject_length,subject_start,subject_end,alignment_length,percent_identity,percent_coverage," +
	"num_mismatch,num_gaps,e_value,bitscore,subject_taxids,subject_names\n"

const wellFormedRow = "s1,NR_024570.1,plus,1450,1,1450,1482,12,1461,1450,99.86,100.0,2,0,0.0,2669,562,Escherichia coli\n"

func TestReadBlastResults_WellFormedRow(t *testing.T) {
	res, err := ReadBlastResults(strings.NewReader(blastHeader + wellFormedRow))
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Empty(t, res.Anomalies)

	r := res.Records[0]
	assert.Equal(t, "s1", r.QuerySeqID)
	assert.Equal(t, "NR_024570.1", r.SubjectAccession)
	assert.Equal(t, "plus", r.SubjectStrand)
	assert.Equal(t, int64(1450), *r.QueryLength)
	assert.Equal(t, int64(1), *r.QueryStart)
	assert.Equal(t, int64(1450), *r.QueryEnd)
	assert.Equal(t, int64(1482), *r.SubjectLength)
	assert.Equal(t, int64(12), *r.SubjectStart)
	assert.Equal(t, int64(1461), *r.SubjectEnd)
	assert.Equal(t, int64(1450), *r.AlignmentLength)
	assert.InDelta(t, 99.86, *r.PercentIdentity, 1e-9)
	assert.InDelta(t, 100.0, *r.PercentCoverage, 1e-9)
	assert.Equal(t, int64(2), *r.NumMismatch)
	assert.Equal(t, int64(0), *r.NumGaps)
	assert.Equal(t, 0.0, *r.EValue)
	assert.Equal(t, int64(2669), *r.Bitscore)
	assert.Equal(t, "562", r.SubjectTaxids)
	assert.Equal(t, "Escherichia coli", r.SubjectNames)
}

func TestReadBlastResults_BadNumericFieldIsAbsent(t *testing.T) {
	row := "s1,NR_024570.1,plus,1450,1,1450,1482,12,1461,1450,99.86,100.0,2,0,not_a_number,2669,562,Escherichia coli\n"

	res, err := ReadBlastResults(strings.NewReader(blastHeader + row))
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	r := res.Records[0]
	assert.Nil(t, r.EValue)
	// Everything else on the row survives.
	assert.Equal(t, "s1", r.QuerySeqID)
	assert.Equal(t, int64(2669), *r.Bitscore)
	assert.InDelta(t, 99.86, *r.PercentIdentity, 1e-9)
	assert.Equal(t, "Escherichia coli", r.SubjectNames)

	require.Len(t, res.Anomalies, 1)
	assert.Equal(t, FieldAnomaly{Row: 1, Field: "e_value", Value: "not_a_number"}, res.Anomalies[0])
}

func TestReadBlastResults_FieldPolicy(t *testing.T) {
	tests := []struct {
		name        string
		bitscore    string
		evalue      string
		wantBits    *int64
		wantEvalue  *float64
		wantAnomaly int
	}{
		{name: "Plain", bitscore: "512", evalue: "1e-50", wantBits: ptr[int64](512), wantEvalue: ptr(1e-50)},
		{name: "EmptyCells", bitscore: "", evalue: "", wantBits: nil, wantEvalue: nil},
		{name: "FloatBitscore", bitscore: "1.024e+03", evalue: "0", wantBits: ptr[int64](1024), wantEvalue: ptr(0.0)},
		{name: "FractionalBitscore", bitscore: "51.5", evalue: "0", wantBits: nil, wantEvalue: ptr(0.0), wantAnomaly: 1},
		{name: "NaN", bitscore: "x", evalue: "NaN", wantBits: nil, wantEvalue: nil, wantAnomaly: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := "q,acc,minus,100,1,100,200,1,100,100,98.0,100.0,2,0," + tt.evalue + "," + tt.bitscore + ",1,name\n"
			res, err := ReadBlastResults(strings.NewReader(blastHeader + row))
			require.NoError(t, err)
			require.Len(t, res.Records, 1)
			assert.Equal(t, tt.wantBits, res.Records[0].Bitscore)
			assert.Equal(t, tt.wantEvalue, res.Records[0].EValue)
			assert.Len(t, res.Anomalies, tt.wantAnomaly)
		})
	}
}

func TestReadBlastResults_ReorderedAndQuotedColumns(t *testing.T) {
	cols := append([]string{}, BlastColumns...)
	cols[0], cols[len(cols)-1] = cols[len(cols)-1], cols[0]
	header := strings.Join(cols, ",") + ",extra\n"
	row := "\"Bacillus subtilis; Bacillus sp.\",acc,plus,1,1,1,1,1,1,1,1,1,1,1,1,1,\"1423;1386\",q7,ignored\n"

	res, err := ReadBlastResults(strings.NewReader(header + row))
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "q7", res.Records[0].QuerySeqID)
	assert.Equal(t, "Bacillus subtilis; Bacillus sp.", res.Records[0].SubjectNames)
	assert.Equal(t, "1423;1386", res.Records[0].SubjectTaxids)
}

func TestReadBlastResults_MissingColumn(t *testing.T) {
	header := strings.Replace(blastHeader, ",e_value", "", 1)
	_, err := ReadBlastResults(strings.NewReader(header))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "e_value")
}

func TestParseBlastResults_MissingVersusEmpty(t *testing.T) {
	dir := t.TempDir()

	_, err := ParseBlastResults(filepath.Join(dir, "input_blast.csv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResultsFileMissing))

	headerOnly := filepath.Join(dir, "header_only.csv")
	require.NoError(t, os.WriteFile(headerOnly, []byte(blastHeader), 0o644))
	res, err := ParseBlastResults(headerOnly)
	require.NoError(t, err)
	assert.NotNil(t, res.Records)
	assert.Empty(t, res.Records)

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	res, err = ParseBlastResults(empty)
	require.NoError(t, err)
	assert.Empty(t, res.Records)
}

func ptr[T any](v T) *T { return &v }

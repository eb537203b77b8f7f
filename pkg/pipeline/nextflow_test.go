package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yumyai/rrna16s/internal/config"
	"github.com/yumyai/rrna16s/internal/pipelinetest"
	"github.com/yumyai/rrna16s/pkg/model"
)

func testConfig(t *testing.T, executable string) config.PipelineConfig {
	root := t.TempDir()
	return config.PipelineConfig{
		Executable:   executable,
		Name:         "BCCDC-PHL/16s-nf",
		Revision:     "main",
		Profile:      "conda",
		CacheDir:     "/opt/conda/envs",
		WorkRoot:     filepath.Join(root, "analysis"),
		NextflowWork: filepath.Join(root, "work"),
		OutputName:   "16s-nf-v0.1-output",
	}
}

func testSubmission(id string) *model.Submission {
	return &model.Submission{
		UUID:   id,
		Status: model.StatusQueued,
		Sequences: []model.InputSequence{
			model.NewInputSequence("seqA", "ACGTACGT"),
			model.NewInputSequence("seqB", "TTGGCCAA"),
		},
	}
}

func TestLayoutAndArgs(t *testing.T) {
	cfg := config.PipelineConfig{
		Name:         "BCCDC-PHL/16s-nf",
		Revision:     "main",
		Profile:      "conda",
		CacheDir:     "/home/u/.conda/envs",
		WorkRoot:     "/srv/analysis",
		NextflowWork: "/srv/work",
		OutputName:   "16s-nf-v0.1-output",
		BlastDBDir:   "/db",
		BlastDBName:  "16S_ribosomal_RNA",
	}
	inv := NewInvoker(cfg)
	l := inv.Layout("abc")

	assert.Equal(t, "/srv/analysis/abc", l.AnalysisDir)
	assert.Equal(t, "/srv/analysis/abc/input.fa", l.InputFile)
	assert.Equal(t, "/srv/analysis/abc/16s-nf-v0.1-output", l.OutDir)
	assert.Equal(t, "/srv/analysis/abc/16s-nf-v0.1-output/abc_nextflow_trace.tsv", l.TraceFile)
	assert.Equal(t, "/srv/analysis/abc/16s-nf-v0.1-output/abc_nextflow_report.html", l.ReportFile)
	assert.Equal(t, "/srv/work/abc", l.WorkDir)
	assert.Equal(t, "/srv/analysis/abc/16s-nf-v0.1-output/input/input_blast.csv", l.ResultsFile)

	assert.Equal(t, []string{
		"run", "BCCDC-PHL/16s-nf",
		"-r", "main",
		"-profile", "conda",
		"--cache", "/home/u/.conda/envs",
		"--fasta_input", "/srv/analysis/abc",
		"--db_dir", "/db",
		"--db_name", "16S_ribosomal_RNA",
		"--outdir", "/srv/analysis/abc/16s-nf-v0.1-output",
		"-with-trace", "/srv/analysis/abc/16s-nf-v0.1-output/abc_nextflow_trace.tsv",
		"-with-report", "/srv/analysis/abc/16s-nf-v0.1-output/abc_nextflow_report.html",
		"-work-dir", "/srv/work/abc",
	}, inv.Args(l))
}

func TestWriteFasta(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFasta(&buf, testSubmission("x").Sequences))
	assert.Equal(t, ">seqA\nACGTACGT\n>seqB\nTTGGCCAA\n", buf.String())
}

func TestRunSuccess(t *testing.T) {
	bin := pipelinetest.Nextflow(t, t.TempDir(), pipelinetest.WriteResults)
	inv := NewInvoker(testConfig(t, bin))

	out, err := inv.Run(context.Background(), testSubmission("run-ok"))
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
	assert.Equal(t, 0, out.ExitCode)
	assert.Contains(t, string(out.Output), "pipeline finished")

	input, err := os.ReadFile(out.Layout.InputFile)
	require.NoError(t, err)
	assert.Equal(t, ">seqA\nACGTACGT\n>seqB\nTTGGCCAA\n", string(input))

	logged, err := os.ReadFile(out.Layout.LogFile)
	require.NoError(t, err)
	assert.Equal(t, out.Output, logged)

	res, err := model.ParseBlastResults(out.Layout.ResultsFile)
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "seqA", res.Records[0].QuerySeqID)
	assert.Equal(t, "seqB", res.Records[1].QuerySeqID)
	assert.Empty(t, res.Anomalies)
}

func TestRunNonZeroExit(t *testing.T) {
	bin := pipelinetest.Nextflow(t, t.TempDir(), pipelinetest.Fail)
	inv := NewInvoker(testConfig(t, bin))

	out, err := inv.Run(context.Background(), testSubmission("run-fail"))
	require.NoError(t, err)
	assert.False(t, out.Succeeded)
	assert.Equal(t, 3, out.ExitCode)
	assert.Contains(t, string(out.Output), "process failed")
}

func TestRunMissingExecutable(t *testing.T) {
	inv := NewInvoker(testConfig(t, filepath.Join(t.TempDir(), "no-such-nextflow")))

	_, err := inv.Run(context.Background(), testSubmission("run-missing"))
	assert.ErrorIs(t, err, model.ErrPipelineFault)
}

func TestRunUnwritableWorkRoot(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	cfg := testConfig(t, "nextflow")
	cfg.WorkRoot = blocker
	_, err := NewInvoker(cfg).Run(context.Background(), testSubmission("run-nodir"))
	assert.ErrorIs(t, err, model.ErrPipelineFault)
}

// Package pipeline runs the external 16S nextflow pipeline for one submission
// and reports how the process ended.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/yumyai/rrna16s/internal/config"
	"github.com/yumyai/rrna16s/logger"
	"github.com/yumyai/rrna16s/pkg/model"
)

const (
	inputFileName   = "input.fa"
	logFileName     = "pipeline.log"
	resultsFileName = "input_blast.csv"
)

// Layout is where one run reads its input and writes its output. Every path
// is derived from the submission UUID so concurrent runs never share a file.
type Layout struct {
	AnalysisDir string
	InputFile   string
	OutDir      string
	TraceFile   string
	ReportFile  string
	WorkDir     string
	ResultsFile string
	LogFile     string
}

// Artifacts lists the files worth keeping after a run, whether it worked or not.
func (l Layout) Artifacts() []string {
	return []string{l.TraceFile, l.ReportFile, l.LogFile}
}

// Outcome is how the subprocess ended. A non-zero exit is an outcome, not an
// error.
type Outcome struct {
	Succeeded bool
	ExitCode  int
	Output    []byte
	Layout    Layout
	Duration  time.Duration
}

// Invoker knows how to run the pipeline. It holds no per-run state and can be
// used from several workers at once.
type Invoker struct {
	cfg config.PipelineConfig
}

func NewInvoker(cfg config.PipelineConfig) *Invoker {
	return &Invoker{cfg: cfg}
}

func (inv *Invoker) Layout(analysisUUID string) Layout {
	analysisDir := filepath.Join(inv.cfg.WorkRoot, analysisUUID)
	outDir := filepath.Join(analysisDir, inv.cfg.OutputName)
	return Layout{
		AnalysisDir: analysisDir,
		InputFile:   filepath.Join(analysisDir, inputFileName),
		OutDir:      outDir,
		TraceFile:   filepath.Join(outDir, analysisUUID+"_nextflow_trace.tsv"),
		ReportFile:  filepath.Join(outDir, analysisUUID+"_nextflow_report.html"),
		WorkDir:     filepath.Join(inv.cfg.NextflowWork, analysisUUID),
		ResultsFile: filepath.Join(outDir, "input", resultsFileName),
		LogFile:     filepath.Join(analysisDir, logFileName),
	}
}

// Args is the nextflow command line for a run, without the executable.
func (inv *Invoker) Args(l Layout) []string {
	return []string{
		"run", inv.cfg.Name,
		"-r", inv.cfg.Revision,
		"-profile", inv.cfg.Profile,
		"--cache", inv.cfg.CacheDir,
		"--fasta_input", l.AnalysisDir,
		"--db_dir", inv.cfg.BlastDBDir,
		"--db_name", inv.cfg.BlastDBName,
		"--outdir", l.OutDir,
		"-with-trace", l.TraceFile,
		"-with-report", l.ReportFile,
		"-work-dir", l.WorkDir,
	}
}

// Run writes the submission's sequences as FASTA into a fresh analysis
// directory, then runs the pipeline and waits for it. Stdout and stderr are
// kept in the Outcome and in the run's log file.
//
// The returned error wraps model.ErrPipelineFault and is only set when the
// pipeline could not be started at all.
func (inv *Invoker) Run(ctx context.Context, sub *model.Submission) (Outcome, error) {
	l := inv.Layout(sub.UUID)
	out := Outcome{Layout: l, ExitCode: -1}

	if err := os.MkdirAll(l.AnalysisDir, 0o755); err != nil {
		return out, fmt.Errorf("%w: create analysis dir: %w", model.ErrPipelineFault, err)
	}
	if err := writeFastaFile(l.InputFile, sub.Sequences); err != nil {
		return out, fmt.Errorf("%w: write input: %w", model.ErrPipelineFault, err)
	}

	args := inv.Args(l)
	logger.Debug("Starting pipeline",
		zap.String("analysis_uuid", sub.UUID),
		zap.String("executable", inv.cfg.Executable),
		zap.Strings("args", args))

	cmd := exec.CommandContext(ctx, inv.cfg.Executable, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	start := time.Now()
	err := cmd.Run()
	out.Duration = time.Since(start)
	out.Output = buf.Bytes()

	if logErr := os.WriteFile(l.LogFile, out.Output, 0o644); logErr != nil {
		logger.Warn("Could not write pipeline log", zap.String("path", l.LogFile), zap.Error(logErr))
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		out.Succeeded = true
		out.ExitCode = 0
	case errors.As(err, &exitErr):
		out.ExitCode = exitErr.ExitCode()
	default:
		return out, fmt.Errorf("%w: failed to execute %s: %w", model.ErrPipelineFault, inv.cfg.Executable, err)
	}
	return out, nil
}

func writeFastaFile(path string, seqs []model.InputSequence) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteFasta(f, seqs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

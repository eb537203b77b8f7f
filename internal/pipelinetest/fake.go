// Package pipelinetest writes stand-in nextflow executables for tests, so the
// invoker and the orchestrator can be exercised without the real pipeline.
package pipelinetest

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/yumyai/rrna16s/pkg/model"
)

// argParser pulls the paths the invoker passes into shell variables.
const argParser = `#!/usr/bin/env bash
OUTDIR=""; FASTA_DIR=""; TRACE=""; REPORT=""
while [ $# -gt 0 ]; do
  case "$1" in
    --outdir) OUTDIR="$2"; shift 2 ;;
    --fasta_input) FASTA_DIR="$2"; shift 2 ;;
    -with-trace) TRACE="$2"; shift 2 ;;
    -with-report) REPORT="$2"; shift 2 ;;
    *) shift ;;
  esac
done
`

// WriteResults is a script body that behaves like a successful run: it
// writes one hit per input sequence plus the trace and report files.
var WriteResults = `mkdir -p "$OUTDIR/input"
echo "` + strings.Join(model.BlastColumns, ",") + `" > "$OUTDIR/input/input_blast.csv"
grep '^>' "$FASTA_DIR/input.fa" | cut -c2- | while read -r id; do
  echo "$id,NR_024570.1,plus,1500,1,1500,1542,1,1500,1500,99.8,97.3,3,0,0.0,2750,562,Escherichia coli" >> "$OUTDIR/input/input_blast.csv"
done
echo "trace" > "$TRACE"
echo "<html></html>" > "$REPORT"
echo "pipeline finished"
`

// NoResults succeeds without writing a results file.
var NoResults = `mkdir -p "$OUTDIR"
echo "trace" > "$TRACE"
echo "pipeline finished without blast output"
`

// Fail prints to stderr and exits non-zero.
var Fail = `echo "ERROR ~ process failed" 1>&2
exit 3
`

// Nextflow writes an executable named "nextflow" into dir running body after
// the argument parser, and returns its path. Tests are skipped on windows.
func Nextflow(t *testing.T, dir, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake nextflow needs bash")
	}

	path := filepath.Join(dir, "nextflow")
	if err := os.WriteFile(path, []byte(argParser+body), 0o755); err != nil {
		t.Fatalf("write fake nextflow: %v", err)
	}
	_ = os.Chmod(path, 0o755)
	return path
}

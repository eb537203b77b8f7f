package pipeline

import (
	"bufio"
	"io"

	"github.com/yumyai/rrna16s/pkg/model"
)

// WriteFasta writes one unwrapped record per sequence, in input order.
func WriteFasta(w io.Writer, seqs []model.InputSequence) error {
	bw := bufio.NewWriter(w)
	for _, s := range seqs {
		bw.WriteString(">")
		bw.WriteString(s.ID)
		bw.WriteString("\n")
		bw.WriteString(s.Sequence)
		bw.WriteString("\n")
	}
	return bw.Flush()
}

package calib

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pcdshub/undcal-go/internal/console"
	"github.com/pcdshub/undcal-go/pv"
)

// PendingWrite is one calibration constant queued for the control system.
type PendingWrite struct {
	PV    *pv.PV
	Value float64
}

func (w PendingWrite) String() string {
	return "caput " + w.PV.Name() + " " + strconv.FormatFloat(w.Value, 'g', -1, 64)
}

// Commit presents the pending writes verbatim and, only on explicit
// confirmation (declining is always allowed), issues them sequentially.
//
// There is no rollback: a write fault stops the sequence and the returned
// error names exactly which writes landed and which did not. The caller
// persists the dataset artifact regardless of the answer.
func Commit(ctx context.Context, writes []PendingWrite, ask console.Confirmer, out io.Writer) (bool, error) {
	fmt.Fprintln(out, "To write:")
	for _, w := range writes {
		fmt.Fprintln(out, "\t"+w.String())
	}

	ok, err := ask.Confirm("Write to PVs?", true)
	if err != nil {
		return false, err
	}
	if !ok {
		fmt.Fprintln(out, console.Warn("Declined; no PVs written."))
		return false, nil
	}

	for i, w := range writes {
		if err := w.PV.Put(ctx, w.Value); err != nil {
			var done []string
			for _, prev := range writes[:i] {
				done = append(done, prev.PV.Name())
			}
			wrote := "none"
			if len(done) > 0 {
				wrote = strings.Join(done, ", ")
			}
			return true, fmt.Errorf("commit incomplete (wrote: %s): %w", wrote, err)
		}
		fmt.Fprintln(out, console.OK("wrote "+w.String()))
	}
	return true, nil
}

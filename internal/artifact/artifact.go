// Package artifact persists calibration runs: one structured dataset file
// per run plus a human-readable rendering, named by physical unit and
// timestamp under the base calibration-data directory.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pcdshub/undcal-go/calib"
	"github.com/pcdshub/undcal-go/device"
)

const stamp = "20060102_150405"

type Writer struct {
	BaseDir string
}

func potName(cell int, role device.Role, ts time.Time, ext string) string {
	return fmt.Sprintf("cell_%d_%s_%s.%s", cell, role, ts.Format(stamp), ext)
}

// WritePotDataset stores the dataset as JSON and returns its path.
func (w *Writer) WritePotDataset(ds *calib.PotDataset, ts time.Time) (string, error) {
	dir := filepath.Join(w.BaseDir, "sxu_pots")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, potName(ds.Cell, ds.Role, ts, "json"))
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// LoadPotDataset reads a persisted dataset back. The stored slope and
// offset are taken as-is; nothing is recomputed on load.
func LoadPotDataset(path string) (*calib.PotDataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ds calib.PotDataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", path, err)
	}
	return &ds, nil
}

// WriteScanTable stores the centerline scan as a tab-separated table.
func (w *Writer) WriteScanTable(ds *calib.ScanDataset, ts time.Time) (string, error) {
	dir := filepath.Join(w.BaseDir, "sxu_centerline")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("cell_%d_%s.txt", ds.Cell, ts.Format(stamp)))

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, "Cell\tUS Y\tDS Y\tUS Shift\tDS Shift"); err != nil {
		return "", err
	}
	for _, row := range ds.Rows {
		_, err := fmt.Fprintf(f, "SXU%d\t%v\t%v\t%.4f\t%.4f\n",
			ds.Cell, row.USPos, row.DSPos, row.USShift, row.DSShift)
		if err != nil {
			return "", err
		}
	}
	return path, nil
}

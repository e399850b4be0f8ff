package calib

import (
	"fmt"

	"github.com/pcdshub/undcal-go/device"
)

// Point maps a position key (gap or block thickness, mm) to the accepted
// averaged reading at that position.
type Point struct {
	Key   float64 `json:"key"`
	Value float64 `json:"value"`
}

// PotDataset is the full record of one potentiometer calibration run.
// Point slices keep plan insertion order, not sort order. Once the fit and
// commit steps complete the dataset is treated as immutable and persisted
// as-is; reloading it must reproduce the stored constants bit for bit,
// with no recomputation.
type PotDataset struct {
	Cell int         `json:"cell"`
	Role device.Role `json:"role"`

	// Gaps holds the averaged voltage at each reference gap.
	Gaps []Point `json:"gaps"`
	// Blocks holds the averaged voltage per inserted block thickness, in
	// the order the plan visited them (descending thickness).
	Blocks []Point `json:"blocks"`

	// CenterLineShift is the directly measured baseline taken back at the
	// first reference gap.
	CenterLineShift float64 `json:"center_line_shift"`

	Slope  float64 `json:"slope"`
	Offset float64 `json:"offset"`
}

func (d *PotDataset) addGap(key, value float64) error {
	for _, p := range d.Gaps {
		if p.Key == key {
			return fmt.Errorf("duplicate gap reference %v", key)
		}
	}
	d.Gaps = append(d.Gaps, Point{Key: key, Value: value})
	return nil
}

func (d *PotDataset) addBlock(key, value float64) error {
	for _, p := range d.Blocks {
		if p.Key == key {
			return fmt.Errorf("duplicate block thickness %v", key)
		}
	}
	d.Blocks = append(d.Blocks, Point{Key: key, Value: value})
	return nil
}

// Gap looks up the reading taken at a reference gap.
func (d *PotDataset) Gap(key float64) (float64, bool) {
	for _, p := range d.Gaps {
		if p.Key == key {
			return p.Value, true
		}
	}
	return 0, false
}

// ScanRow is one centerline-shift observation: the resolved upstream and
// downstream Y positions and the averaged shift readings taken there.
// Rows are sequential and position-labeled rather than keyed.
type ScanRow struct {
	USPos   float64 `json:"us_pos"`
	DSPos   float64 `json:"ds_pos"`
	USShift float64 `json:"us_shift"`
	DSShift float64 `json:"ds_shift"`
}

// ScanDataset is the record of one centerline-shift scan.
type ScanDataset struct {
	Cell int       `json:"cell"`
	Rows []ScanRow `json:"rows"`
}

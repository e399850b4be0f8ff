package calib

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pcdshub/undcal-go/device"
	"github.com/pcdshub/undcal-go/internal/console"
)

// Sentinel marks a target as a literal delta or a per-axis maximum.
type Sentinel int

const (
	Literal Sentinel = iota
	Max
	NegMax
)

// Target is one axis entry of the move table.
type Target struct {
	Sentinel Sentinel
	Value    float64
}

// Lit is a literal target.
func Lit(v float64) Target { return Target{Sentinel: Literal, Value: v} }

// Resolve turns the target into a physical position: sentinels resolve
// against the axis limit, the bias offset applies afterwards, and the
// result saturates at the limit instead of faulting.
func (t Target) Resolve(limit, bias float64) float64 {
	v := t.Value
	switch t.Sentinel {
	case Max:
		v = limit
	case NegMax:
		v = -limit
	}
	v += bias
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}

// Move is one (upstream, downstream) entry of the scan table.
type Move struct {
	US Target
	DS Target
}

// DefaultMoves is the standard centerline scan: single-axis sweeps in both
// directions out to the limits, then the diagonal checks, returning to
// zero between groups.
var DefaultMoves = []Move{
	{Lit(0.25), Lit(0.00)},
	{Lit(0.50), Lit(0.00)},
	{Lit(0.75), Lit(0.00)},
	{Target{Sentinel: Max}, Lit(0.00)},
	{Lit(-0.25), Lit(0.00)},
	{Lit(-0.50), Lit(0.00)},
	{Lit(-0.75), Lit(0.00)},
	{Target{Sentinel: NegMax}, Lit(0.00)},
	{Lit(0.00), Lit(0.00)},

	{Lit(0.00), Lit(0.25)},
	{Lit(0.00), Lit(0.50)},
	{Lit(0.00), Lit(0.75)},
	{Lit(0.00), Target{Sentinel: Max}},
	{Lit(0.00), Lit(-0.25)},
	{Lit(0.00), Lit(-0.50)},
	{Lit(0.00), Lit(-0.75)},
	{Lit(0.00), Target{Sentinel: NegMax}},
	{Lit(0.00), Lit(0.00)},

	{Lit(0.50), Lit(0.50)},
	{Target{Sentinel: Max}, Target{Sentinel: Max}},
	{Lit(0.00), Lit(0.00)},
	{Lit(-0.50), Lit(-0.50)},

	{Target{Sentinel: NegMax}, Target{Sentinel: NegMax}},
	{Lit(0.00), Lit(0.00)},
}

// AxisLimits are the per-axis maximum magnitude and bias offset used to
// resolve the move table.
type AxisLimits struct {
	Limit float64
	Bias  float64
}

// ScanRunner drives the centerline-shift scan: for every table entry it
// positions both interspace movers and takes averaged readings of the two
// shift sensors.
type ScanRunner struct {
	Und *device.Undulator
	US  *InterspaceMover
	DS  *InterspaceMover

	USAxis AxisLimits
	DSAxis AxisLimits

	Moves   []Move
	Measure MeasureSettings
	Ask     console.Confirmer
	Log     *zap.SugaredLogger
}

// Run executes the scan. The operator gets one up-front gate; declining it
// aborts the whole run.
func (r *ScanRunner) Run(ctx context.Context) (*ScanDataset, error) {
	if !device.Connected(r.Und) {
		return nil, fmt.Errorf("%s: not all PVs connected", r.Und.ShortName())
	}
	log := logOr(r.Log)

	ok, err := r.Ask.Confirm(fmt.Sprintf("Ready to move %s?", r.Und.ShortName()), true)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, console.ErrAborted
	}

	moves := r.Moves
	if moves == nil {
		moves = DefaultMoves
	}

	ds := &ScanDataset{Cell: r.Und.Cell}
	log.Infof("Cell\tUS Y\tDS Y\tUS Shift\tDS Shift")
	for _, move := range moves {
		usPos := move.US.Resolve(r.USAxis.Limit, r.USAxis.Bias)
		dsPos := move.DS.Resolve(r.DSAxis.Limit, r.DSAxis.Bias)

		if err := r.US.MoveY(ctx, usPos); err != nil {
			return nil, err
		}
		if err := r.DS.MoveY(ctx, dsPos); err != nil {
			return nil, err
		}

		_, usShift, err := r.Und.USShift.GetAveraged(ctx, r.Measure.Count, r.Measure.Delay)
		if err != nil {
			return nil, err
		}
		_, dsShift, err := r.Und.DSShift.GetAveraged(ctx, r.Measure.Count, r.Measure.Delay)
		if err != nil {
			return nil, err
		}

		ds.Rows = append(ds.Rows, ScanRow{
			USPos: usPos, DSPos: dsPos,
			USShift: usShift, DSShift: dsShift,
		})
		log.Infof("%s\t%v\t%v\t%.4f\t%.4f",
			r.Und.ShortName(), usPos, dsPos, usShift, dsShift)
	}
	return ds, nil
}

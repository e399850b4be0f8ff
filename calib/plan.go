package calib

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pcdshub/undcal-go/device"
	"github.com/pcdshub/undcal-go/internal/console"
	"github.com/pcdshub/undcal-go/pv"
)

// PotPlan is the fixed measurement plan of a potentiometer calibration:
// two reference gaps, a descending series of ceramic block thicknesses
// inserted by the operator, and a final return to the first gap for the
// centerline-shift baseline.
type PotPlan struct {
	Gap0   float64
	Gap1   float64
	Blocks []float64

	Measure MeasureSettings
	// GapSettle is the pause between reaching a gap and sampling there.
	GapSettle time.Duration
}

// PotRunner drives one potentiometer side through the plan and accumulates
// its dataset.
type PotRunner struct {
	Pot   *device.Pot
	Mover *GapMover
	Plan  PotPlan
	Ask   console.Confirmer
	Log   *zap.SugaredLogger
}

// Run executes the plan. Any motion or measurement fault aborts the run;
// there is no partial-success continuation.
func (r *PotRunner) Run(ctx context.Context) (*PotDataset, error) {
	if !device.Connected(r.Pot) {
		return nil, fmt.Errorf("%s: not all PVs connected", r.Pot.ShortName())
	}
	log := logOr(r.Log)

	ds := &PotDataset{Cell: r.Pot.Cell, Role: r.Pot.Role}

	for _, gap := range []float64{r.Plan.Gap0, r.Plan.Gap1} {
		if err := r.Mover.Move(ctx, gap, r.Ask); err != nil {
			return nil, err
		}
		if err := pv.Sleep(ctx, r.Plan.GapSettle); err != nil {
			return nil, err
		}
		sample, err := ReadStable(ctx, r.Pot.Voltage, r.Plan.Measure, r.Ask)
		if err != nil {
			return nil, err
		}
		log.Infof("%s: gap %v reference voltage %.4f %s",
			r.Pot.ShortName(), gap, sample.Mean, r.Pot.Voltage.Units())
		if err := ds.addGap(gap, sample.Mean); err != nil {
			return nil, err
		}
	}

	for _, block := range r.Plan.Blocks {
		ok, err := r.Ask.Confirm(fmt.Sprintf(
			"\n%s: insert the ceramic block of thickness: %.1f mm",
			r.Pot.ShortName(), block), false)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, console.ErrAborted
		}
		sample, err := ReadStable(ctx, r.Pot.Voltage, r.Plan.Measure, r.Ask)
		if err != nil {
			return nil, err
		}
		log.Infof("%s: block %.1f mm voltage %.4f %s",
			r.Pot.ShortName(), block, sample.Mean, r.Pot.Voltage.Units())
		if err := ds.addBlock(block, sample.Mean); err != nil {
			return nil, err
		}
	}

	if err := r.Mover.Move(ctx, r.Plan.Gap0, r.Ask); err != nil {
		return nil, err
	}
	_, baseline, err := r.Pot.CenterLineShift.GetAveraged(
		ctx, r.Plan.Measure.Count, r.Plan.Measure.Delay)
	if err != nil {
		return nil, err
	}
	ds.CenterLineShift = baseline

	fit, err := FitSlopeOffset(ds.Blocks, r.Plan.Gap0, r.Plan.Gap1)
	if err != nil {
		return nil, err
	}
	ds.Slope = fit.Slope
	// The directly measured baseline wins over the regression intercept.
	ds.Offset = baseline
	log.Infof("%s: slope %.4f offset %.4f (regression intercept %.4f discarded)",
		r.Pot.ShortName(), ds.Slope, ds.Offset, fit.Intercept)

	return ds, nil
}

// Package calib is the calibration orchestration engine: averaged
// measurements with outlier rejection, confirm-gated motion to reference
// positions, the linear fit turning raw voltages into slope/offset
// constants, and the operator-gated commit of those constants back to the
// control system.
package calib

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/pcdshub/undcal-go/internal/console"
	"github.com/pcdshub/undcal-go/pv"
)

// ErrUnstable means the sensor kept fluctuating past the configured bound
// and the operator declined to retry (or the retry cap ran out).
var ErrUnstable = errors.New("measurement exceeded maximum fluctuation")

// Sample is one accepted averaged measurement. Readings are kept whole:
// a sequence is never partially discarded, only retried as a unit.
type Sample struct {
	Readings []float64
	Mean     float64
}

// PeakToPeak is max-min across the raw readings, the sample's quality
// metric.
func (s Sample) PeakToPeak() float64 {
	if len(s.Readings) == 0 {
		return 0
	}
	return floats.Max(s.Readings) - floats.Min(s.Readings)
}

// MeasureSettings parameterizes the averaged measurement protocol.
type MeasureSettings struct {
	Count          int
	Delay          time.Duration
	MaxFluctuation float64
	// MaxRetries caps confirm-gated re-sampling. Zero keeps asking for as
	// long as the operator confirms, which is the historical behavior.
	MaxRetries int
}

// ReadStable samples p until the peak-to-peak fluctuation is within bound.
// Every rejected attempt asks the operator exactly once whether to retry.
func ReadStable(ctx context.Context, p *pv.PV, s MeasureSettings, ask console.Confirmer) (Sample, error) {
	for attempt := 1; ; attempt++ {
		readings, mean, err := p.GetAveraged(ctx, s.Count, s.Delay)
		if err != nil {
			return Sample{}, err
		}
		sample := Sample{Readings: readings, Mean: mean}
		p2p := sample.PeakToPeak()
		if p2p <= s.MaxFluctuation {
			return sample, nil
		}
		if s.MaxRetries > 0 && attempt >= s.MaxRetries {
			return Sample{}, fmt.Errorf("%s: peak-to-peak %.4f over bound %v after %d attempts: %w",
				p.Name(), p2p, s.MaxFluctuation, attempt, ErrUnstable)
		}
		retry, err := ask.Confirm(fmt.Sprintf(
			"%s exceeded maximum fluctuation of %v (peak-to-peak %.4f). Retry?",
			p.Name(), s.MaxFluctuation, p2p), true)
		if err != nil {
			return Sample{}, err
		}
		if !retry {
			return Sample{}, fmt.Errorf("%s: peak-to-peak %.4f over bound %v: %w",
				p.Name(), p2p, s.MaxFluctuation, ErrUnstable)
		}
	}
}

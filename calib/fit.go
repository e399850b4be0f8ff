package calib

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientData means the fit was attempted with fewer than two
// usable points. Surfaced before any control-system write happens.
var ErrInsufficientData = errors.New("not enough distinct calibration points")

// keyEps absorbs float noise when matching the equivalent block thickness
// against a configured table entry.
const keyEps = 1e-9

// FitResult carries the regression outputs. Intercept is the least-squares
// offset; callers deliberately discard it in favor of the directly measured
// centerline-shift baseline.
type FitResult struct {
	Slope        float64
	Intercept    float64
	EquivBlock   float64
	EquivVoltage float64
}

// FitSlopeOffset fits the block-thickness measurements against the two
// reference gaps.
//
// The pivot is the "equivalent block": the thickness numerically equal to
// half the gap span, whose measured voltage anchors both delta series.
// Slope is the OLS coefficient of delta extension against the raw
// voltages; Intercept is the OLS intercept of delta extension against
// delta voltage. Point order does not affect the result.
func FitSlopeOffset(blocks []Point, gap0, gap1 float64) (FitResult, error) {
	equiv := math.Abs(gap1-gap0) / 2

	pts := make([]Point, len(blocks))
	copy(pts, blocks)
	sort.Slice(pts, func(i, j int) bool { return pts[i].Key < pts[j].Key })

	var equivVoltage float64
	found := false
	for _, p := range pts {
		if math.Abs(p.Key-equiv) <= keyEps {
			equivVoltage = p.Value
			found = true
			break
		}
	}
	if !found {
		return FitResult{}, fmt.Errorf("no measurement at equivalent block %.3f mm: %w",
			equiv, ErrInsufficientData)
	}
	if !distinct(pts) {
		return FitResult{}, fmt.Errorf("fit over %d point(s): %w", len(pts), ErrInsufficientData)
	}

	voltages := make([]float64, len(pts))
	deltaExtension := make([]float64, len(pts))
	deltaVoltage := make([]float64, len(pts))
	for i, p := range pts {
		voltages[i] = p.Value
		deltaExtension[i] = equiv - p.Key
		deltaVoltage[i] = equivVoltage - p.Value
	}

	_, slope := stat.LinearRegression(voltages, deltaExtension, nil, false)
	intercept, _ := stat.LinearRegression(deltaVoltage, deltaExtension, nil, false)

	return FitResult{
		Slope:        slope,
		Intercept:    intercept,
		EquivBlock:   equiv,
		EquivVoltage: equivVoltage,
	}, nil
}

// distinct requires at least two points with distinct thicknesses and
// distinct voltages; anything less leaves the regression undefined.
func distinct(pts []Point) bool {
	if len(pts) < 2 {
		return false
	}
	keys := false
	values := false
	for i := 1; i < len(pts); i++ {
		if pts[i].Key != pts[0].Key {
			keys = true
		}
		if pts[i].Value != pts[0].Value {
			values = true
		}
	}
	return keys && values
}

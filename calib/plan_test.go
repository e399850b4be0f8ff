package calib

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcdshub/undcal-go/device"
	"github.com/pcdshub/undcal-go/internal/console"
	"github.com/pcdshub/undcal-go/pv"
	"github.com/pcdshub/undcal-go/pv/sim"
)

// stubProvider serves scripted connections for the sensors and falls back
// to the simulator for the motion signals.
type stubProvider struct {
	sim       *sim.Provider
	overrides map[string]pv.Conn
}

func (p stubProvider) Conn(name string) pv.Conn {
	if c, ok := p.overrides[name]; ok {
		return c
	}
	return p.sim.Conn(name)
}

func TestPotRunnerFullPlan(t *testing.T) {
	const cell = 44
	gap := device.GapPrefix(cell)
	side := gap + "DS:"

	s := sim.NewProvider()
	s.LinkTrigger(gap+"Go", gap+"GapDes", gap+"GapAct")

	// One read per point: gap0, gap1, then the three blocks in plan
	// (descending) order.
	voltage := &scriptConn{name: side + "VAct", units: "V",
		values: []float64{0.8, 4.2, 1.0, 3.0, 5.0}}
	baseline := &scriptConn{name: side + "CtrLnShift", values: []float64{0.123}}

	provider := stubProvider{
		sim: s,
		overrides: map[string]pv.Conn{
			voltage.Name():  voltage,
			baseline.Name(): baseline,
		},
	}

	pot := device.NewPot(provider, cell, device.Downstream)
	ask := &askYes{}
	runner := &PotRunner{
		Pot: pot,
		Mover: &GapMover{
			Des:       pot.GapDes,
			Act:       pot.GapAct,
			Go:        pot.GapGo,
			Tolerance: 0.001,
			Poll:      time.Millisecond,
			Timeout:   time.Second,
		},
		Plan: PotPlan{
			Gap0:    10,
			Gap1:    14, // equivalent block 2.0
			Blocks:  []float64{3, 2, 1},
			Measure: MeasureSettings{Count: 1, MaxFluctuation: 1},
		},
		Ask: ask,
	}

	ds, err := runner.Run(context.Background())
	require.NoError(t, err)

	// Points keep plan insertion order.
	assert.Equal(t, []Point{{10, 0.8}, {14, 4.2}}, ds.Gaps)
	assert.Equal(t, []Point{{3, 1.0}, {2, 3.0}, {1, 5.0}}, ds.Blocks)

	assert.InDelta(t, 0.5, ds.Slope, 1e-12)
	// The offset is the directly measured baseline, not the regression
	// intercept (which is 0 for this dataset).
	assert.Equal(t, 0.123, ds.Offset)
	assert.Equal(t, 0.123, ds.CenterLineShift)

	// Three confirmed moves plus three block insertions.
	assert.Equal(t, 6, ask.asked)

	// The sequence ended back at the first reference gap.
	assert.Equal(t, 10.0, s.Value(gap+"GapAct"))
}

func TestPotRunnerBlockDeclineAborts(t *testing.T) {
	const cell = 44
	gap := device.GapPrefix(cell)

	s := sim.NewProvider()
	s.LinkTrigger(gap+"Go", gap+"GapDes", gap+"GapAct")
	voltage := &scriptConn{name: gap + "DS:VAct", values: []float64{0.8, 4.2}}

	pot := device.NewPot(stubProvider{
		sim:       s,
		overrides: map[string]pv.Conn{voltage.Name(): voltage},
	}, cell, device.Downstream)

	// Both gap moves are confirmed; the first block prompt answers no.
	ask := &askScript{answers: []bool{true, true}}
	runner := &PotRunner{
		Pot: pot,
		Mover: &GapMover{
			Des:       pot.GapDes,
			Act:       pot.GapAct,
			Go:        pot.GapGo,
			Tolerance: 0.001,
			Poll:      time.Millisecond,
			Timeout:   time.Second,
		},
		Plan: PotPlan{
			Gap0:    10,
			Gap1:    14,
			Blocks:  []float64{3, 2, 1},
			Measure: MeasureSettings{Count: 1, MaxFluctuation: 1},
		},
		Ask: ask,
	}

	_, err := runner.Run(context.Background())
	require.ErrorIs(t, err, console.ErrAborted)
	assert.Equal(t, 2, voltage.reads, "only the gap references were read")
}

func TestPotRunnerMotionFaultAbortsRun(t *testing.T) {
	const cell = 44
	gap := device.GapPrefix(cell)

	s := sim.NewProvider() // no trigger wiring: the gap never converges
	voltage := &scriptConn{name: gap + "DS:VAct", values: []float64{1}}

	pot := device.NewPot(stubProvider{
		sim:       s,
		overrides: map[string]pv.Conn{voltage.Name(): voltage},
	}, cell, device.Downstream)

	runner := &PotRunner{
		Pot: pot,
		Mover: &GapMover{
			Des:       pot.GapDes,
			Act:       pot.GapAct,
			Go:        pot.GapGo,
			Tolerance: 0.001,
			Poll:      time.Millisecond,
			Timeout:   10 * time.Millisecond,
		},
		Plan: PotPlan{
			Gap0:    10,
			Gap1:    14,
			Blocks:  []float64{3, 2, 1},
			Measure: MeasureSettings{Count: 1, MaxFluctuation: 1},
		},
		Ask: &askYes{},
	}

	_, err := runner.Run(context.Background())
	require.ErrorIs(t, err, ErrMotionTimeout)
	assert.Equal(t, 0, voltage.reads, "no measurement after a motion fault")
}

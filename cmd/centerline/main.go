// Centerline shift measurement for one SXU undulator cell. Steps the
// upstream and downstream interspace movers through the standard offset
// table and records the averaged centerline-shift readings as a
// tab-separated table artifact.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/pcdshub/undcal-go/calib"
	"github.com/pcdshub/undcal-go/device"
	"github.com/pcdshub/undcal-go/internal/artifact"
	"github.com/pcdshub/undcal-go/internal/config"
	"github.com/pcdshub/undcal-go/internal/console"
	"github.com/pcdshub/undcal-go/pv"
	"github.com/pcdshub/undcal-go/pv/catool"
	"github.com/pcdshub/undcal-go/pv/sim"
)

func main() {
	var (
		configPath = pflag.String("config", "", "run parameters yaml (defaults apply when empty)")
		dataDir    = pflag.String("data-dir", "", "override the calibration data directory")
		simulate   = pflag.Bool("sim", false, "use the built-in control system simulator")
	)
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr,
			"usage: %s [flags] <cell> <us-offset> <ds-offset> <max-us-y> <max-ds-y>\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if pflag.NArg() != 5 {
		pflag.Usage()
		os.Exit(2)
	}
	cell, err := strconv.Atoi(pflag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid cell %q: %v\n", pflag.Arg(0), err)
		os.Exit(2)
	}
	scalars := make([]float64, 4)
	for i := 1; i <= 4; i++ {
		scalars[i-1], err = strconv.ParseFloat(pflag.Arg(i), 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid argument %q: %v\n", pflag.Arg(i), err)
			os.Exit(2)
		}
	}
	usAxis := calib.AxisLimits{Bias: scalars[0], Limit: scalars[2]}
	dsAxis := calib.AxisLimits{Bias: scalars[1], Limit: scalars[3]}

	zl, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = zl.Sync() }()
	log := zl.Sugar()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var provider pv.Provider
	if *simulate {
		provider = simProvider(cell)
	} else {
		provider = catool.NewProvider(cfg.CATimeout.D())
	}

	err = run(ctx, log, cfg, provider, console.NewTerminal(), cell, usAxis, dsAxis)
	switch {
	case errors.Is(err, console.ErrAborted):
		log.Warn("Aborted by operator.")
		os.Exit(1)
	case err != nil:
		log.Errorf("Measurement failed: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *zap.SugaredLogger, cfg config.Config,
	provider pv.Provider, ask console.Confirmer, cell int,
	usAxis, dsAxis calib.AxisLimits) error {

	und := device.NewUndulator(provider, cell)
	// The upstream interspace sits between this cell and the previous one.
	usISpace := device.NewInterspace(provider, cell-1)
	dsISpace := device.NewInterspace(provider, cell)

	for _, unit := range []device.Unit{und, usISpace, dsISpace} {
		log.Infof("Connecting %s...", unit.ShortName())
		if err := device.ConnectAll(ctx, unit); err != nil {
			return err
		}
		device.Report(log, unit)
	}

	mover := func(dev *device.Interspace) *calib.InterspaceMover {
		return &calib.InterspaceMover{
			Dev:        dev,
			Tolerance:  cfg.Motion.InterspaceTolerance,
			Poll:       cfg.Motion.Poll.D(),
			Settle:     cfg.Motion.Settle.D(),
			Timeout:    cfg.Motion.Timeout.D(),
			MovingDone: cfg.Motion.MovingDone,
			Log:        log,
		}
	}

	runner := &calib.ScanRunner{
		Und:    und,
		US:     mover(usISpace),
		DS:     mover(dsISpace),
		USAxis: usAxis,
		DSAxis: dsAxis,
		Measure: calib.MeasureSettings{
			Count: cfg.Measure.Count,
			Delay: cfg.Measure.Delay.D(),
		},
		Ask: ask,
		Log: log,
	}

	ds, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	writer := &artifact.Writer{BaseDir: cfg.DataDir}
	path, err := writer.WriteScanTable(ds, time.Now())
	if err != nil {
		return err
	}
	log.Infof("Writing to %s", path)
	return nil
}

// simProvider wires both interspace movers the way the IOC behaves: the
// trigger latches the desired Y into the readback and reports the slew
// done.
func simProvider(cell int) *sim.Provider {
	p := sim.NewProvider()
	for _, c := range []int{cell - 1, cell} {
		prefix := device.InterspacePrefix(c)
		trigger := prefix + "TRIGGERCAL.PROC"
		des := prefix + "QYDES"
		rdbk := prefix + "YRDBCKCALC"
		moving := prefix + "CAMSMOVING"
		p.OnPut(trigger, func(s sim.Access, _ float64) {
			s.Set(rdbk, s.Value(des))
			s.Set(moving, 1)
		})
	}
	gap := device.GapPrefix(cell)
	for _, name := range []string{gap + "US:CtrLnShift", gap + "DS:CtrLnShift"} {
		p.Set(name, 0.02)
		p.SetNoise(name, 0.0005)
	}
	return p
}

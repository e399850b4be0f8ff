// Potentiometer calibration for one SXU undulator cell. Runs the guided
// procedure on the downstream then the upstream potentiometer: reference
// gaps, ceramic block series, linear fit, operator-gated PV commit, and
// dataset/plot artifacts.
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
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <cell>\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(2)
	}
	cell, err := strconv.Atoi(pflag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid cell %q: %v\n", pflag.Arg(0), err)
		os.Exit(2)
	}

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
		provider = simProvider(cell, cfg)
	} else {
		provider = catool.NewProvider(cfg.CATimeout.D())
	}

	err = run(ctx, log, cfg, provider, console.NewTerminal(), cell)
	switch {
	case errors.Is(err, console.ErrAborted):
		log.Warn("Aborted by operator.")
		os.Exit(1)
	case err != nil:
		log.Errorf("Calibration failed: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *zap.SugaredLogger, cfg config.Config,
	provider pv.Provider, ask console.Confirmer, cell int) error {

	writer := &artifact.Writer{BaseDir: cfg.DataDir}

	for _, role := range []device.Role{device.Downstream, device.Upstream} {
		pot := device.NewPot(provider, cell, role)
		log.Infof("Connecting %s...", pot.ShortName())
		if err := device.ConnectAll(ctx, pot); err != nil {
			return err
		}
		device.Report(log, pot)

		mover := &calib.GapMover{
			Des:       pot.GapDes,
			Act:       pot.GapAct,
			Go:        pot.GapGo,
			Tolerance: cfg.Motion.GapTolerance,
			Poll:      cfg.Motion.Poll.D(),
			Settle:    cfg.Motion.Settle.D(),
			Timeout:   cfg.Motion.Timeout.D(),
			Log:       log,
		}
		runner := &calib.PotRunner{
			Pot:   pot,
			Mover: mover,
			Plan: calib.PotPlan{
				Gap0:   cfg.Gap0,
				Gap1:   cfg.Gap1,
				Blocks: cfg.Blocks,
				Measure: calib.MeasureSettings{
					Count:          cfg.Measure.Count,
					Delay:          cfg.Measure.Delay.D(),
					MaxFluctuation: cfg.Measure.MaxFluctuation,
					MaxRetries:     cfg.Measure.MaxRetries,
				},
				GapSettle: cfg.GapSettle.D(),
			},
			Ask: ask,
			Log: log,
		}

		log.Infof("Running calibration on %s...", pot.ShortName())
		ds, err := runner.Run(ctx)
		if err != nil {
			return err
		}

		gap0Ref, ok := ds.Gap(cfg.Gap0)
		if !ok {
			return fmt.Errorf("%s: no reference reading at gap %v", pot.ShortName(), cfg.Gap0)
		}
		writes := []calib.PendingWrite{
			{PV: pot.VoltageRef, Value: gap0Ref},
			{PV: pot.GapRef, Value: cfg.Gap0},
			{PV: pot.Slope, Value: ds.Slope},
			{PV: pot.Offset, Value: ds.Offset},
		}
		_, commitErr := calib.Commit(ctx, writes, ask, os.Stdout)
		if commitErr != nil && errors.Is(commitErr, console.ErrAborted) {
			return commitErr
		}

		// The dataset is persisted whether or not the commit went ahead.
		ts := time.Now()
		path, err := writer.WritePotDataset(ds, ts)
		if err != nil {
			return err
		}
		log.Infof("Writing to %s", path)
		plotPath, err := writer.WritePotPlot(ds, ts)
		if err != nil {
			return err
		}
		log.Infof("Writing to %s", plotPath)

		if commitErr != nil {
			return commitErr
		}
	}
	return nil
}

// simProvider wires the simulator the way the test IOC behaves: the Go
// trigger copies the desired gap to the actual gap, and the sensors sit on
// plausible slightly noisy values.
func simProvider(cell int, cfg config.Config) *sim.Provider {
	p := sim.NewProvider()
	gap := device.GapPrefix(cell)
	p.Set(gap+"GapAct", cfg.Gap0)
	p.LinkTrigger(gap+"Go", gap+"GapDes", gap+"GapAct")
	for _, role := range []device.Role{device.Downstream, device.Upstream} {
		side := gap + string(role) + ":"
		p.Set(side+"VAct", 2.5)
		p.SetNoise(side+"VAct", 0.001)
		p.SetUnits(side+"VAct", "V")
		p.Set(side+"CtrLnShift", 0.05)
		p.SetNoise(side+"CtrLnShift", 0.0005)
	}
	return p
}

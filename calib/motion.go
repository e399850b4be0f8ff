package calib

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/pcdshub/undcal-go/device"
	"github.com/pcdshub/undcal-go/internal/console"
	"github.com/pcdshub/undcal-go/pv"
)

// ErrMotionTimeout means a move did not settle within its bounded wait.
// An indeterminate physical position cannot be trusted, so motion faults
// are fatal to the run, never retried.
var ErrMotionTimeout = errors.New("motion did not settle in time")

// GapMover drives the absolute gap axis: write the target, trigger Go,
// then poll the actual position until it converges within tolerance.
type GapMover struct {
	Des *pv.PV
	Act *pv.PV
	Go  *pv.PV

	Tolerance float64
	Poll      time.Duration
	Settle    time.Duration
	// Timeout bounds the convergence wait. Zero waits until the context
	// is cancelled.
	Timeout time.Duration

	Log *zap.SugaredLogger
}

// Move gates on operator confirmation, commands the gap and blocks until
// the actual position converges.
func (m *GapMover) Move(ctx context.Context, gap float64, ask console.Confirmer) error {
	ok, err := ask.Confirm(fmt.Sprintf("OK to move the gap to %v?", gap), false)
	if err != nil {
		return err
	}
	if !ok {
		return console.ErrAborted
	}
	log := logOr(m.Log)
	log.Infof("Moving to %v...", gap)
	if err := m.Des.Put(ctx, gap); err != nil {
		return err
	}
	if err := pv.Sleep(ctx, m.Settle); err != nil {
		return err
	}
	if err := m.Go.Put(ctx, 1); err != nil {
		return err
	}
	if err := pv.Sleep(ctx, m.Settle); err != nil {
		return err
	}

	wait, cancel := boundedWait(ctx, m.Timeout)
	defer cancel()
	for {
		act, err := m.Act.Get(wait)
		if err != nil {
			return timeoutOr(ctx, wait, fmt.Errorf("gap move to %v: %w", gap, ErrMotionTimeout), err)
		}
		if math.Abs(act-gap) <= m.Tolerance {
			log.Infof("Gap at target %v (err=%v)", act, act-gap)
			return nil
		}
		log.Infof("Gap at %v (err=%v)", act, act-gap)
		if err := pv.Sleep(wait, m.Poll); err != nil {
			return timeoutOr(ctx, wait, fmt.Errorf("gap move to %v: %w", gap, ErrMotionTimeout), err)
		}
	}
}

// InterspaceMover drives one interspace actuator. A move writes every axis
// with a settle delay between writes, triggers the compute-and-move cycle,
// then waits out the two-stage actuation: readback convergence on Y, then
// the moving flag reaching its done value.
type InterspaceMover struct {
	Dev *device.Interspace

	Tolerance float64
	Poll      time.Duration
	Settle    time.Duration
	Timeout   time.Duration
	// MovingDone is the CAMSMOVING readback that marks the slew finished.
	MovingDone float64

	Log *zap.SugaredLogger
}

// MoveY commands a pure vertical offset; all other axes are zeroed.
func (m *InterspaceMover) MoveY(ctx context.Context, y float64) error {
	writes := []struct {
		pv    *pv.PV
		value float64
	}{
		{m.Dev.XDes, 0},
		{m.Dev.YDes, y},
		{m.Dev.RollDes, 0},
		{m.Dev.PitchDes, 0},
		{m.Dev.YawDes, 0},
		{m.Dev.Trigger, 1},
	}
	for _, w := range writes {
		if err := w.pv.Put(ctx, w.value); err != nil {
			return err
		}
		if err := pv.Sleep(ctx, m.Settle); err != nil {
			return err
		}
	}
	return m.waitMove(ctx)
}

func (m *InterspaceMover) waitMove(ctx context.Context) error {
	wait, cancel := boundedWait(ctx, m.Timeout)
	defer cancel()
	fail := fmt.Errorf("%s: %w", m.Dev.ShortName(), ErrMotionTimeout)

	// Stage one: analytic compute has propagated to the Y readback.
	for {
		rdbk, err := m.Dev.YReadback.Get(wait)
		if err != nil {
			return timeoutOr(ctx, wait, fail, err)
		}
		des, err := m.Dev.YDes.Get(wait)
		if err != nil {
			return timeoutOr(ctx, wait, fail, err)
		}
		if math.Abs(des-rdbk) <= m.Tolerance {
			break
		}
		if err := pv.Sleep(wait, m.Poll); err != nil {
			return timeoutOr(ctx, wait, fail, err)
		}
	}

	// Stage two: the physical slew reports done.
	for {
		moving, err := m.Dev.Moving.Get(wait)
		if err != nil {
			return timeoutOr(ctx, wait, fail, err)
		}
		if moving == m.MovingDone {
			return nil
		}
		if err := pv.Sleep(wait, m.Poll); err != nil {
			return timeoutOr(ctx, wait, fail, err)
		}
	}
}

func boundedWait(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// timeoutOr maps a deadline hit on the bounded wait to the motion timeout
// fault, keeping operator cancellation of the parent context intact.
func timeoutOr(parent, wait context.Context, timeoutErr, err error) error {
	if parent.Err() == nil && errors.Is(wait.Err(), context.DeadlineExceeded) {
		return timeoutErr
	}
	return err
}

func logOr(log *zap.SugaredLogger) *zap.SugaredLogger {
	if log == nil {
		return zap.NewNop().Sugar()
	}
	return log
}

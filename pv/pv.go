// Package pv adapts named control-system process variables behind a
// transport-agnostic connection interface.
package pv

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Conn is one named remote scalar as seen by a transport.
//
// Get reports ok=false when the transport could not supply a value in its
// allotted time; err is reserved for transport-level failures.
type Conn interface {
	Name() string
	Connected() bool
	WaitConnection(ctx context.Context) error
	Get(ctx context.Context) (value float64, ok bool, err error)
	Put(ctx context.Context, value float64) error
	Units() string
}

// Provider constructs connections by process variable name.
type Provider interface {
	Conn(name string) Conn
}

// TimeoutError reports a read that produced no value in time. A timed-out
// read never degrades to a default value.
type TimeoutError struct {
	PV string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out while reading value", e.PV)
}

// WriteError reports a failed put.
type WriteError struct {
	PV    string
	Value float64
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: write %v failed: %v", e.PV, e.Value, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// PV wraps a Conn with the read/write semantics the calibration procedures
// rely on.
type PV struct {
	conn Conn
}

func New(conn Conn) *PV {
	return &PV{conn: conn}
}

func (p *PV) Name() string { return p.conn.Name() }

func (p *PV) Connected() bool { return p.conn.Connected() }

func (p *PV) Units() string { return p.conn.Units() }

// Connect blocks until the underlying connection reports connected or the
// context is cancelled.
func (p *PV) Connect(ctx context.Context) error {
	if err := p.conn.WaitConnection(ctx); err != nil {
		return fmt.Errorf("%s: wait for connection: %w", p.Name(), err)
	}
	return nil
}

// Get returns the current value. A missing value surfaces as *TimeoutError,
// never as a zero result.
func (p *PV) Get(ctx context.Context) (float64, error) {
	value, ok, err := p.conn.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: read: %w", p.Name(), err)
	}
	if !ok {
		return 0, &TimeoutError{PV: p.Name()}
	}
	return value, nil
}

// Put sends a value. The remote side is not verified to have accepted it;
// callers confirm through subsequent reads where that matters.
func (p *PV) Put(ctx context.Context, value float64) error {
	if err := p.conn.Put(ctx, value); err != nil {
		return &WriteError{PV: p.Name(), Value: value, Err: err}
	}
	return nil
}

// GetAveraged takes count sequential reads separated by delay and returns
// the raw readings with their mean. Total wall-clock cost is count*delay.
func (p *PV) GetAveraged(ctx context.Context, count int, delay time.Duration) ([]float64, float64, error) {
	if count <= 0 {
		return nil, 0, fmt.Errorf("%s: averaged read needs count > 0", p.Name())
	}
	readings := make([]float64, 0, count)
	for i := 0; i < count; i++ {
		value, err := p.Get(ctx)
		if err != nil {
			return nil, 0, err
		}
		readings = append(readings, value)
		if err := Sleep(ctx, delay); err != nil {
			return nil, 0, err
		}
	}
	return readings, stat.Mean(readings, nil), nil
}

// Sleep waits for d unless the context is cancelled first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

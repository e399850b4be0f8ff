// Package sim is an in-memory control system satisfying the pv.Conn
// contract. It stands in for the real accelerator during tests and
// dry runs: put hooks emulate the IOC-side logic (a gap "Go" trigger
// copying the desired gap into the actual gap, an interspace trigger
// latching the readback and moving flag).
package sim

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/pcdshub/undcal-go/pv"
)

// Access lets a put hook inspect and mutate variables. It is only valid
// for the duration of the hook call.
type Access interface {
	Value(name string) float64
	Set(name string, value float64)
}

// PutHook runs after a value is stored to its variable.
type PutHook func(s Access, value float64)

type variable struct {
	value     float64
	units     string
	connected bool
	deaf      bool // reads produce no value
	noise     float64
	hook      PutHook
	puts      []float64
}

// Provider is a process variable factory backed by a shared variable map.
type Provider struct {
	mu   sync.Mutex
	vars map[string]*variable
	rng  *rand.Rand
}

func NewProvider() *Provider {
	return &Provider{
		vars: make(map[string]*variable),
		rng:  rand.New(rand.NewSource(1)),
	}
}

func (p *Provider) variableLocked(name string) *variable {
	v, ok := p.vars[name]
	if !ok {
		v = &variable{connected: true}
		p.vars[name] = v
	}
	return v
}

// Conn implements pv.Provider.
func (p *Provider) Conn(name string) pv.Conn {
	p.mu.Lock()
	p.variableLocked(name)
	p.mu.Unlock()
	return &conn{p: p, name: name}
}

// Set stores a value without triggering hooks or recording a put.
func (p *Provider) Set(name string, value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.variableLocked(name).value = value
}

// Value returns the stored value.
func (p *Provider) Value(name string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.variableLocked(name).value
}

// SetUnits attaches a unit label.
func (p *Provider) SetUnits(name, units string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.variableLocked(name).units = units
}

// SetNoise adds uniform read noise of the given half-width.
func (p *Provider) SetNoise(name string, amplitude float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.variableLocked(name).noise = amplitude
}

// SetDeaf makes reads of name produce no value, like a stalled channel.
func (p *Provider) SetDeaf(name string, deaf bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.variableLocked(name).deaf = deaf
}

// SetConnected flips the reported connection state.
func (p *Provider) SetConnected(name string, connected bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.variableLocked(name).connected = connected
}

// OnPut installs a hook run after each put to name.
func (p *Provider) OnPut(name string, hook PutHook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.variableLocked(name).hook = hook
}

// Puts returns every value written to name, in order.
func (p *Provider) Puts(name string) []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := p.variableLocked(name)
	out := make([]float64, len(v.puts))
	copy(out, v.puts)
	return out
}

// LinkTrigger wires a put hook so that writing trigger copies src into dst,
// mirroring the test IOC's Go putter.
func (p *Provider) LinkTrigger(trigger, src, dst string) {
	p.OnPut(trigger, func(s Access, _ float64) {
		s.Set(dst, s.Value(src))
	})
}

type access struct{ p *Provider }

func (a access) Value(name string) float64 {
	return a.p.variableLocked(name).value
}

func (a access) Set(name string, value float64) {
	a.p.variableLocked(name).value = value
}

type conn struct {
	p    *Provider
	name string
}

func (c *conn) Name() string { return c.name }

func (c *conn) Units() string {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	return c.p.variableLocked(c.name).units
}

func (c *conn) Connected() bool {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	return c.p.variableLocked(c.name).connected
}

func (c *conn) WaitConnection(ctx context.Context) error {
	for {
		if c.Connected() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := pv.Sleep(ctx, time.Millisecond); err != nil {
			return err
		}
	}
}

func (c *conn) Get(ctx context.Context) (float64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	v := c.p.variableLocked(c.name)
	if !v.connected {
		return 0, false, fmt.Errorf("%s: not connected", c.name)
	}
	if v.deaf {
		return 0, false, nil
	}
	value := v.value
	if v.noise > 0 {
		value += (c.p.rng.Float64()*2 - 1) * v.noise
	}
	return value, true, nil
}

func (c *conn) Put(ctx context.Context, value float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	v := c.p.variableLocked(c.name)
	if !v.connected {
		return fmt.Errorf("%s: not connected", c.name)
	}
	v.value = value
	v.puts = append(v.puts, value)
	if v.hook != nil {
		v.hook(access{p: c.p}, value)
	}
	return nil
}

// Package catool backs the pv contract with the EPICS base command line
// tools (caget, caput). Accelerator hosts ship these with every EPICS
// install, which makes them the portable transport when no native Channel
// Access client is available.
package catool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pcdshub/undcal-go/pv"
)

// Provider creates connections that shell out per operation with a fixed
// per-call timeout.
type Provider struct {
	// Timeout is passed to caget/caput as -w. Zero means 1s.
	Timeout time.Duration
	// Poll is the probe interval while waiting for a connection.
	// Zero means 500ms.
	Poll time.Duration

	// Tool name overrides, for tests.
	cagetBin string
	caputBin string
}

func NewProvider(timeout time.Duration) *Provider {
	return &Provider{Timeout: timeout}
}

func (p *Provider) timeout() time.Duration {
	if p.Timeout <= 0 {
		return time.Second
	}
	return p.Timeout
}

func (p *Provider) poll() time.Duration {
	if p.Poll <= 0 {
		return 500 * time.Millisecond
	}
	return p.Poll
}

func (p *Provider) waitArg() string {
	return strconv.FormatFloat(p.timeout().Seconds(), 'f', -1, 64)
}

func (p *Provider) caget() string {
	if p.cagetBin != "" {
		return p.cagetBin
	}
	return "caget"
}

func (p *Provider) caput() string {
	if p.caputBin != "" {
		return p.caputBin
	}
	return "caput"
}

// Conn implements pv.Provider.
func (p *Provider) Conn(name string) pv.Conn {
	return &conn{p: p, name: name}
}

type conn struct {
	p    *Provider
	name string

	mu        sync.Mutex
	connected bool
	units     string
}

func (c *conn) Name() string { return c.name }

func (c *conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *conn) Units() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.units
}

// WaitConnection probes the channel until a read succeeds.
func (c *conn) WaitConnection(ctx context.Context) error {
	for {
		_, ok, err := c.Get(ctx)
		if err == nil && ok {
			return nil
		}
		if err := pv.Sleep(ctx, c.p.poll()); err != nil {
			return err
		}
	}
}

func (c *conn) Get(ctx context.Context) (float64, bool, error) {
	// -a carries the unit label alongside the value.
	out, err := run(ctx, c.p.caget(), "-a", "-w", c.p.waitArg(), c.name)
	if err != nil {
		// A missing tool is a broken host, not a silent channel.
		if errors.Is(err, exec.ErrNotFound) {
			return 0, false, err
		}
		// caget exits nonzero both for unreachable channels and for
		// per-call timeouts; either way there is no value.
		c.setConnected(false)
		return 0, false, nil
	}
	value, units, perr := parseCaget(out)
	if perr != nil {
		return 0, false, fmt.Errorf("%s: %w", c.name, perr)
	}
	c.mu.Lock()
	c.connected = true
	if units != "" {
		c.units = units
	}
	c.mu.Unlock()
	return value, true, nil
}

func (c *conn) Put(ctx context.Context, value float64) error {
	val := strconv.FormatFloat(value, 'g', -1, 64)
	if _, err := run(ctx, c.p.caput(), "-w", c.p.waitArg(), c.name, val); err != nil {
		c.setConnected(false)
		return err
	}
	return nil
}

func (c *conn) setConnected(connected bool) {
	c.mu.Lock()
	c.connected = connected
	c.mu.Unlock()
}

func run(ctx context.Context, tool string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, tool, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s %s: %w: %s",
			tool, strings.Join(args, " "), err, strings.TrimSpace(out.String()))
	}
	return out.String(), nil
}

// parseCaget handles "NAME <date> <time> <value> [units]" as printed by
// caget -a for scalar channels.
func parseCaget(out string) (value float64, units string, err error) {
	fields := strings.Fields(strings.TrimSpace(out))
	if len(fields) < 2 {
		return 0, "", fmt.Errorf("unexpected caget output %q", out)
	}
	// Scan from the end: the value is the last numeric field, anything
	// after it is the unit label.
	for i := len(fields) - 1; i > 0; i-- {
		v, perr := strconv.ParseFloat(fields[i], 64)
		if perr != nil {
			continue
		}
		return v, strings.Join(fields[i+1:], " "), nil
	}
	return 0, "", fmt.Errorf("no numeric value in caget output %q", out)
}

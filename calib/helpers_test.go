package calib

import "context"

// scriptConn replays a fixed sequence of readings; once exhausted it
// repeats the last value. An empty script produces no value at all,
// standing in for a timed-out channel.
type scriptConn struct {
	name   string
	units  string
	values []float64
	next   int
	reads  int
	puts   []float64
}

func (c *scriptConn) Name() string    { return c.name }
func (c *scriptConn) Connected() bool { return true }
func (c *scriptConn) Units() string   { return c.units }

func (c *scriptConn) WaitConnection(ctx context.Context) error { return ctx.Err() }

func (c *scriptConn) Get(ctx context.Context) (float64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	c.reads++
	if len(c.values) == 0 {
		return 0, false, nil
	}
	v := c.values[c.next]
	if c.next < len(c.values)-1 {
		c.next++
	}
	return v, true, nil
}

func (c *scriptConn) Put(ctx context.Context, value float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.puts = append(c.puts, value)
	return nil
}

// askScript answers prompts from a fixed list; it fails closed once the
// list runs out.
type askScript struct {
	answers []bool
	asked   int
}

func (a *askScript) Confirm(prompt string, allowNo bool) (bool, error) {
	a.asked++
	if len(a.answers) == 0 {
		return false, nil
	}
	ans := a.answers[0]
	a.answers = a.answers[1:]
	return ans, nil
}

// askYes confirms everything and counts the prompts.
type askYes struct {
	asked int
}

func (a *askYes) Confirm(prompt string, allowNo bool) (bool, error) {
	a.asked++
	return true, nil
}

// Package console implements the operator prompt: yes/no questions with an
// always-available quit escape.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ErrAborted means the operator typed q/quit at a prompt. The run stops
// immediately; nothing already persisted is retracted.
var ErrAborted = errors.New("aborted by operator")

// Confirmer asks the operator a yes/no question. When allowNo is false the
// prompt repeats until the answer is yes (or quit).
type Confirmer interface {
	Confirm(prompt string, allowNo bool) (bool, error)
}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(prompt string, allowNo bool) (bool, error)

func (f ConfirmFunc) Confirm(prompt string, allowNo bool) (bool, error) {
	return f(prompt, allowNo)
}

var (
	promptStyle = lipgloss.NewStyle().Bold(true)
	hintStyle   = lipgloss.NewStyle().Faint(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// OK renders s in the success style.
func OK(s string) string { return okStyle.Render(s) }

// Warn renders s in the warning style.
func Warn(s string) string { return warnStyle.Render(s) }

// Terminal is the interactive Confirmer reading word answers line-wise,
// which keeps it usable over remote shells.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
}

func NewTerminal() *Terminal {
	return &Terminal{in: bufio.NewReader(os.Stdin), out: os.Stdout}
}

// NewTerminalWith reads from r and writes to w.
func NewTerminalWith(r io.Reader, w io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(r), out: w}
}

func (t *Terminal) Confirm(prompt string, allowNo bool) (bool, error) {
	for {
		fmt.Fprintln(t.out, promptStyle.Render(prompt)+" "+hintStyle.Render("[yn]"))
		line, err := t.in.ReadString('\n')
		if err != nil && line == "" {
			return false, fmt.Errorf("read answer: %w", err)
		}
		switch strings.TrimSpace(line) {
		case "yes", "y":
			return true, nil
		case "no", "n":
			if allowNo {
				return false, nil
			}
		case "q", "quit":
			return false, ErrAborted
		}
		fmt.Fprintln(t.out, "y, n, or q to quit")
	}
}

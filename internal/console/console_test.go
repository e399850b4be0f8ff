package console

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmAnswers(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		allowNo bool
		want    bool
		wantErr error
	}{
		{"yes word", "yes\n", true, true, nil},
		{"y short", "y\n", true, true, nil},
		{"no word allowed", "no\n", true, false, nil},
		{"n short allowed", "n\n", true, false, nil},
		{"quit", "q\n", true, false, ErrAborted},
		{"quit word", "quit\n", false, false, ErrAborted},
		{"whitespace tolerated", "  y  \n", true, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			term := NewTerminalWith(strings.NewReader(tt.input), &out)
			got, err := term.Confirm("Proceed?", tt.allowNo)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "Proceed?")
		})
	}
}

func TestConfirmRepromptsWhenNoIsDisallowed(t *testing.T) {
	var out bytes.Buffer
	term := NewTerminalWith(strings.NewReader("n\nmaybe\ny\n"), &out)
	got, err := term.Confirm("OK to move the gap to 22?", false)
	require.NoError(t, err)
	assert.True(t, got)
	assert.Contains(t, out.String(), "y, n, or q to quit")
}

func TestConfirmEOF(t *testing.T) {
	term := NewTerminalWith(strings.NewReader(""), &bytes.Buffer{})
	_, err := term.Confirm("Proceed?", true)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAborted)
}

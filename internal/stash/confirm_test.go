package stash

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrompt_Confirm(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"yeah\n", true},
		{"yep\n", true},
		{"true\n", true},
		{"t\n", true},
		{"1\n", true},
		{"  Y  \n", true},
		{"n\n", false},
		{"no\n", false},
		{"\n", false},
		{"sure\n", false},
		{"", false},
		{"y", true},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.answer), func(t *testing.T) {
			var out bytes.Buffer
			p := NewPrompt(strings.NewReader(tt.answer), &out)

			got, err := p.Confirm("add it?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "add it? (y/yes) ", out.String())
		})
	}
}

func TestPrompt_MultipleQuestions(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompt(strings.NewReader("yes\nno\n"), &out)

	first, err := p.Confirm("first?")
	require.NoError(t, err)
	second, err := p.Confirm("second?")
	require.NoError(t, err)
	third, err := p.Confirm("third?")
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	assert.False(t, third, "exhausted input declines")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("tty gone") }

func TestPrompt_ReadError(t *testing.T) {
	p := NewPrompt(failingReader{}, &bytes.Buffer{})
	_, err := p.Confirm("q?")
	assert.ErrorContains(t, err, "tty gone")
}

func TestAutoPolicies(t *testing.T) {
	ok, err := AutoAccept.Confirm("anything")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = AutoDecline.Confirm("anything")
	require.NoError(t, err)
	assert.False(t, ok)
}

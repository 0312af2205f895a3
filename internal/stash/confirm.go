package stash

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Confirmer asks the operator whether a risky entry should be added
type Confirmer interface {
	Confirm(question string) (bool, error)
}

// ConfirmFunc adapts a function to the Confirmer interface
type ConfirmFunc func(question string) (bool, error)

// Confirm calls f(question)
func (f ConfirmFunc) Confirm(question string) (bool, error) {
	return f(question)
}

var (
	// AutoAccept answers yes without asking
	AutoAccept Confirmer = ConfirmFunc(func(string) (bool, error) { return true, nil })

	// AutoDecline answers no without asking; used when nobody can answer
	AutoDecline Confirmer = ConfirmFunc(func(string) (bool, error) { return false, nil })
)

var affirmative = map[string]bool{
	"y":    true,
	"yes":  true,
	"yeah": true,
	"yep":  true,
	"true": true,
	"t":    true,
	"1":    true,
}

// Prompt asks on out and reads one line per question from in
type Prompt struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompt creates an interactive Confirmer
func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{in: bufio.NewReader(in), out: out}
}

// Confirm prints question and reports whether the answer is affirmative.
// End of input counts as a no.
func (p *Prompt) Confirm(question string) (bool, error) {
	if _, err := fmt.Fprintf(p.out, "%s (y/yes) ", question); err != nil {
		return false, fmt.Errorf("failed to write prompt: %w", err)
	}

	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}

	return affirmative[strings.ToLower(strings.TrimSpace(line))], nil
}

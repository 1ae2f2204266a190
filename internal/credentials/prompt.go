package credentials

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// ErrNotTerminal is returned when a prompt is needed but input is not a TTY.
var ErrNotTerminal = errors.New("input is not a terminal")

// TermPrompter reads secrets from a terminal without echo.
type TermPrompter struct {
	In  *os.File
	Out io.Writer
}

// NewTermPrompter prompts on stderr and reads stdin.
func NewTermPrompter() *TermPrompter {
	return &TermPrompter{In: os.Stdin, Out: os.Stderr}
}

// Interactive reports whether In is a terminal.
func (p *TermPrompter) Interactive() bool {
	return p.In != nil && term.IsTerminal(int(p.In.Fd()))
}

// Prompt implements Prompter.
func (p *TermPrompter) Prompt(label string) (string, error) {
	if !p.Interactive() {
		return "", ErrNotTerminal
	}
	fmt.Fprintf(p.Out, "%s: ", label)
	b, err := term.ReadPassword(int(p.In.Fd()))
	fmt.Fprintln(p.Out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

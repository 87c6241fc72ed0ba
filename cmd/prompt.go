package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/desertthunder/stylx/internal/shared"
	"golang.org/x/term"
)

// Prompter asks the user for input the flags did not supply.
type Prompter interface {
	Line(label string) (string, error)
	Password(label string) (string, error)
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// TerminalPrompter reads from a terminal, hiding passwords when the input is a TTY.
type TerminalPrompter struct {
	in     *bufio.Reader
	fd     int
	tty    bool
	output io.Writer
}

// NewTerminalPrompter creates a prompter reading in and echoing labels to out.
func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	p := &TerminalPrompter{in: bufio.NewReader(in), output: out}
	if f, ok := in.(*os.File); ok {
		p.fd = int(f.Fd())
		p.tty = term.IsTerminal(p.fd)
	}
	return p
}

func (p *TerminalPrompter) Line(label string) (string, error) {
	fmt.Fprintf(p.output, "%s: ", label)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("%w: %s not provided", shared.ErrMissingArgument, strings.ToLower(label))
	}
	return strings.TrimSpace(line), nil
}

func (p *TerminalPrompter) Password(label string) (string, error) {
	if !p.tty {
		return p.Line(label)
	}

	fmt.Fprintf(p.output, "%s: ", label)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.output)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

// Confirm accepts y or yes. Anything else, including EOF, is a refusal.
func (p *TerminalPrompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	answer, err := p.Line(prompt + " [y/N]")
	if err != nil {
		return false, nil
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

package services

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/desertthunder/spotsync/internal/shared"
)

// LinePrompter reads one line of input after printing a prompt.
type LinePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewLinePrompter creates a prompter reading from in and writing prompts to out.
func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{in: bufio.NewReader(in), out: out}
}

// Prompt prints message and returns the trimmed line entered.
//
// Returns [shared.ErrMissingArgument] on empty input or EOF, or the context error if ctx ends first.
func (p *LinePrompter) Prompt(ctx context.Context, message string) (string, error) {
	fmt.Fprint(p.out, message)

	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		done <- result{line, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		line := strings.TrimSpace(r.line)
		if line == "" {
			if r.err != nil && r.err != io.EOF {
				return "", fmt.Errorf("failed to read input: %w", r.err)
			}
			return "", fmt.Errorf("%w: no identifier entered", shared.ErrMissingArgument)
		}
		return line, nil
	}
}

package client

import (
	"bufio"
	"fmt"
	"io"
)

// Console reads lines from an input stream and writes prompts to out.
type Console struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// NewConsole creates a Console. out may be nil to suppress prompts.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{
		scanner: bufio.NewScanner(in),
		out:     out,
	}
}

// ReadLine implements LineReader.
func (c *Console) ReadLine(prompt string) (string, error) {
	if c.out != nil && prompt != "" {
		fmt.Fprint(c.out, prompt)
	}
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return "", fmt.Errorf("error reading input: %w", err)
		}
		return "", io.EOF
	}
	return c.scanner.Text(), nil
}

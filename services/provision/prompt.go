package provision

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Prompter gates confirmable steps on an operator decision.
type Prompter interface {
	Confirm(prompt string) bool
}

// AutoConfirm accepts every prompt; used with --yes and in tests.
type AutoConfirm struct{}

func (AutoConfirm) Confirm(string) bool { return true }

// StdioPrompter asks y/n questions on the terminal and insists on an
// explicit answer rather than defaulting on Enter.
type StdioPrompter struct {
	In  io.Reader
	Out io.Writer

	scanner *bufio.Scanner
}

func (p *StdioPrompter) Confirm(prompt string) bool {
	// One scanner for the prompter's lifetime. A fresh scanner per call
	// would read ahead of the current line and swallow the piped
	// answers meant for later prompts.
	if p.scanner == nil {
		p.scanner = bufio.NewScanner(p.In)
	}
	for {
		fmt.Fprintf(p.Out, "%s (y/n): ", prompt)
		if !p.scanner.Scan() {
			// EOF on stdin: treat as decline rather than hang.
			return false
		}
		switch strings.ToLower(strings.TrimSpace(p.scanner.Text())) {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		default:
			fmt.Fprintln(p.Out, "Please answer yes (y) or no (n).")
		}
	}
}

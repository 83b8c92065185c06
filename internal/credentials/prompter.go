package credentials

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter reads credentials interactively.
type Prompter interface {
	// ReadLine prints the prompt and reads one visible line.
	ReadLine(prompt string) (string, error)

	// ReadSecret prints the prompt and reads one line without echo.
	ReadSecret(prompt string) (string, error)
}

// terminalPrompter reads from the process terminal.
type terminalPrompter struct{}

func (terminalPrompter) ReadLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (terminalPrompter) ReadSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}

// promptResult carries one prompt outcome across the goroutine
// boundary.
type promptResult struct {
	value string
	err   error
}

// readWithContext runs a blocking prompt read and abandons it when the
// context ends. An abandoned terminal read stays blocked until process
// exit; there is no portable way to interrupt it, so shutdown during a
// prompt simply stops waiting for the answer.
func readWithContext(ctx context.Context, read func() (string, error)) (string, error) {
	results := make(chan promptResult, 1)
	go func() {
		value, err := read()
		results <- promptResult{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-results:
		return r.value, r.err
	}
}

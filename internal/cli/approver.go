package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"loom/internal/permission"
)

// TerminalApprover answers permission escalations by prompting on the
// terminal. Without a TTY every escalation is denied, so piped or
// scripted runs never hang waiting for input.
type TerminalApprover struct {
	mu  sync.Mutex
	in  io.Reader
	out io.Writer

	// isTTY is resolved once at construction.
	isTTY bool
}

var _ permission.Approver = (*TerminalApprover)(nil)

// NewTerminalApprover creates an approver bound to stdin/stderr.
func NewTerminalApprover() *TerminalApprover {
	return &TerminalApprover{
		in:    os.Stdin,
		out:   os.Stderr,
		isTTY: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

// Approve prompts the collaborator and blocks until they answer or ctx
// is cancelled.
func (a *TerminalApprover) Approve(ctx context.Context, req permission.Request) (permission.Verdict, error) {
	if !a.isTTY {
		return permission.Verdict{Allow: false, Message: "no terminal available"}, nil
	}

	// One prompt at a time; dispatch is sequential but serve mode may
	// escalate from several runs.
	a.mu.Lock()
	defer a.mu.Unlock()

	fmt.Fprintf(a.out, "\n  %s wants to %s: %s\n", req.Tool, req.Kind, req.Target)
	if req.Detail != "" {
		fmt.Fprintf(a.out, "  %s\n", req.Detail)
	}
	fmt.Fprintf(a.out, "  Allow? [y]es / [a]lways / [n]o: ")

	answerCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		line, err := bufio.NewReader(a.in).ReadString('\n')
		if err != nil {
			errCh <- err
			return
		}
		answerCh <- line
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(a.out)
		return permission.Verdict{}, ctx.Err()
	case err := <-errCh:
		if err == io.EOF {
			return permission.Verdict{Allow: false, Message: "input closed"}, nil
		}
		return permission.Verdict{}, err
	case line := <-answerCh:
		return parseAnswer(line), nil
	}
}

// parseAnswer maps a typed line to a verdict. Anything unrecognized is
// a denial.
func parseAnswer(line string) permission.Verdict {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return permission.Verdict{Allow: true}
	case "a", "always":
		return permission.Verdict{Allow: true, Remember: true}
	default:
		return permission.Verdict{Allow: false}
	}
}

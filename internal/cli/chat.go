package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"loom/internal/runner"
)

func newChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the agent",
		Long: `Run the conversation loop in this terminal. With a message argument
one turn is executed and loom exits; without one an interactive session
starts. Tool calls the model proposes are checked by the permission
gate, which prompts here when policy does not decide.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := getCLIContext(cmd)
			if err != nil {
				return err
			}

			a, err := buildAgent(cmd.Context(), cliCtx, NewTerminalApprover())
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 1 {
				return runTurn(cmd.Context(), a, args[0])
			}
			return interactiveSession(cmd.Context(), a)
		},
	}
	return cmd
}

// runTurn executes one turn, streaming output to the terminal. A SIGINT
// cancels the run without killing the process.
func runTurn(ctx context.Context, a *agent, input string) error {
	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err := a.runner.Run(runCtx, input, printEvent)
	fmt.Println()

	switch {
	case err == nil:
		return nil
	case errors.Is(err, runner.ErrCancelled):
		fmt.Println("(cancelled)")
		return nil
	default:
		return err
	}
}

// interactiveSession reads inputs until EOF or /exit.
func interactiveSession(ctx context.Context, a *agent) error {
	fmt.Println("loom interactive session. /help for commands, /exit to leave.")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if done := handleCommand(a, input); done {
				return nil
			}
			continue
		}

		if err := runTurn(ctx, a, input); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

// handleCommand executes a slash command. Returns true to end the
// session.
func handleCommand(a *agent, input string) bool {
	switch input {
	case "/exit", "/quit":
		return true

	case "/clear":
		a.runner.History().Clear()
		fmt.Println("History cleared.")

	case "/tools":
		for _, t := range a.registry.List() {
			fmt.Printf("  %-20s %s\n", t.Name(), t.Description())
		}

	case "/mode":
		fmt.Printf("Approval mode: %s\n", a.gate.Mode())

	case "/help":
		fmt.Println("  /clear  drop conversation history")
		fmt.Println("  /tools  list available tools")
		fmt.Println("  /mode   show the approval mode")
		fmt.Println("  /exit   leave the session")

	default:
		fmt.Printf("Unknown command: %s\n", input)
	}
	return false
}

// printEvent renders one loop event on the terminal.
func printEvent(ev runner.Event) {
	switch ev.Type {
	case runner.EventContent:
		fmt.Print(ev.Content)

	case runner.EventToolCall:
		if ev.ToolCall != nil {
			fmt.Printf("\n[tool] %s %s\n", ev.ToolCall.Name, ev.ToolCall.Arguments)
		}

	case runner.EventToolResult:
		if ev.ToolResult != nil {
			status := "ok"
			if ev.ToolResult.IsError {
				status = "error"
			}
			fmt.Printf("[tool] %s %s (%s)\n", ev.ToolResult.Name, status, ev.ToolResult.Duration.Round(time.Millisecond))
		}

	case runner.EventError:
		if ev.Err != nil {
			fmt.Fprintf(os.Stderr, "\nerror: %v\n", ev.Err)
		}
	}
}

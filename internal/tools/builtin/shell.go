package builtin

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"syscall"
	"time"

	"loom/internal/permission"
	"loom/internal/tools"
)

// ShellArgs defines the parameters for the shell tool.
type ShellArgs struct {
	Command string `json:"command" jsonschema:"description=The shell command to execute,required"`
	Timeout int    `json:"timeout" jsonschema:"description=Timeout in seconds (default: 30)"`
	WorkDir string `json:"work_dir" jsonschema:"description=Working directory for the command"`
}

// ShellTool executes shell commands.
type ShellTool struct {
	tools.BaseTool
	// MaxOutputSize caps captured stdout and stderr, each.
	MaxOutputSize int
}

// NewShellTool creates a shell tool.
func NewShellTool() *ShellTool {
	return &ShellTool{
		BaseTool: tools.BaseTool{
			ToolName:        "shell",
			ToolDescription: "Execute a shell command and return its output. Use this to run system commands or scripts.",
			ToolParameters:  tools.BuildSchema(ShellArgs{}),
		},
		MaxOutputSize: 1024 * 1024,
	}
}

// Permissions reports the subprocess this invocation runs. The full
// command line is the target so the gate can key on the program name.
func (t *ShellTool) Permissions(args map[string]any) []permission.Request {
	command, _ := tools.StringArg(args, "command")
	return []permission.Request{{
		Kind:   permission.KindExecute,
		Target: command,
		Tool:   t.Name(),
	}}
}

// Execute runs the command.
func (t *ShellTool) Execute(ctx context.Context, args map[string]any) (tools.Result, error) {
	command, _ := tools.StringArg(args, "command")
	if command == "" {
		return tools.Fail("command is required"), nil
	}

	timeout, ok := tools.IntArg(args, "timeout")
	if !ok || timeout <= 0 {
		timeout = 30
	}
	workDir, _ := tools.StringArg(args, "work_dir")

	execCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(execCtx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(execCtx, "sh", "-c", command)
	}
	if workDir != "" {
		cmd.Dir = workDir
	}

	// On timeout or cancellation, ask the process to stop before killing
	// it: SIGTERM first, hard kill after the grace period.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	var b strings.Builder
	if stdout.Len() > 0 {
		b.WriteString(truncateOutput(stdout.String(), t.MaxOutputSize))
	}
	if stderr.Len() > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("STDERR:\n")
		b.WriteString(truncateOutput(stderr.String(), t.MaxOutputSize))
	}

	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return tools.Result{}, tools.NewTimeoutError(t.Name(), fmt.Sprintf("%ds", timeout))
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Exit error: %v", err)
		return tools.Fail(b.String()), nil
	}

	if b.Len() == 0 {
		return tools.Ok("(no output)"), nil
	}
	return tools.Ok(b.String()), nil
}

func truncateOutput(s string, max int) string {
	if len(s) > max {
		return s[:max] + "\n... (output truncated)"
	}
	return s
}

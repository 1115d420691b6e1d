// Package shellexec runs a command line through a system shell and
// captures its output, enforcing a hard timeout.
package shellexec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/faanross/meshc2/internal/spec"
)

// Result is the captured outcome of running a command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Run executes command through a POSIX shell (or cmd.exe on Windows),
// with cwd as its working directory (unset if cwd is ""), bounded by
// timeout. On timeout, the process is killed, whatever output was
// captured is kept, and a notice is appended to stderr.
func Run(ctx context.Context, command, cwd string, timeout time.Duration) Result {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := shellCommand(execCtx, command)
	// Once the shell is killed, stop waiting for children that still hold
	// the output pipes open.
	cmd.WaitDelay = 100 * time.Millisecond
	if cwd != "" {
		cmd.Dir = cwd
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if execCtx.Err() == context.DeadlineExceeded {
		result.Stderr += fmt.Sprintf("\nCommand timed out after %gs", timeout.Seconds())
		result.ExitCode = -1
		return result
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
		}
		return result
	}

	result.ExitCode = cmd.ProcessState.ExitCode()
	return result
}

func shellCommand(ctx context.Context, command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd.exe", "/C", command)
	}
	return exec.CommandContext(ctx, "/bin/sh", "-c", command)
}

// FormatBlob combines stdout and stderr the way the agent reports a
// command's outcome: trimmed, "<no output>" if empty, followed by a
// timing line and a terminating "Done" sentinel. totalSeconds measures
// frame-receive to exec-done; execSeconds measures exec-start to
// exec-done.
func FormatBlob(stdout, stderr string, totalSeconds, execSeconds float64) string {
	combined := stdout
	if stderr != "" {
		if combined != "" {
			combined += "\n"
		}
		combined += stderr
	}
	combined = strings.TrimSpace(combined)
	if combined == "" {
		combined = spec.MarkerNoOutput
	}

	timing := fmt.Sprintf("Timing: total=%.3fs exec=%.3fs", totalSeconds, execSeconds)
	return combined + "\n" + timing + "\n" + spec.MarkerDone
}

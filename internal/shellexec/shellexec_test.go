package shellexec

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"
)

func echoCommand(s string) string {
	if runtime.GOOS == "windows" {
		return "echo " + s
	}
	return "echo " + s
}

func TestRun_CapturesStdout(t *testing.T) {
	r := Run(context.Background(), echoCommand("hello"), "", 2*time.Second)
	if !strings.Contains(r.Stdout, "hello") {
		t.Fatalf("expected stdout to contain 'hello', got %q", r.Stdout)
	}
	if r.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %d", r.ExitCode)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("exit builtin differs on windows cmd.exe")
	}
	r := Run(context.Background(), "exit 3", "", 2*time.Second)
	if r.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", r.ExitCode)
	}
}

func TestRun_Cwd(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("pwd is not a cmd.exe builtin")
	}
	dir := t.TempDir()
	r := Run(context.Background(), "pwd", dir, 2*time.Second)
	if !strings.Contains(strings.TrimSpace(r.Stdout), dir) {
		t.Fatalf("expected pwd output to contain %q, got %q", dir, r.Stdout)
	}
}

func TestRun_Timeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("sleep is not a cmd.exe builtin")
	}
	r := Run(context.Background(), "sleep 5", "", 50*time.Millisecond)
	if r.ExitCode != -1 {
		t.Fatalf("expected exit code -1 on timeout, got %d", r.ExitCode)
	}
	if !strings.Contains(r.Stderr, "timed out") {
		t.Errorf("expected a timeout notice in stderr, got %q", r.Stderr)
	}
}

func TestFormatBlob_NoOutput(t *testing.T) {
	blob := FormatBlob("", "", 0.010, 0.008)
	if !strings.HasPrefix(blob, "<no output>\n") {
		t.Fatalf("expected <no output> marker, got %q", blob)
	}
	if !strings.HasSuffix(blob, "\nDone") {
		t.Errorf("expected blob to end with Done, got %q", blob)
	}
}

func TestFormatBlob_CombinesStdoutAndStderr(t *testing.T) {
	blob := FormatBlob("out line", "err line", 1, 1)
	if !strings.Contains(blob, "out line\nerr line") {
		t.Errorf("expected stdout then stderr, got %q", blob)
	}
}

func TestFormatBlob_TrimsWhitespace(t *testing.T) {
	blob := FormatBlob("  padded  \n", "", 1, 1)
	if strings.HasPrefix(blob, " ") || strings.HasPrefix(blob, "\n") {
		t.Errorf("expected leading whitespace trimmed, got %q", blob)
	}
}

func TestFormatBlob_EndsWithDoneSentinel(t *testing.T) {
	blob := FormatBlob("x", "", 0.5, 0.4)
	lines := strings.Split(blob, "\n")
	if lines[len(lines)-1] != "Done" {
		t.Errorf("expected last line to be Done, got %q", lines[len(lines)-1])
	}
	if !strings.Contains(blob, "Timing: total=0.500s exec=0.400s") {
		t.Errorf("expected a timing line, got %q", blob)
	}
}

// Package session tracks per-sender working directories so that a
// command issued by one controller doesn't see another's `cd`.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Table is a mutex-guarded sender-id -> session mapping.
type Table struct {
	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	cwd string
}

// New creates an empty session table.
func New() *Table {
	return &Table{sessions: make(map[string]*entry)}
}

// Get returns the sender's current working directory, creating a fresh
// session rooted at the process's home directory if none exists yet.
func (t *Table) Get(sender string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.getLocked(sender).cwd
}

func (t *Table) getLocked(sender string) *entry {
	e, ok := t.sessions[sender]
	if !ok {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "/"
		}
		e = &entry{cwd: home}
		t.sessions[sender] = e
	}
	return e
}

// End deletes sender's session, if any.
func (t *Table) End(sender string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, sender)
}

// Result is a synthesized (stdout, stderr, exitCode) triple, matching the
// shape the shell executor returns, so session subcommands and real
// commands can be formatted identically by the caller.
type Result struct {
	Stdout string
	Stderr string
	Exit   int
}

// HandleCommand recognizes `session[...]` and `cd[...]` subcommands and
// executes them against sender's entry, returning handled=false for
// anything else (the caller should fall through to the shell executor).
func (t *Table) HandleCommand(sender, command string) (result Result, handled bool) {
	trimmed := strings.TrimSpace(command)
	lower := strings.ToLower(trimmed)

	switch {
	case lower == "session" || lower == "session status":
		return Result{Stdout: "Session active\nCWD:" + t.Get(sender)}, true

	case lower == "session start":
		return Result{Stdout: "Session started\nCWD:" + t.Get(sender)}, true

	case lower == "session end":
		t.End(sender)
		return Result{Stdout: "Session ended"}, true

	case strings.HasPrefix(lower, "session"):
		return Result{Stdout: "Usage: session start | session status | session end"}, true

	case lower == "cd" || strings.HasPrefix(lower, "cd "):
		return t.changeDir(sender, trimmed), true
	}

	return Result{}, false
}

func (t *Table) changeDir(sender, command string) Result {
	t.mu.Lock()
	e := t.getLocked(sender)
	t.mu.Unlock()

	arg := "~"
	if idx := strings.IndexByte(command, ' '); idx >= 0 {
		if rest := strings.TrimSpace(command[idx+1:]); rest != "" {
			arg = rest
		}
	}

	target, err := expandHome(arg)
	if err != nil {
		return Result{Stderr: fmt.Sprintf("cd: no such directory: %s", arg), Exit: 1}
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(e.cwd, target)
	}
	target = filepath.Clean(target)

	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		return Result{Stderr: fmt.Sprintf("cd: no such directory: %s", target), Exit: 1}
	}

	t.mu.Lock()
	e.cwd = target
	t.mu.Unlock()

	return Result{Stdout: "CWD:" + target}
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}

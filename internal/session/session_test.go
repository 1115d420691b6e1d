package session

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func setHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	} else {
		t.Setenv("HOME", home)
	}
	return home
}

func TestTable_GetCreatesSessionAtHome(t *testing.T) {
	home := setHome(t)
	tbl := New()

	cwd := tbl.Get("alice")
	if cwd != home {
		t.Fatalf("Get = %q, want %q", cwd, home)
	}
}

func TestTable_SessionIsolationPerSender(t *testing.T) {
	home := setHome(t)
	tbl := New()
	sub := filepath.Join(home, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	if _, handled := tbl.HandleCommand("alice", "cd sub"); !handled {
		t.Fatalf("expected cd to be handled")
	}
	if got := tbl.Get("alice"); got != sub {
		t.Errorf("alice's cwd = %q, want %q", got, sub)
	}
	if got := tbl.Get("bob"); got != home {
		t.Errorf("bob's cwd should be untouched by alice's cd, got %q, want %q", got, home)
	}
}

func TestTable_SessionStatusAndStart(t *testing.T) {
	home := setHome(t)
	tbl := New()

	r, handled := tbl.HandleCommand("alice", "session")
	if !handled || !strings.Contains(r.Stdout, "CWD:"+home) {
		t.Fatalf("session status result = %+v", r)
	}

	r, handled = tbl.HandleCommand("alice", "SESSION START")
	if !handled || !strings.Contains(r.Stdout, "Session started") {
		t.Fatalf("session start result = %+v", r)
	}
}

func TestTable_SessionEndClearsCwd(t *testing.T) {
	home := setHome(t)
	tbl := New()
	sub := filepath.Join(home, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	tbl.HandleCommand("alice", "cd sub")

	r, handled := tbl.HandleCommand("alice", "session end")
	if !handled || r.Stdout != "Session ended" {
		t.Fatalf("session end result = %+v", r)
	}

	// A fresh session is created back at home.
	if got := tbl.Get("alice"); got != home {
		t.Errorf("expected session end to reset cwd to home, got %q want %q", got, home)
	}
}

func TestTable_SessionUnknownSubcommand(t *testing.T) {
	tbl := New()
	r, handled := tbl.HandleCommand("alice", "session frobnicate")
	if !handled || !strings.Contains(r.Stdout, "Usage:") {
		t.Fatalf("expected usage message, got %+v", r)
	}
}

func TestTable_CdRelativeAndAbsolute(t *testing.T) {
	home := setHome(t)
	tbl := New()
	nested := filepath.Join(home, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	r, handled := tbl.HandleCommand("alice", "cd a/b")
	if !handled || r.Exit != 0 || !strings.Contains(r.Stdout, nested) {
		t.Fatalf("relative cd result = %+v", r)
	}
	if got := tbl.Get("alice"); got != nested {
		t.Errorf("cwd = %q, want %q", got, nested)
	}

	r, handled = tbl.HandleCommand("alice", "cd "+home)
	if !handled || r.Exit != 0 {
		t.Fatalf("absolute cd result = %+v", r)
	}
	if got := tbl.Get("alice"); got != home {
		t.Errorf("cwd = %q, want %q", got, home)
	}
}

func TestTable_CdNoSuchDirectory(t *testing.T) {
	setHome(t)
	tbl := New()

	r, handled := tbl.HandleCommand("alice", "cd /this/path/should/not/exist/anywhere")
	if !handled {
		t.Fatalf("expected cd to be handled")
	}
	if r.Exit != 1 || !strings.Contains(r.Stderr, "no such directory") {
		t.Errorf("expected a failure result, got %+v", r)
	}
}

func TestTable_CdHome(t *testing.T) {
	home := setHome(t)
	tbl := New()
	sub := filepath.Join(home, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	tbl.HandleCommand("alice", "cd sub")

	r, handled := tbl.HandleCommand("alice", "cd")
	if !handled || r.Exit != 0 || !strings.Contains(r.Stdout, home) {
		t.Fatalf("bare cd result = %+v", r)
	}
}

func TestTable_NonSessionCommandNotHandled(t *testing.T) {
	tbl := New()
	_, handled := tbl.HandleCommand("alice", "whoami")
	if handled {
		t.Errorf("expected whoami to fall through to the shell executor")
	}
}

func TestTable_End(t *testing.T) {
	home := setHome(t)
	tbl := New()
	sub := filepath.Join(home, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	tbl.HandleCommand("alice", "cd sub")
	tbl.End("alice")

	if got := tbl.Get("alice"); got != home {
		t.Errorf("expected End to reset cwd to home on next Get, got %q", got)
	}
}

package main

import (
	"bytes"
	"runtime"
	"strings"
	"testing"
)

func TestCurrentBuild(t *testing.T) {
	t.Parallel()

	b := currentBuild()
	if b.version == "" || b.commit == "" || b.date == "" {
		t.Errorf("expected every field to have a value, got %+v", b)
	}
	if b.goVersion != runtime.Version() {
		t.Errorf("goVersion = %q, want %q", b.goVersion, runtime.Version())
	}
}

func TestShortRevision(t *testing.T) {
	t.Parallel()

	if got := shortRevision("0123456789abcdef"); got != "0123456" {
		t.Errorf("shortRevision() = %q", got)
	}
	if got := shortRevision("abc"); got != "abc" {
		t.Errorf("short revisions must be kept, got %q", got)
	}
}

func TestNewVersionCmd(t *testing.T) {
	t.Parallel()

	run := func(t *testing.T, args ...string) string {
		t.Helper()
		cmd := NewVersionCmd()
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		cmd.SetArgs(args)
		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return buf.String()
	}

	t.Run("prints build details", func(t *testing.T) {
		t.Parallel()

		output := run(t)
		if !strings.HasPrefix(output, "newscrawl version ") {
			t.Errorf("expected version line, got %q", output)
		}
		for _, want := range []string{"commit:", "built:", "go:     " + runtime.Version()} {
			if !strings.Contains(output, want) {
				t.Errorf("expected %q in output %q", want, output)
			}
		}
	})

	t.Run("short prints only the version", func(t *testing.T) {
		t.Parallel()

		output := run(t, "--short")
		if strings.Count(output, "\n") != 1 || strings.Contains(output, "commit") {
			t.Errorf("unexpected short output %q", output)
		}
		if strings.TrimSpace(output) != currentBuild().version {
			t.Errorf("short output %q does not match version", output)
		}
	})
}

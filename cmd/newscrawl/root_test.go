package main

import (
	"testing"
)

// TestNewRootCmd tests the root command creation.
func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Name() != "newscrawl" {
			t.Errorf("expected name 'newscrawl', got %q", cmd.Name())
		}
	})

	t.Run("has descriptions and version", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" || cmd.Long == "" {
			t.Error("expected non-empty descriptions")
		}
		if cmd.Version == "" {
			t.Error("expected non-empty version")
		}
	})

	t.Run("has verbose flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.PersistentFlags().Lookup("verbose")
		if flag == nil {
			t.Fatal("expected verbose flag")
		}
		if flag.Shorthand != "v" {
			t.Errorf("expected shorthand 'v', got %q", flag.Shorthand)
		}
		if flag.DefValue != "false" {
			t.Errorf("expected default 'false', got %q", flag.DefValue)
		}
	})

	t.Run("has crawl flags", func(t *testing.T) {
		t.Parallel()
		flags := map[string]string{
			"config":        "c",
			"workers":       "w",
			"timeout":       "t",
			"depth":         "d",
			"output":        "o",
			"json":          "j",
			"markdown":      "m",
			"delay":         "",
			"retries":       "",
			"backoff":       "",
			"max-size":      "",
			"shard-size":    "",
			"batch":         "",
			"ignore-robots": "",
			"proxy":         "",
			"skip-recent":   "",
			"no-db":         "",
			"db-dir":        "",
			"report":        "",
		}
		for name, short := range flags {
			flag := cmd.Flags().Lookup(name)
			if flag == nil {
				t.Errorf("expected --%s flag", name)
				continue
			}
			if flag.Shorthand != short {
				t.Errorf("--%s: expected shorthand %q, got %q", name, short, flag.Shorthand)
			}
		}
	})

	t.Run("max size defaults to 400 MiB", func(t *testing.T) {
		t.Parallel()
		if got := cmd.Flags().Lookup("max-size").DefValue; got != "400 MiB" {
			t.Errorf("unexpected default %q", got)
		}
	})

	t.Run("has subcommands", func(t *testing.T) {
		t.Parallel()
		names := make(map[string]bool)
		for _, sub := range cmd.Commands() {
			names[sub.Name()] = true
		}
		for _, want := range []string{"init", "history", "serve", "version"} {
			if !names[want] {
				t.Errorf("expected %s subcommand", want)
			}
		}
	})
}

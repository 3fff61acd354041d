package main

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set at build time with
// -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
var (
	version = ""
	commit  = ""
	date    = ""
)

// buildInfo describes the running binary.
type buildInfo struct {
	version   string
	commit    string
	date      string
	goVersion string
	modified  bool
}

// currentBuild merges module build information with ldflags values,
// ldflags taking precedence.
func currentBuild() buildInfo {
	b := buildInfo{
		version:   "(devel)",
		commit:    "unknown",
		date:      "unknown",
		goVersion: runtime.Version(),
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" {
			b.version = info.Main.Version
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				b.commit = shortRevision(s.Value)
			case "vcs.time":
				b.date = s.Value
			case "vcs.modified":
				b.modified = s.Value == "true"
			}
		}
	}

	if version != "" {
		b.version = version
	}
	if commit != "" {
		b.commit = commit
	}
	if date != "" {
		b.date = date
	}
	return b
}

func shortRevision(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

func (b buildInfo) write(out io.Writer) {
	fmt.Fprintf(out, "newscrawl version %s\n", b.version)
	if b.modified {
		fmt.Fprintf(out, "  commit: %s (modified)\n", b.commit)
	} else {
		fmt.Fprintf(out, "  commit: %s\n", b.commit)
	}
	fmt.Fprintf(out, "  built:  %s\n", b.date)
	fmt.Fprintf(out, "  go:     %s\n", b.goVersion)
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print the version, commit, build date and Go version of newscrawl.

With --short only the version is printed, for use in scripts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			short, err := cmd.Flags().GetBool("short")
			if err != nil {
				return err
			}
			b := currentBuild()
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), b.version)
				return nil
			}
			b.write(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().BoolP("short", "s", false, "Print only the version")
	return cmd
}

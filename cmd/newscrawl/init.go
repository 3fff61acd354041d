package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/newscrawl/internal/config"
)

// stdoutPath makes init print the configuration instead of writing a file.
const stdoutPath = "-"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Long: `Init writes the built-in configuration, including the default site rule
table, to .newscrawl.yaml in the current directory.

The crawl looks for its configuration in the current directory, then the
home directory, then the user configuration directory (--global).

Examples:
  # Start a crawl configuration in the current directory
  newscrawl init

  # Same, crawling from other seed pages
  newscrawl init --seed https://www.seznamzpravy.cz/ --seed https://www.idnes.cz/

  # Install the configuration for every directory
  newscrawl init --global

  # Inspect the built-in site rules
  newscrawl init -o -`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Configuration file to write ('-' prints it)")
	cmd.Flags().Bool("global", false,
		"Write to the user configuration directory")
	cmd.Flags().StringSlice("seed", nil,
		"Seed URL to put in the file instead of the built-in ones (repeatable)")
	cmd.Flags().BoolP("force", "f", false,
		"Replace an existing configuration file")
	cmd.MarkFlagsMutuallyExclusive("output", "global")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	target, err := initTarget(cmd)
	if err != nil {
		return err
	}
	seeds, err := cmd.Flags().GetStringSlice("seed")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	data, err := config.TemplateWithSeeds(seeds)
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	if target == stdoutPath {
		_, err := out.Write(data)
		return err
	}

	if err := writeConfigFile(target, data, force); err != nil {
		return err
	}
	printInitHints(out, target)
	return nil
}

// initTarget returns the path init writes to.
func initTarget(cmd *cobra.Command) (string, error) {
	global, err := cmd.Flags().GetBool("global")
	if err != nil {
		return "", err
	}
	if global {
		return filepath.Join(config.XDGConfigDir(), "config.yaml"), nil
	}
	return cmd.Flags().GetString("output")
}

// writeConfigFile writes data with owner-only permissions. Site rules may
// carry session cookies.
func writeConfigFile(path string, data []byte, force bool) error {
	if !force {
		_, err := os.Stat(path)
		if err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", path)
		}
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to check configuration file: %w", err)
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}

func printInitHints(out io.Writer, path string) {
	fmt.Fprintf(out, "Wrote %s\n\n", path)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. Adjust seeds, output and maxSize to the crawl you want.")
	fmt.Fprintln(out, "  2. Add a site rule for every site to crawl; other hosts are never fetched.")
	fmt.Fprintln(out, "  3. Run 'newscrawl' (or 'newscrawl -c "+path+"' from elsewhere).")
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/newscrawl/internal/config"
)

// NewRootCmd creates the root command, which runs a crawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "newscrawl [seed-url...]",
		Short: "Crawl news sites and store their articles as JSON",
		Long: `newscrawl crawls news and reference sites starting from seed URLs.

Only hosts listed in the site rule table are fetched. Pages that match the
site's title and content selectors are stored as articles; every other page
is treated as a hub whose links are followed. The crawl stops when no URL is
left, when the output reaches its size cap, or on Ctrl+C.

Examples:
  # Crawl the seeds and sites of the default configuration
  newscrawl

  # Crawl from explicit seeds
  newscrawl https://www.idnes.cz/zpravy https://www.novinky.cz/

  # Write to a custom file with a 1 GiB cap split into 100 MB shards
  newscrawl -o out/articles.json --max-size 1GiB --shard-size 100MB

  # Use a custom configuration file and print a JSON summary
  newscrawl -c sites.yaml --json

Configuration file (.newscrawl.yaml) example:
  seeds:
    - https://www.idnes.cz/zpravy
  sites:
    - domain: idnes.cz
      selectors:
        title: h1
        content: "#art-text"
      articlePatterns: ['\.A[0-9]+_[0-9]+_']`,
		Args:          cobra.ArbitraryArgs,
		RunE:          runCrawlCmd,
		Version:       currentBuild().version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .newscrawl.yaml in current or home directory)")

	// Crawl behavior flags
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of pages fetched concurrently")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay,
		"Minimum delay between requests to the same host")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().Int("retries", config.DefaultRetryAttempts,
		"Maximum attempts per URL")
	cmd.Flags().Duration("backoff", config.DefaultRetryDelay,
		"Delay before the first retry, doubled after each failure")
	cmd.Flags().IntP("depth", "d", 0,
		"Maximum number of hub hops from a seed (0 = unlimited)")
	cmd.Flags().Bool("ignore-robots", false,
		"Do not check robots.txt before fetching")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy for all connections (e.g., socks5://127.0.0.1:9050)")
	cmd.Flags().Duration("skip-recent", 0,
		"Skip articles stored by a previous run within this window (e.g., 24h)")

	// Output store flags
	maxSize := config.DefaultMaxSize
	var shardSize config.ByteSize
	cmd.Flags().StringP("output", "o", config.DefaultOutput,
		"Path of the JSON article store")
	cmd.Flags().Var(&maxSize, "max-size",
		"Stop once the output reaches this size (e.g., 400MB, 1GiB; 0 = unlimited)")
	cmd.Flags().Var(&shardSize, "shard-size",
		"Start a new output file after this size (0 = single file)")
	cmd.Flags().Int("batch", config.DefaultBatchSize,
		"Number of articles buffered before a flush")

	// Journal flags
	cmd.Flags().Bool("no-db", false,
		"Do not record the run in the crawl journal")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the crawl journal database")

	// Summary flags
	cmd.Flags().BoolP("json", "j", false,
		"Print the summary as JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Print the summary as Markdown (mutually exclusive with --json)")
	cmd.Flags().String("report", "",
		"Also write the summary to this file")

	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

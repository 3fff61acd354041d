package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/newscrawl/internal/config"
	"github.com/nao1215/newscrawl/internal/log"
	"github.com/nao1215/newscrawl/internal/server"
	"github.com/nao1215/newscrawl/internal/store"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the stored articles over HTTP",
		Long: `Serve reads the JSON article store, every shard of it, and serves the
articles one per page.

  GET /                      browser pager
  GET /api/articles?page=N   page N with the article and the page links
  GET /api/articles/{id}     one article by ID

The store is read again when it changes, so a running crawl can be watched.
The store path comes from --output, NEWSCRAWL_OUTPUT or the configuration
file, like for the crawl.

Examples:
  # Serve data.json on http://127.0.0.1:3001
  newscrawl serve

  # Serve another store on all interfaces
  newscrawl serve -o out/articles.json --addr :8080`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .newscrawl.yaml in current or home directory)")
	cmd.Flags().StringP("output", "o", config.DefaultOutput,
		"Path of the JSON article store")
	cmd.Flags().String("addr", server.DefaultAddr,
		"Address to listen on")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	path, err := servePath(cmd)
	if err != nil {
		return err
	}
	addr, err := cmd.Flags().GetString("addr")
	if err != nil {
		return err
	}

	logger := log.NewSecureLogger(os.Stderr, getVerboseFlag(cmd))
	shards, err := store.Shards(path)
	if err != nil {
		return fmt.Errorf("failed to read store: %w", err)
	}
	if len(shards) == 0 {
		logger.Warn("store is empty, serving no articles until a crawl writes it", "path", path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(server.NewArchive(path, logger), server.WithLogger(logger))
	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on http://%s (Ctrl+C to stop)\n", path, addr)
	return srv.ListenAndServe(ctx, addr)
}

// servePath resolves the store path from the configuration file, the
// environment and the --output flag.
func servePath(cmd *cobra.Command) (string, error) {
	cfg, err := fileConfig(cmd)
	if err != nil {
		return "", err
	}
	if cmd.Flags().Changed("output") {
		return cmd.Flags().GetString("output")
	}
	return cfg.Output, nil
}

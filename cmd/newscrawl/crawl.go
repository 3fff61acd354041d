package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nao1215/newscrawl/internal/config"
	"github.com/nao1215/newscrawl/internal/crawler"
	"github.com/nao1215/newscrawl/internal/database"
	"github.com/nao1215/newscrawl/internal/fetcher"
	"github.com/nao1215/newscrawl/internal/log"
	"github.com/nao1215/newscrawl/internal/report"
	"github.com/nao1215/newscrawl/internal/store"
)

// Environment variables recognized by the crawl command.
const (
	envConfig  = "NEWSCRAWL_CONFIG"
	envSeeds   = "NEWSCRAWL_SEEDS"
	envWorkers = "NEWSCRAWL_WORKERS"
	envOutput  = "NEWSCRAWL_OUTPUT"
	envMaxSize = "NEWSCRAWL_MAX_SIZE"
)

// failingHostsLimit is the number of hosts listed in the summary.
const failingHostsLimit = 5

// runCrawlCmd executes the root command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ctrl+C stops dispatch; in-flight pages finish and the store is flushed.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, stopping crawl...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig layers defaults, the config file, the environment and the
// command line flags, in increasing priority.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := fileConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if len(args) > 0 {
		cfg.Seeds = args
	}
	return cfg, nil
}

// fileConfig layers defaults, the config file named by the --config flag
// and the environment.
func fileConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if configPath == "" {
		configPath = os.Getenv(envConfig)
	}
	cfg.ConfigFilePath = configPath

	if err := loadConfigFile(cfg); err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadConfigFile applies the configuration file to cfg. Without a file the
// embedded default configuration is used; a file without site rules gets
// the embedded rule table.
func loadConfigFile(cfg *config.Config) error {
	defaults, err := config.DefaultFile()
	if err != nil {
		return fmt.Errorf("failed to parse embedded configuration: %w", err)
	}

	// If the user explicitly named a config file, it must exist.
	path := config.FindConfigFile(cfg.ConfigFilePath)
	if path == "" {
		if cfg.ConfigFilePath != "" {
			return fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
		}
		return defaults.Apply(cfg)
	}

	file, err := config.LoadConfigFile(path)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	if len(file.Sites) == 0 {
		file.Sites = defaults.Sites
	}
	if err := file.Apply(cfg); err != nil {
		return fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return nil
}

// applyEnv applies the NEWSCRAWL_* environment variables to cfg.
func applyEnv(cfg *config.Config) error {
	if v := os.Getenv(envSeeds); v != "" {
		var seeds []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				seeds = append(seeds, s)
			}
		}
		cfg.Seeds = seeds
	}
	if v := os.Getenv(envWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", config.ErrInvalidWorkers, envWorkers, v)
		}
		cfg.Workers = n
	}
	if v := os.Getenv(envOutput); v != "" {
		cfg.Output = v
	}
	if v := os.Getenv(envMaxSize); v != "" {
		size, err := config.ParseByteSize(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", config.ErrInvalidSize, envMaxSize, v)
		}
		cfg.MaxSize = size
	}
	return nil
}

// applyFlags copies the flags the user actually set into cfg, so that flag
// defaults never override the file or the environment.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error

	if flags.Changed("workers") {
		if cfg.Workers, err = flags.GetInt("workers"); err != nil {
			return err
		}
	}
	if flags.Changed("delay") {
		if cfg.CrawlDelay, err = flags.GetDuration("delay"); err != nil {
			return err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return err
		}
	}
	if flags.Changed("retries") {
		if cfg.RetryAttempts, err = flags.GetInt("retries"); err != nil {
			return err
		}
	}
	if flags.Changed("backoff") {
		if cfg.RetryDelay, err = flags.GetDuration("backoff"); err != nil {
			return err
		}
	}
	if flags.Changed("depth") {
		if cfg.MaxDepth, err = flags.GetInt("depth"); err != nil {
			return err
		}
	}
	if flags.Changed("ignore-robots") {
		ignore, err := flags.GetBool("ignore-robots")
		if err != nil {
			return err
		}
		cfg.RespectRobots = !ignore
	}
	if flags.Changed("proxy") {
		if cfg.Proxy, err = flags.GetString("proxy"); err != nil {
			return err
		}
	}
	if flags.Changed("skip-recent") {
		if cfg.SkipRecent, err = flags.GetDuration("skip-recent"); err != nil {
			return err
		}
	}
	if flags.Changed("output") {
		if cfg.Output, err = flags.GetString("output"); err != nil {
			return err
		}
	}
	if flags.Changed("max-size") {
		cfg.MaxSize = byteSizeFlag(cmd, "max-size")
	}
	if flags.Changed("shard-size") {
		cfg.ShardSize = byteSizeFlag(cmd, "shard-size")
	}
	if flags.Changed("batch") {
		if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
			return err
		}
	}

	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return err
	}
	cfg.SaveToDB = !noDB
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return err
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return err
	}
	if cfg.ReportFile, err = flags.GetString("report"); err != nil {
		return err
	}
	return nil
}

func byteSizeFlag(cmd *cobra.Command, name string) config.ByteSize {
	if v, ok := cmd.Flags().Lookup(name).Value.(*config.ByteSize); ok {
		return *v
	}
	return 0
}

// runCrawl wires the fetcher, store, journal and spider for one run and
// writes the summary to out.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	f, err := fetcher.NewFromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create fetcher: %w", err)
	}

	sink, err := store.OpenFromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open output: %w", err)
	}

	opts := []crawler.SpiderOption{crawler.WithSpiderLogger(logger)}
	if cfg.RespectRobots {
		opts = append(opts, crawler.WithRobots(fetcher.NewRobotsChecker(f.Client(), f.UserAgent(), logger)))
	}

	var db *database.CrawlDB
	runID := uuid.NewString()
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			_ = sink.Close(ctx)
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if runID, err = db.StartRun(ctx, len(cfg.Seeds)); err != nil {
			_ = sink.Close(ctx)
			return err
		}
		opts = append(opts, crawler.WithJournal(db))
		logger.Debug("journal opened", "path", db.Path())
	}
	opts = append(opts, crawler.WithRunID(runID))

	spider := crawler.NewSpiderFromConfig(cfg, f, sink, opts...)
	res, runErr := spider.Run(ctx, cfg.Seeds)
	if res == nil {
		return runErr
	}

	summary := report.NewSummary(res, sink.Stats(), cfg.Output, runErr)

	// The run context may already be cancelled by a signal.
	bg := context.WithoutCancel(ctx)
	if db != nil {
		finishRun(bg, db, res, logger)
		hosts, err := db.TopFailingHosts(bg, res.RunID, failingHostsLimit)
		if err != nil {
			logger.Warn("failed to query failing hosts", "error", err)
		}
		for _, h := range hosts {
			summary.FailingHosts = append(summary.FailingHosts, report.HostFailure{Host: h.Host, Failures: h.Failures})
		}
	}

	if err := outputSummary(cfg, summary, out); err != nil {
		return errors.Join(runErr, fmt.Errorf("failed to write summary: %w", err))
	}
	return runErr
}

// finishRun stores the final state of the run in the journal.
func finishRun(ctx context.Context, db *database.CrawlDB, res *crawler.Result, logger *slog.Logger) {
	err := db.FinishRun(ctx, &database.Run{
		ID:         res.RunID,
		FinishedAt: res.Finished,
		State:      res.State.String(),
		Reason:     string(res.Reason),
		Articles:   res.Stats.Articles,
		Hubs:       res.Stats.Hubs,
		Failed:     res.Stats.Failed,
		Bytes:      res.Stats.Bytes,
	})
	if err != nil {
		logger.Warn("failed to record run", "run_id", res.RunID, "error", err)
	}
}

// outputSummary writes the summary in the requested format to out, or to
// the report file. With a report file the text summary still goes to out.
func outputSummary(cfg *config.Config, summary *report.Summary, out io.Writer) error {
	if cfg.ReportFile == "" {
		_, err := summaryWriter(cfg, out).Write(summary)
		return err
	}

	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	w := report.NewMultiWriter(
		summaryWriter(cfg, f),
		report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose)),
	)
	_, err = w.Write(summary)
	return err
}

func summaryWriter(cfg *config.Config, out io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(out, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose))
	}
}

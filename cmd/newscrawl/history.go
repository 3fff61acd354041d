package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/newscrawl/internal/config"
	"github.com/nao1215/newscrawl/internal/database"
	"github.com/nao1215/newscrawl/internal/model"
)

// defaultHistoryLimit is the number of runs listed by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
// It lists past runs from the crawl journal.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past crawl runs from the journal",
		Long: `History lists the crawl runs recorded in the journal, newest first.

With a run ID it shows the outcome of every processed URL of that run
grouped by outcome, and the hosts that failed most often.

Examples:
  # List the last 20 runs
  newscrawl history

  # List all runs as JSON
  newscrawl history -n 0 --json

  # Show one run
  newscrawl history 6f1c2a9e-1b0d-4a55-9a4e-0c1d2e3f4a5b`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of runs to list (0 = all)")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the crawl journal database")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output in Markdown format")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}

	out := cmd.OutOrStdout()

	// A missing journal means nothing was crawled yet; do not create one.
	if _, err := os.Stat(filepath.Join(dbDir, database.FileName)); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(out, "No crawl runs found in the journal.")
		return nil
	}
	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	if len(args) == 1 {
		detail, err := loadRunDetail(ctx, db, args[0])
		if err != nil {
			return err
		}
		switch {
		case jsonOutput:
			return writeJSON(out, detail)
		case markdownOutput:
			return outputRunMarkdown(out, detail)
		default:
			outputRunText(out, detail)
			return nil
		}
	}

	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	switch {
	case jsonOutput:
		if runs == nil {
			runs = []database.Run{}
		}
		return writeJSON(out, runs)
	case markdownOutput:
		return outputRunsMarkdown(out, runs)
	default:
		outputRunsText(out, runs)
		return nil
	}
}

// RunDetail is one run with its per-outcome counts and failing hosts.
type RunDetail struct {
	Run          database.Run           `json:"run"`
	Outcomes     map[string]int         `json:"outcomes"`
	FailingHosts []database.HostFailure `json:"failing_hosts,omitempty"`
}

func loadRunDetail(ctx context.Context, db *database.CrawlDB, id string) (*RunDetail, error) {
	run, err := db.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	counts, err := db.OutcomeCounts(ctx, id)
	if err != nil {
		return nil, err
	}
	hosts, err := db.TopFailingHosts(ctx, id, failingHostsLimit)
	if err != nil {
		return nil, err
	}

	outcomes := make(map[string]int, len(counts))
	for o, n := range counts {
		outcomes[o.String()] = n
	}
	return &RunDetail{Run: *run, Outcomes: outcomes, FailingHosts: hosts}, nil
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// outputRunsText prints the run list as an aligned table.
func outputRunsText(out io.Writer, runs []database.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No crawl runs found in the journal.")
		return
	}

	fmt.Fprintf(out, "Crawl runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-36s  %-19s  %-12s  %8s  %6s  %10s\n", "ID", "Started", "Reason", "Articles", "Failed", "Size")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 100))
	for _, r := range runs {
		fmt.Fprintf(out, "  %-36s  %-19s  %-12s  %8d  %6d  %10s\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			runReason(r),
			r.Articles,
			r.Failed,
			humanize.IBytes(uint64(max(r.Bytes, 0))),
		)
	}
	fmt.Fprintln(out, "\nUse 'newscrawl history <id>' to see the outcomes of one run.")
}

func outputRunsMarkdown(out io.Writer, runs []database.Run) error {
	md := markdown.NewMarkdown(out)
	md.H1("Crawl Runs")
	md.PlainText("")

	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			"`" + r.ID + "`",
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			runReason(r),
			strconv.FormatInt(r.Articles, 10),
			strconv.FormatInt(r.Failed, 10),
			humanize.IBytes(uint64(max(r.Bytes, 0))),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Run", "Started", "Reason", "Articles", "Failed", "Size"},
		Rows:   rows,
	})
	return md.Build()
}

func outputRunText(out io.Writer, d *RunDetail) {
	r := d.Run
	fmt.Fprintf(out, "Run:      %s\n", r.ID)
	fmt.Fprintf(out, "State:    %s (%s)\n", r.State, runReason(r))
	fmt.Fprintf(out, "Started:  %s\n", r.StartedAt.Local().Format(time.RFC3339))
	if !r.FinishedAt.IsZero() {
		fmt.Fprintf(out, "Elapsed:  %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
	}
	fmt.Fprintf(out, "Seeds:    %d\n", r.Seeds)
	fmt.Fprintf(out, "Size:     %s\n\n", humanize.IBytes(uint64(max(r.Bytes, 0))))

	fmt.Fprintln(out, "Outcomes:")
	for _, o := range model.Outcomes() {
		fmt.Fprintf(out, "  %-10s %d\n", o.String(), d.Outcomes[o.String()])
	}

	if len(d.FailingHosts) > 0 {
		fmt.Fprintln(out, "\nFailing hosts:")
		for _, h := range d.FailingHosts {
			fmt.Fprintf(out, "  [!] %s: %d\n", h.Host, h.Failures)
		}
	}
}

func outputRunMarkdown(out io.Writer, d *RunDetail) error {
	md := markdown.NewMarkdown(out)
	md.H1("Crawl Run " + d.Run.ID)
	md.PlainText("")

	rows := make([][]string, 0, len(model.Outcomes()))
	for _, o := range model.Outcomes() {
		rows = append(rows, []string{o.String(), strconv.Itoa(d.Outcomes[o.String()])})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "URLs"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(d.FailingHosts) > 0 {
		md.H2("Failing Hosts")
		md.PlainText("")
		items := make([]string, len(d.FailingHosts))
		for i, h := range d.FailingHosts {
			items[i] = fmt.Sprintf("%s: %d", h.Host, h.Failures)
		}
		md.BulletList(items...)
	}
	return md.Build()
}

// runReason returns the stop reason, or the state for unfinished runs.
func runReason(r database.Run) string {
	if r.Reason == "" {
		return r.State
	}
	return r.Reason
}

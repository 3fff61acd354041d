package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// SimpleWriter outputs a plain text summary for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose adds the frontier and timing details.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(s *Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, s)
	w.writeCounters(&sb, s)
	w.writeStore(&sb, s)
	w.writeFailingHosts(&sb, s)
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n")

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *Summary) {
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n")
	sb.WriteString("NEWSCRAWL SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n\n")

	if s.RunID != "" {
		fmt.Fprintf(sb, "Run:       %s\n", s.RunID)
	}
	fmt.Fprintf(sb, "State:     %s (%s)\n", s.State, s.Reason)
	if s.Error != "" {
		fmt.Fprintf(sb, "Error:     %s\n", s.Error)
	}
	fmt.Fprintf(sb, "Elapsed:   %s\n", s.Elapsed.Round(time.Millisecond))
	if w.verbose {
		fmt.Fprintf(sb, "Started:   %s\n", s.Started.Format(time.RFC3339))
		fmt.Fprintf(sb, "Finished:  %s\n", s.Finished.Format(time.RFC3339))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeCounters(sb *strings.Builder, s *Summary) {
	sb.WriteString(strings.Repeat("-", 60))
	sb.WriteString("\nPAGES\n")
	sb.WriteString(strings.Repeat("-", 60))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "  Articles:   %s\n", humanize.Comma(s.Articles))
	fmt.Fprintf(sb, "  Hubs:       %s\n", humanize.Comma(s.Hubs))
	fmt.Fprintf(sb, "  Failed:     %s\n", humanize.Comma(s.Failed))
	fmt.Fprintf(sb, "  Disallowed: %s\n", humanize.Comma(s.Disallowed))
	fmt.Fprintf(sb, "  Skipped:    %s\n", humanize.Comma(s.Skipped))
	fmt.Fprintf(sb, "  TOTAL:      %s\n", humanize.Comma(s.Processed()))
	if w.verbose {
		fmt.Fprintf(sb, "  Known URLs: %d, never visited: %d\n", s.Known, s.Pending)
		fmt.Fprintf(sb, "  Downloaded: %s\n", humanize.IBytes(uint64(max(s.Downloaded, 0))))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeStore(sb *strings.Builder, s *Summary) {
	sb.WriteString(strings.Repeat("-", 60))
	sb.WriteString("\nOUTPUT\n")
	sb.WriteString(strings.Repeat("-", 60))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "  File:    %s\n", s.Output)
	fmt.Fprintf(sb, "  Records: %d written this run\n", s.Records)
	fmt.Fprintf(sb, "  Size:    %s in %d shard(s)\n", humanize.IBytes(uint64(max(s.Bytes, 0))), s.Shards)
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFailingHosts(sb *strings.Builder, s *Summary) {
	if len(s.FailingHosts) == 0 {
		return
	}
	sb.WriteString(strings.Repeat("-", 60))
	sb.WriteString("\nFAILING HOSTS\n")
	sb.WriteString(strings.Repeat("-", 60))
	sb.WriteString("\n\n")
	for _, h := range s.FailingHosts {
		fmt.Fprintf(sb, "  [!] %s: %d\n", h.Host, h.Failures)
	}
	sb.WriteString("\n")
}

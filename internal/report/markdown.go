package report

import (
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/newscrawl/internal/crawler"
)

// MarkdownWriter outputs the summary as a Markdown document.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(s *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, s)
	w.writeOutcomes(md, s)
	w.writeStore(md, s)
	w.writeFailingHosts(md, s)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *Summary) {
	md.H1("Crawl Summary")
	md.PlainText("")

	rows := [][]string{
		{"State", s.State},
		{"Stop Reason", s.Reason},
		{"Started", s.Started.Format("2006-01-02 15:04:05 MST")},
		{"Elapsed", s.Elapsed.Round(time.Second).String()},
	}
	if s.RunID != "" {
		rows = append([][]string{{"Run", "`" + s.RunID + "`"}}, rows...)
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	switch {
	case s.Error != "":
		md.Cautionf("The crawl stopped on a fatal error: %s", s.Error)
	case s.Reason == string(crawler.StopCapReached):
		md.Importantf("The output reached its size cap at %s.", humanize.IBytes(uint64(max(s.Bytes, 0))))
	case s.Failed > 0:
		md.Warningf("%d URL(s) could not be fetched.", s.Failed)
	default:
		md.Tip("The crawl finished without failures.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeOutcomes(md *markdown.Markdown, s *Summary) {
	md.H2("Pages")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"Articles", strconv.FormatInt(s.Articles, 10)},
			{"Hubs", strconv.FormatInt(s.Hubs, 10)},
			{"Failed", strconv.FormatInt(s.Failed, 10)},
			{"Disallowed", strconv.FormatInt(s.Disallowed, 10)},
			{"Skipped", strconv.FormatInt(s.Skipped, 10)},
			{"**Total**", "**" + strconv.FormatInt(s.Processed(), 10) + "**"},
		},
	})
	md.PlainText("")

	if s.Processed() > 0 {
		w.writePieChart(md, s)
	}
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s *Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Outcome Distribution"),
		piechart.WithShowData(true),
	)
	for _, o := range []struct {
		label string
		n     int64
	}{
		{"Articles", s.Articles},
		{"Hubs", s.Hubs},
		{"Failed", s.Failed},
		{"Disallowed", s.Disallowed},
		{"Skipped", s.Skipped},
	} {
		if o.n > 0 {
			chart.LabelAndIntValue(o.label, uint64(o.n))
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeStore(md *markdown.Markdown, s *Summary) {
	md.H2("Output")
	md.PlainText("")
	md.BulletList(
		"File: `"+s.Output+"`",
		"Records written: "+strconv.Itoa(s.Records),
		"Size: "+humanize.IBytes(uint64(max(s.Bytes, 0))),
		"Shards: "+strconv.Itoa(s.Shards),
	)
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailingHosts(md *markdown.Markdown, s *Summary) {
	if len(s.FailingHosts) == 0 {
		return
	}
	md.H2("Failing Hosts")
	md.PlainText("")

	rows := make([][]string, len(s.FailingHosts))
	for i, h := range s.FailingHosts {
		rows[i] = []string{h.Host, strconv.Itoa(h.Failures)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Host", "Failures"},
		Rows:   rows,
	})
	md.PlainText("")
}

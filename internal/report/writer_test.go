package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/newscrawl/internal/crawler"
	"github.com/nao1215/newscrawl/internal/store"
)

// createTestSummary creates a summary with sample data for testing.
func createTestSummary() *Summary {
	started := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)
	res := &crawler.Result{
		RunID:  "0b6f7d2e-run",
		State:  crawler.StateStopped,
		Reason: crawler.StopCapReached,
		Stats: crawler.Stats{
			Articles:   1234,
			Hubs:       56,
			Failed:     7,
			Disallowed: 2,
			Skipped:    1,
			Bytes:      10 << 20,
		},
		Frontier: crawler.FrontierStats{Known: 5000, Pending: 3700, Done: 1300},
		Started:  started,
		Finished: started.Add(90 * time.Second),
	}
	st := store.Stats{Records: 1234, Bytes: 3 << 20, Shards: 2}
	s := NewSummary(res, st, "data.json", nil)
	s.FailingHosts = []HostFailure{{Host: "www.idnes.cz", Failures: 5}, {Host: "www.novinky.cz", Failures: 2}}
	return s
}

func TestNewSummary(t *testing.T) {
	t.Parallel()

	t.Run("copies result and store statistics", func(t *testing.T) {
		t.Parallel()

		s := createTestSummary()
		if s.State != "stopped" || s.Reason != "cap reached" {
			t.Errorf("unexpected state %q reason %q", s.State, s.Reason)
		}
		if s.Elapsed != 90*time.Second || s.ElapsedSeconds != 90 {
			t.Errorf("unexpected elapsed %v / %v", s.Elapsed, s.ElapsedSeconds)
		}
		if s.Processed() != 1300 {
			t.Errorf("Processed() = %d, want 1300", s.Processed())
		}
		if s.Pending != 3700 || s.Shards != 2 || s.Bytes != 3<<20 {
			t.Errorf("unexpected summary %+v", s)
		}
		if !s.Succeeded() {
			t.Error("expected summary without error to succeed")
		}
	})

	t.Run("run error is kept", func(t *testing.T) {
		t.Parallel()

		res := &crawler.Result{State: crawler.StateStopped, Reason: crawler.StopStoreFailure}
		s := NewSummary(res, store.Stats{}, "data.json", errors.New("output store unwritable"))
		if s.Succeeded() || s.Error != "output store unwritable" {
			t.Errorf("unexpected error field %q", s.Error)
		}
	})
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes counters and output", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewSimpleWriter(&buf).Write(createTestSummary())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("reported %d bytes, wrote %d", n, buf.Len())
		}

		output := buf.String()
		for _, want := range []string{
			"NEWSCRAWL SUMMARY",
			"0b6f7d2e-run",
			"stopped (cap reached)",
			"Articles:   1,234",
			"TOTAL:      1,300",
			"data.json",
			"3.0 MiB in 2 shard(s)",
			"[!] www.idnes.cz: 5",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
		if strings.Contains(output, "Known URLs") {
			t.Error("frontier details should only be shown in verbose mode")
		}
	})

	t.Run("verbose adds frontier details", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestSummary()); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "Known URLs: 5000, never visited: 3700") {
			t.Errorf("expected frontier details\n%s", buf.String())
		}
	})

	t.Run("omits failing hosts when there are none", func(t *testing.T) {
		t.Parallel()

		s := createTestSummary()
		s.FailingHosts = nil
		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(s); err != nil {
			t.Fatal(err)
		}
		if strings.Contains(buf.String(), "FAILING HOSTS") {
			t.Error("expected no failing hosts section")
		}
	})
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes valid compact JSON", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestSummary()); err != nil {
			t.Fatal(err)
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Errorf("expected a single line, got %q", buf.String())
		}

		var decoded map[string]any
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded["run_id"] != "0b6f7d2e-run" || decoded["reason"] != "cap reached" {
			t.Errorf("unexpected fields %v", decoded)
		}
		if decoded["articles"] != float64(1234) || decoded["elapsed_seconds"] != float64(90) {
			t.Errorf("unexpected counters %v", decoded)
		}
		if _, ok := decoded["error"]; ok {
			t.Error("error should be omitted when empty")
		}
	})

	t.Run("pretty print indents", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestSummary()); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "\n  \"run_id\": ") {
			t.Errorf("expected indented output\n%s", buf.String())
		}
	})
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes tables chart and alert", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestSummary()); err != nil {
			t.Fatal(err)
		}
		output := buf.String()
		for _, want := range []string{
			"# Crawl Summary",
			"## Pages",
			"mermaid",
			"Outcome Distribution",
			"[!IMPORTANT]",
			"## Failing Hosts",
			"www.idnes.cz",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q\n%s", want, output)
			}
		}
	})

	t.Run("fatal error becomes a caution", func(t *testing.T) {
		t.Parallel()

		s := createTestSummary()
		s.Error = "output store unwritable"
		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(s); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "[!CAUTION]") {
			t.Errorf("expected caution alert\n%s", buf.String())
		}
	})

	t.Run("empty crawl has no chart", func(t *testing.T) {
		t.Parallel()

		res := &crawler.Result{State: crawler.StateStopped, Reason: crawler.StopDrained}
		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(NewSummary(res, store.Stats{}, "data.json", nil)); err != nil {
			t.Fatal(err)
		}
		if strings.Contains(buf.String(), "mermaid") {
			t.Error("expected no chart for an empty crawl")
		}
		if !strings.Contains(buf.String(), "[!TIP]") {
			t.Error("expected tip alert")
		}
	})
}

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var text, js bytes.Buffer
	mw := NewMultiWriter(NewSimpleWriter(&text), NewJSONWriter(&js))
	n, err := mw.Write(createTestSummary())
	if err != nil {
		t.Fatal(err)
	}
	if n != text.Len()+js.Len() {
		t.Errorf("total %d, want %d", n, text.Len()+js.Len())
	}
	if text.Len() == 0 || js.Len() == 0 {
		t.Error("expected both writers to receive the summary")
	}
}

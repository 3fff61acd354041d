package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/newscrawl/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *CrawlDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("Path() = %q", db.Path())
		}
		if _, err := os.Stat(db.Path()); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "nonexistent-db")
		_, err := Open(dbDir, Options{EnableWAL: true})
		if err == nil {
			t.Fatal("expected error when the database does not exist")
		}
		if !strings.Contains(err.Error(), "database not found") {
			t.Errorf("unexpected error %q", err)
		}
		if _, statErr := os.Stat(dbDir); !os.IsNotExist(statErr) {
			t.Error("database directory should not have been created")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dbDir := t.TempDir()
		first, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		id, err := first.StartRun(context.Background(), 2)
		if err != nil {
			t.Fatal(err)
		}
		_ = first.Close()

		second, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		defer second.Close()
		if _, err := second.GetRun(context.Background(), id); err != nil {
			t.Errorf("expected run to survive reopen: %v", err)
		}
	})
}

func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	if !opts.CreateIfNotExists || !opts.EnableWAL {
		t.Errorf("unexpected defaults %+v", opts)
	}
}

func TestRuns(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("started run is finished with its counters", func(t *testing.T) {
		t.Parallel()
		db := setupTestDB(t)

		id, err := db.StartRun(ctx, 3)
		if err != nil {
			t.Fatalf("StartRun() error = %v", err)
		}
		run, err := db.GetRun(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if run.State != "running" || run.Seeds != 3 || !run.FinishedAt.IsZero() {
			t.Errorf("unexpected started run %+v", run)
		}

		finished := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)
		err = db.FinishRun(ctx, &Run{
			ID:         id,
			FinishedAt: finished,
			State:      "stopped",
			Reason:     "cap reached",
			Articles:   10,
			Hubs:       4,
			Failed:     1,
			Bytes:      2048,
		})
		if err != nil {
			t.Fatalf("FinishRun() error = %v", err)
		}

		run, err = db.GetRun(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if run.State != "stopped" || run.Reason != "cap reached" {
			t.Errorf("unexpected state %q reason %q", run.State, run.Reason)
		}
		if run.Articles != 10 || run.Hubs != 4 || run.Failed != 1 || run.Bytes != 2048 {
			t.Errorf("unexpected counters %+v", run)
		}
		if !run.FinishedAt.Equal(finished) {
			t.Errorf("FinishedAt = %v, want %v", run.FinishedAt, finished)
		}
	})

	t.Run("unknown run is reported", func(t *testing.T) {
		t.Parallel()
		db := setupTestDB(t)

		if _, err := db.GetRun(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("GetRun() expected ErrRunNotFound, got %v", err)
		}
		if err := db.FinishRun(ctx, &Run{ID: "missing", State: "stopped"}); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("FinishRun() expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("runs are listed newest first", func(t *testing.T) {
		t.Parallel()
		db := setupTestDB(t)

		var ids []string
		for i := range 3 {
			id, err := db.StartRun(ctx, i)
			if err != nil {
				t.Fatal(err)
			}
			ids = append(ids, id)
			time.Sleep(2 * time.Millisecond)
		}

		runs, err := db.ListRuns(ctx, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(runs) != 3 {
			t.Fatalf("expected 3 runs, got %d", len(runs))
		}
		if runs[0].ID != ids[2] || runs[2].ID != ids[0] {
			t.Errorf("unexpected order %v", []string{runs[0].ID, runs[1].ID, runs[2].ID})
		}

		limited, err := db.ListRuns(ctx, 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(limited) != 1 || limited[0].ID != ids[2] {
			t.Errorf("ListRuns(1) = %+v", limited)
		}
	})
}

func TestVisits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	visit := func(runID, url, host string, o model.Outcome) model.Visit {
		return model.Visit{
			RunID:      runID,
			URL:        url,
			Host:       host,
			Outcome:    o,
			StatusCode: 200,
			Attempts:   1,
			Duration:   150 * time.Millisecond,
		}
	}

	t.Run("article visits are remembered", func(t *testing.T) {
		t.Parallel()
		db := setupTestDB(t)

		url := "https://www.idnes.cz/clanek/1"
		if _, ok, err := db.LastArticleVisit(ctx, url); err != nil || ok {
			t.Fatalf("expected no article yet, got ok=%v err=%v", ok, err)
		}

		v := visit("run-1", url, "www.idnes.cz", model.OutcomeArticle)
		v.VisitedAt = time.Now().Add(-time.Hour)
		if err := db.RecordVisit(ctx, v); err != nil {
			t.Fatalf("RecordVisit() error = %v", err)
		}

		at, ok, err := db.LastArticleVisit(ctx, url)
		if err != nil || !ok {
			t.Fatalf("LastArticleVisit() ok=%v err=%v", ok, err)
		}
		if d := at.Sub(v.VisitedAt); d > time.Millisecond || d < -time.Millisecond {
			t.Errorf("stored at %v, want %v", at, v.VisitedAt)
		}

		recent, err := db.HasRecentArticle(ctx, url, 2*time.Hour)
		if err != nil || !recent {
			t.Errorf("expected recent article, got %v %v", recent, err)
		}
		recent, err = db.HasRecentArticle(ctx, url, 30*time.Minute)
		if err != nil || recent {
			t.Errorf("expected stale article, got %v %v", recent, err)
		}
	})

	t.Run("hub visits do not count as articles", func(t *testing.T) {
		t.Parallel()
		db := setupTestDB(t)

		url := "https://www.idnes.cz/"
		if err := db.RecordVisit(ctx, visit("run-1", url, "www.idnes.cz", model.OutcomeHub)); err != nil {
			t.Fatal(err)
		}
		if _, ok, err := db.LastArticleVisit(ctx, url); err != nil || ok {
			t.Errorf("expected hub not to be remembered, got ok=%v err=%v", ok, err)
		}
	})

	t.Run("outcomes and failing hosts are summarized per run", func(t *testing.T) {
		t.Parallel()
		db := setupTestDB(t)

		visits := []model.Visit{
			visit("run-1", "https://a.cz/1", "a.cz", model.OutcomeArticle),
			visit("run-1", "https://a.cz/", "a.cz", model.OutcomeHub),
			visit("run-1", "https://a.cz/2", "a.cz", model.OutcomeFailed),
			visit("run-1", "https://b.cz/1", "b.cz", model.OutcomeFailed),
			visit("run-1", "https://b.cz/2", "b.cz", model.OutcomeFailed),
			visit("run-1", "https://b.cz/3", "b.cz", model.OutcomeDisallowed),
			visit("run-2", "https://c.cz/1", "c.cz", model.OutcomeFailed),
		}
		for _, v := range visits {
			if err := db.RecordVisit(ctx, v); err != nil {
				t.Fatal(err)
			}
		}

		counts, err := db.OutcomeCounts(ctx, "run-1")
		if err != nil {
			t.Fatal(err)
		}
		want := map[model.Outcome]int{
			model.OutcomeArticle:    1,
			model.OutcomeHub:        1,
			model.OutcomeFailed:     3,
			model.OutcomeDisallowed: 1,
		}
		if len(counts) != len(want) {
			t.Errorf("OutcomeCounts() = %v, want %v", counts, want)
		}
		for o, n := range want {
			if counts[o] != n {
				t.Errorf("count[%s] = %d, want %d", o, counts[o], n)
			}
		}

		hosts, err := db.TopFailingHosts(ctx, "run-1", 5)
		if err != nil {
			t.Fatal(err)
		}
		if len(hosts) != 2 {
			t.Fatalf("expected 2 failing hosts, got %+v", hosts)
		}
		if hosts[0] != (HostFailure{Host: "b.cz", Failures: 2}) || hosts[1] != (HostFailure{Host: "a.cz", Failures: 1}) {
			t.Errorf("TopFailingHosts() = %+v", hosts)
		}
	})
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	want := time.Date(2024, 3, 12, 10, 15, 0, 0, time.UTC)
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{name: "stored layout", input: formatTimestamp(want), want: want},
		{name: "RFC3339", input: "2024-03-12T10:15:00Z", want: want},
		{name: "SQLite datetime", input: "2024-03-12 10:15:00", want: want},
		{name: "ISO without zone", input: "2024-03-12T10:15:00", want: want},
		{name: "garbage", input: "yesterday", want: time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := parseTimestamp(tt.input); !got.Equal(tt.want) {
				t.Errorf("parseTimestamp(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatTimestampSortsAsText(t *testing.T) {
	t.Parallel()

	a := formatTimestamp(time.Date(2024, 3, 12, 10, 15, 0, 500_000_000, time.UTC))
	b := formatTimestamp(time.Date(2024, 3, 12, 10, 15, 1, 0, time.UTC))
	if a >= b {
		t.Errorf("expected %q < %q", a, b)
	}
}

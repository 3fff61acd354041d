package crawler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFrontierClaim(t *testing.T) {
	t.Parallel()

	t.Run("concurrent claims succeed exactly once", func(t *testing.T) {
		t.Parallel()
		f := NewFrontier()
		f.Push("https://a.cz/", 0)

		var wins atomic.Int32
		var wg sync.WaitGroup
		for range 100 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if f.Claim("https://a.cz/") {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		if wins.Load() != 1 {
			t.Errorf("expected exactly one winner, got %d", wins.Load())
		}
		if f.State("https://a.cz/") != StateClaimed {
			t.Errorf("State() = %v, want claimed", f.State("https://a.cz/"))
		}
	})

	t.Run("done URLs cannot be claimed or pushed again", func(t *testing.T) {
		t.Parallel()
		f := NewFrontier()
		if !f.Claim("https://a.cz/x") {
			t.Fatal("expected unknown URL to be claimable")
		}
		if !f.MarkDone("https://a.cz/x") {
			t.Fatal("expected MarkDone to succeed")
		}
		if f.MarkDone("https://a.cz/x") {
			t.Error("expected second MarkDone to fail")
		}
		if f.Claim("https://a.cz/x") || f.Push("https://a.cz/x", 0) {
			t.Error("expected done URL to stay done")
		}
	})

	t.Run("URL claimed directly is skipped by Next", func(t *testing.T) {
		t.Parallel()
		f := NewFrontier()
		f.Push("https://a.cz/1", 0)
		f.Push("https://a.cz/2", 0)
		f.Claim("https://a.cz/1")

		entry, ok := f.Next(context.Background())
		if !ok || entry.URL != "https://a.cz/2" {
			t.Errorf("Next() = %v, %v; want https://a.cz/2", entry, ok)
		}
	})
}

func TestFrontierNext(t *testing.T) {
	t.Parallel()

	t.Run("priority lane is served first", func(t *testing.T) {
		t.Parallel()
		f := NewFrontier()
		f.Push("https://a.cz/hub", 1)
		f.PushPriority("https://a.cz/clanek", 1)

		entry, _ := f.Next(context.Background())
		if entry.URL != "https://a.cz/clanek" {
			t.Errorf("expected priority entry first, got %s", entry.URL)
		}
		entry, _ = f.Next(context.Background())
		if entry.URL != "https://a.cz/hub" || entry.Depth != 1 {
			t.Errorf("unexpected second entry %+v", entry)
		}
	})

	t.Run("duplicate pushes are ignored", func(t *testing.T) {
		t.Parallel()
		f := NewFrontier()
		if !f.Push("https://a.cz/", 0) {
			t.Fatal("expected first push to succeed")
		}
		if f.Push("https://a.cz/", 0) || f.PushPriority("https://a.cz/", 0) {
			t.Error("expected duplicate push to be rejected")
		}
		if got := f.Stats().Known; got != 1 {
			t.Errorf("Known = %d, want 1", got)
		}
	})

	t.Run("empty frontier is drained", func(t *testing.T) {
		t.Parallel()
		f := NewFrontier()
		if _, ok := f.Next(context.Background()); ok {
			t.Error("expected Next to report drained")
		}
		if !f.IsDrained() {
			t.Error("expected IsDrained")
		}
	})

	t.Run("Next waits for in-flight work before draining", func(t *testing.T) {
		t.Parallel()
		f := NewFrontier()
		f.Push("https://a.cz/", 0)
		entry, ok := f.Next(context.Background())
		if !ok {
			t.Fatal("expected an entry")
		}

		got := make(chan Entry, 1)
		done := make(chan bool, 1)
		go func() {
			e, ok := f.Next(context.Background())
			got <- e
			done <- ok
		}()

		select {
		case <-done:
			t.Fatal("Next returned while work was in flight")
		case <-time.After(50 * time.Millisecond):
		}

		f.Push("https://a.cz/child", 1)
		f.MarkDone(entry.URL)

		select {
		case ok := <-done:
			e := <-got
			if !ok || e.URL != "https://a.cz/child" {
				t.Errorf("Next() = %v, %v; want child", e, ok)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Next did not wake up")
		}

		f.MarkDone("https://a.cz/child")
		if _, ok := f.Next(context.Background()); ok {
			t.Error("expected drained frontier")
		}
		stats := f.Stats()
		if stats.Done != 2 || stats.Pending != 0 || stats.InFlight != 0 {
			t.Errorf("unexpected stats %+v", stats)
		}
	})

	t.Run("cancelled context unblocks Next", func(t *testing.T) {
		t.Parallel()
		f := NewFrontier()
		f.Push("https://a.cz/", 0)
		if _, ok := f.Next(context.Background()); !ok {
			t.Fatal("expected an entry")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if _, ok := f.Next(ctx); ok {
			t.Error("expected Next to give up on cancellation")
		}
	})

	t.Run("closed frontier returns nothing", func(t *testing.T) {
		t.Parallel()
		f := NewFrontier()
		f.Push("https://a.cz/", 0)
		f.Close()
		if _, ok := f.Next(context.Background()); ok {
			t.Error("expected closed frontier to return nothing")
		}
		if f.State("https://a.cz/") != StateUnseen {
			t.Error("expected pending URL to stay unseen")
		}
	})

	t.Run("released entry is served again", func(t *testing.T) {
		t.Parallel()
		f := NewFrontier()
		f.Push("https://a.cz/1", 0)
		f.Push("https://a.cz/2", 0)
		entry, _ := f.Next(context.Background())
		if !f.Release(entry) {
			t.Fatal("expected Release to succeed")
		}
		again, _ := f.Next(context.Background())
		if again.URL != entry.URL {
			t.Errorf("expected %s again, got %s", entry.URL, again.URL)
		}
	})
}

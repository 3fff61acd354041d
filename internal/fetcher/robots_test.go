package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

func TestRobotsChecker(t *testing.T) {
	t.Parallel()

	t.Run("disallowed paths are rejected", func(t *testing.T) {
		t.Parallel()
		var robotsHits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				robotsHits.Add(1)
				fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(srv.Close)

		rc := NewRobotsChecker(srv.Client(), "newscrawl", quietLogger())
		ctx := context.Background()

		allowed, err := rc.Allowed(ctx, srv.URL+"/private/page")
		if err != nil || allowed {
			t.Errorf("expected /private/page to be disallowed, got %v, %v", allowed, err)
		}
		allowed, err = rc.Allowed(ctx, srv.URL+"/zpravy/clanek")
		if err != nil || !allowed {
			t.Errorf("expected /zpravy/clanek to be allowed, got %v, %v", allowed, err)
		}
		if robotsHits.Load() != 1 {
			t.Errorf("expected robots.txt to be fetched once, got %d", robotsHits.Load())
		}
	})

	t.Run("missing robots.txt allows everything", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.NotFoundHandler())
		t.Cleanup(srv.Close)

		rc := NewRobotsChecker(srv.Client(), "newscrawl", quietLogger())
		allowed, err := rc.Allowed(context.Background(), srv.URL+"/anything")
		if err != nil || !allowed {
			t.Errorf("expected allow-all, got %v, %v", allowed, err)
		}
	})

	t.Run("server error allows everything", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		t.Cleanup(srv.Close)

		rc := NewRobotsChecker(srv.Client(), "newscrawl", quietLogger())
		if allowed, _ := rc.Allowed(context.Background(), srv.URL+"/x"); !allowed {
			t.Error("expected allow-all on 5xx")
		}
	})

	t.Run("concurrent checks share one fetch", func(t *testing.T) {
		t.Parallel()
		var robotsHits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				robotsHits.Add(1)
				fmt.Fprint(w, "User-agent: *\nAllow: /\n")
			}
		}))
		t.Cleanup(srv.Close)

		rc := NewRobotsChecker(srv.Client(), "newscrawl", quietLogger())
		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = rc.Allowed(context.Background(), fmt.Sprintf("%s/p/%d", srv.URL, i))
			}()
		}
		wg.Wait()
		if robotsHits.Load() != 1 {
			t.Errorf("expected a single robots.txt fetch, got %d", robotsHits.Load())
		}
	})

	t.Run("invalid URL is an error", func(t *testing.T) {
		t.Parallel()
		rc := NewRobotsChecker(http.DefaultClient, "newscrawl", quietLogger())
		if _, err := rc.Allowed(context.Background(), "relative/path"); err == nil {
			t.Error("expected error for relative URL")
		}
	})
}

package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestArticleRecordJSON(t *testing.T) {
	t.Parallel()

	t.Run("fields are written in schema order", func(t *testing.T) {
		t.Parallel()
		rec := ArticleRecord{URL: "u", Source: "s", Title: "t", Content: "c", Category: "k", Comments: 1, Images: 2, Date: "d"}
		data, err := json.Marshal(rec)
		if err != nil {
			t.Fatal(err)
		}
		want := `{"url":"u","source":"s","title":"t","content":"c","category":"k","comments":1,"images":2,"date":"d"}`
		if string(data) != want {
			t.Errorf("got %s, want %s", data, want)
		}
	})

	t.Run("zero record keeps every key", func(t *testing.T) {
		t.Parallel()
		data, err := json.Marshal(ArticleRecord{})
		if err != nil {
			t.Fatal(err)
		}
		for _, key := range []string{"url", "source", "title", "content", "category", "comments", "images", "date"} {
			if !strings.Contains(string(data), `"`+key+`"`) {
				t.Errorf("expected key %q in %s", key, data)
			}
		}
	})
}

func TestPage(t *testing.T) {
	t.Parallel()

	t.Run("media type drops parameters", func(t *testing.T) {
		t.Parallel()
		p := &Page{ContentType: "Text/HTML; charset=windows-1250"}
		if got := p.MediaType(); got != "text/html" {
			t.Errorf("MediaType() = %q", got)
		}
		if !p.IsHTML() {
			t.Error("expected HTML")
		}
	})

	t.Run("missing content type counts as HTML", func(t *testing.T) {
		t.Parallel()
		if !(&Page{}).IsHTML() {
			t.Error("expected HTML")
		}
	})

	t.Run("images are not HTML", func(t *testing.T) {
		t.Parallel()
		if (&Page{ContentType: "image/jpeg"}).IsHTML() {
			t.Error("expected image not to be HTML")
		}
	})

	t.Run("base URL prefers the final URL", func(t *testing.T) {
		t.Parallel()
		p := &Page{URL: "https://a.cz/x", FinalURL: "https://a.cz/y"}
		if p.BaseURL() != "https://a.cz/y" {
			t.Errorf("BaseURL() = %q", p.BaseURL())
		}
		p.FinalURL = ""
		if p.BaseURL() != "https://a.cz/x" {
			t.Errorf("BaseURL() = %q", p.BaseURL())
		}
	})
}

func TestOutcome(t *testing.T) {
	t.Parallel()

	t.Run("names round trip", func(t *testing.T) {
		t.Parallel()
		for o := OutcomeArticle; o <= OutcomeSkipped; o++ {
			got, ok := ParseOutcome(o.String())
			if !ok || got != o {
				t.Errorf("ParseOutcome(%q) = %v, %v", o.String(), got, ok)
			}
		}
	})

	t.Run("unknown name is rejected", func(t *testing.T) {
		t.Parallel()
		if _, ok := ParseOutcome("maybe"); ok {
			t.Error("expected unknown outcome to be rejected")
		}
		if Outcome(99).String() != "unknown" {
			t.Error("expected unknown string")
		}
	})
}

func TestVisitJSON(t *testing.T) {
	t.Parallel()

	t.Run("outcome is encoded by name", func(t *testing.T) {
		t.Parallel()
		data, err := json.Marshal(Visit{URL: "https://a.cz/", Outcome: OutcomeHub})
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), `"outcome":"hub"`) {
			t.Errorf("expected named outcome in %s", data)
		}

		var back Visit
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatal(err)
		}
		if back.Outcome != OutcomeHub {
			t.Errorf("Outcome = %v, want hub", back.Outcome)
		}
	})
}

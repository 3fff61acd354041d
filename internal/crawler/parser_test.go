package crawler

import (
	"slices"
	"strings"
	"testing"
)

func TestParser(t *testing.T) {
	t.Parallel()

	const page = `<html><head><title> Zprávy </title></head><body>
<a href="/clanek/1">one</a>
<a href="clanek/2">two</a>
<a href="https://other.cz/x">external</a>
<a href="/clanek/1">duplicate</a>
<a href="#top">fragment</a>
<a href="javascript:void(0)">js</a>
<a href="MAILTO:redakce@idnes.cz">mail</a>
<a href="tel:+420123">tel</a>
<a href="/login" rel="nofollow noopener">login</a>
<map><area href="/mapa"></map>
</body></html>`

	t.Run("links are resolved and de-duplicated", func(t *testing.T) {
		t.Parallel()
		p, err := NewParser("https://www.idnes.cz/zpravy/")
		if err != nil {
			t.Fatal(err)
		}
		result, err := p.Parse(strings.NewReader(page))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		want := []string{
			"https://www.idnes.cz/clanek/1",
			"https://www.idnes.cz/zpravy/clanek/2",
			"https://other.cz/x",
			"https://www.idnes.cz/mapa",
		}
		if !slices.Equal(result.Links, want) {
			t.Errorf("Links = %v, want %v", result.Links, want)
		}
		if result.Title != "Zprávy" {
			t.Errorf("Title = %q", result.Title)
		}
	})

	t.Run("base element changes resolution", func(t *testing.T) {
		t.Parallel()
		p, err := NewParser("https://www.idnes.cz/a/b")
		if err != nil {
			t.Fatal(err)
		}
		result, err := p.Parse(strings.NewReader(`<head><base href="https://zpravy.idnes.cz/domaci/"></head><body><a href="x">x</a></body>`))
		if err != nil {
			t.Fatal(err)
		}
		if len(result.Links) != 1 || result.Links[0] != "https://zpravy.idnes.cz/domaci/x" {
			t.Errorf("Links = %v", result.Links)
		}
	})

	t.Run("page without links yields an empty slice", func(t *testing.T) {
		t.Parallel()
		p, _ := NewParser("https://idnes.cz/")
		result, err := p.Parse(strings.NewReader("<p>nothing</p>"))
		if err != nil {
			t.Fatal(err)
		}
		if result.Links == nil || len(result.Links) != 0 {
			t.Errorf("Links = %#v", result.Links)
		}
	})
}

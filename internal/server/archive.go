package server

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nao1215/newscrawl/internal/model"
	"github.com/nao1215/newscrawl/internal/store"
)

// Article is a stored record with the identifier it is served under.
type Article struct {
	ID string `json:"id"`
	model.ArticleRecord
}

// ArticleID derives the identifier of the article stored for url. It is
// stable across reloads and runs.
func ArticleID(url string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(url)).String()
}

// Archive is a read-only view of a JSON article store. The shards are
// re-read when they change, so a store that is still being crawled can be
// served.
type Archive struct {
	path   string
	logger *slog.Logger

	mu       sync.Mutex
	stamp    string
	articles []Article
	index    map[string]int
}

// NewArchive returns an archive over the store at path. Nothing is read
// until the first request.
func NewArchive(path string, logger *slog.Logger) *Archive {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archive{path: path, logger: logger}
}

// Path returns the store path.
func (a *Archive) Path() string {
	return a.path
}

// Len returns the number of stored articles.
func (a *Archive) Len() (int, error) {
	articles, _, err := a.snapshot()
	return len(articles), err
}

// At returns the article at position i, counted from zero in store order.
func (a *Archive) At(i int) (Article, bool, error) {
	articles, _, err := a.snapshot()
	if err != nil || i < 0 || i >= len(articles) {
		return Article{}, false, err
	}
	return articles[i], true, nil
}

// Get returns the article with the given identifier.
func (a *Archive) Get(id string) (Article, bool, error) {
	articles, index, err := a.snapshot()
	if err != nil {
		return Article{}, false, err
	}
	i, ok := index[id]
	if !ok {
		return Article{}, false, nil
	}
	return articles[i], true, nil
}

// snapshot returns the current articles, reloading them when a shard was
// added, removed or rewritten. A failed reload keeps serving the last good
// view.
func (a *Archive) snapshot() ([]Article, map[string]int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	stamp, err := a.currentStamp()
	if err != nil {
		return a.fallback(err)
	}
	if a.index != nil && stamp == a.stamp {
		return a.articles, a.index, nil
	}

	records, err := store.LoadAll(a.path)
	if err != nil {
		return a.fallback(err)
	}
	articles := make([]Article, 0, len(records))
	index := make(map[string]int, len(records))
	for _, rec := range records {
		id := ArticleID(rec.URL)
		if _, dup := index[id]; dup {
			continue
		}
		index[id] = len(articles)
		articles = append(articles, Article{ID: id, ArticleRecord: rec})
	}

	a.stamp, a.articles, a.index = stamp, articles, index
	a.logger.Debug("archive loaded", "path", a.path, "articles", len(articles))
	return a.articles, a.index, nil
}

func (a *Archive) fallback(err error) ([]Article, map[string]int, error) {
	if a.index == nil {
		return nil, nil, err
	}
	a.logger.Warn("failed to reload archive, serving previous view", "path", a.path, "error", err)
	return a.articles, a.index, nil
}

// currentStamp summarizes the names, sizes and modification times of the
// shards.
func (a *Archive) currentStamp() (string, error) {
	shards, err := store.Shards(a.path)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, name := range shards {
		info, err := os.Stat(name)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "%s:%d:%d;", name, info.Size(), info.ModTime().UnixNano())
	}
	return b.String(), nil
}

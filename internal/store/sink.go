package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/newscrawl/internal/config"
	"github.com/nao1215/newscrawl/internal/model"
)

// DefaultMaxFlushFailures is how many consecutive failed flushes are
// tolerated before the store reports ErrStoreUnwritable.
const DefaultMaxFlushFailures = 5

// maxShards bounds the four-digit shard suffix.
const maxShards = 9999

// Stats is a snapshot of the sink counters.
type Stats struct {
	// Records is the number of records flushed by this process.
	Records int `json:"records"`
	// Bytes is the cumulative size of all shards on disk.
	Bytes int64 `json:"bytes"`
	// Shards is the number of shard files.
	Shards int `json:"shards"`
	// Buffered is the number of records waiting for the next flush.
	Buffered int `json:"buffered"`
}

// Sink is a batched, size-capped JSON array store. All methods are safe
// for concurrent use; append, threshold check and flush happen under one
// mutex.
type Sink struct {
	path             string
	maxSize          int64
	shardSize        int64
	batchSize        int
	maxFlushFailures int
	logger           *slog.Logger

	mu         sync.Mutex
	buffer     []*model.ArticleRecord
	size       int64
	shard      int
	shardBytes int64
	shards     int
	written    int
	failures   int
	unwritable bool
	closed     bool
}

// Option configures a Sink.
type Option func(*Sink)

// WithMaxSize sets the output cap in bytes. 0 means unlimited.
func WithMaxSize(n int64) Option {
	return func(s *Sink) {
		s.maxSize = n
	}
}

// WithShardSize starts a new shard once the current one reaches n bytes.
// 0 keeps everything in one file.
func WithShardSize(n int64) Option {
	return func(s *Sink) {
		s.shardSize = n
	}
}

// WithBatchSize sets how many records are buffered before a flush.
func WithBatchSize(n int) Option {
	return func(s *Sink) {
		s.batchSize = n
	}
}

// WithMaxFlushFailures sets how many consecutive flush failures are
// tolerated.
func WithMaxFlushFailures(n int) Option {
	return func(s *Sink) {
		s.maxFlushFailures = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) {
		s.logger = l
	}
}

// Open prepares the store at path. The directory is created if needed and
// existing shards are measured, so a new run continues where the last one
// stopped and the cap covers both.
func Open(path string, opts ...Option) (*Sink, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty path", ErrOutputPath)
	}
	s := &Sink{
		path:             path,
		batchSize:        config.DefaultBatchSize,
		maxFlushFailures: DefaultMaxFlushFailures,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.batchSize < 1 {
		s.batchSize = 1
	}
	if s.maxFlushFailures < 1 {
		s.maxFlushFailures = 1
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutputPath, err)
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrOutputPath, path)
	}
	check, err := os.CreateTemp(dir, ".newscrawl-write-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutputPath, err)
	}
	_ = check.Close()
	_ = os.Remove(check.Name())

	if err := s.measure(); err != nil {
		return nil, err
	}
	if s.size > 0 {
		s.logger.Info("resuming output store",
			"path", path,
			"shards", s.shards,
			"size", humanize.IBytes(uint64(s.size)))
	}
	return s, nil
}

// OpenFromConfig opens the store configured in cfg.
func OpenFromConfig(cfg *config.Config, logger *slog.Logger) (*Sink, error) {
	return Open(cfg.Output,
		WithMaxSize(int64(cfg.MaxSize)),
		WithShardSize(int64(cfg.ShardSize)),
		WithBatchSize(cfg.BatchSize),
		WithLogger(logger),
	)
}

// measure sums the sizes of the existing shards and selects the last one
// as the current shard.
func (s *Sink) measure() error {
	for i := 0; i <= maxShards; i++ {
		info, err := os.Stat(s.ShardPath(i))
		if errors.Is(err, fs.ErrNotExist) {
			if i == 0 {
				continue
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrOutputPath, err)
		}
		s.size += info.Size()
		s.shard = i
		s.shardBytes = info.Size()
		s.shards++
	}
	return nil
}

// ShardPath returns the file name of shard i: the configured path for
// shard 0, "<stem>-0001<ext>" and so on after it.
func (s *Sink) ShardPath(i int) string {
	return shardPath(s.path, i)
}

func shardPath(base string, i int) string {
	if i == 0 {
		return base
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return fmt.Sprintf("%s-%04d%s", stem, i, ext)
}

// Append buffers rec and flushes once the batch is full. A failed flush
// keeps the buffer and is logged. Append returns an error once the store
// is unwritable, and ErrFull once the cap is reached, so the final size
// exceeds the cap by at most the batch that crossed it.
func (s *Sink) Append(_ context.Context, rec *model.ArticleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.unwritable {
		return ErrStoreUnwritable
	}
	if s.fullLocked() {
		return ErrFull
	}
	s.buffer = append(s.buffer, rec)
	if len(s.buffer) < s.batchSize {
		return nil
	}
	return s.tolerate(s.flushLocked())
}

// Flush writes the buffer now.
func (s *Sink) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.unwritable {
		return ErrStoreUnwritable
	}
	return s.tolerate(s.flushLocked())
}

// tolerate counts a flush failure and turns it into ErrStoreUnwritable once
// the limit is reached. Callers hold s.mu.
func (s *Sink) tolerate(err error) error {
	if err == nil {
		s.failures = 0
		return nil
	}
	s.failures++
	if s.failures >= s.maxFlushFailures {
		s.unwritable = true
		s.logger.Error("output store is unwritable",
			"path", s.path,
			"failures", s.failures,
			"buffered", len(s.buffer),
			"error", err)
		return fmt.Errorf("%w: %w", ErrStoreUnwritable, err)
	}
	s.logger.Warn("flush failed, keeping buffer",
		"path", s.path,
		"failures", s.failures,
		"buffered", len(s.buffer),
		"error", err)
	return nil
}

// flushLocked appends the buffer to the current shard. Callers hold s.mu.
func (s *Sink) flushLocked() error {
	if len(s.buffer) == 0 {
		return nil
	}
	if s.shardSize > 0 && s.shardBytes >= s.shardSize && s.shard < maxShards {
		s.shard++
		s.shardBytes = 0
	}
	path := s.ShardPath(s.shard)
	_, statErr := os.Stat(path)
	isNew := errors.Is(statErr, fs.ErrNotExist)

	existing, err := s.readShard(path)
	if err != nil {
		return err
	}
	records := make([]*model.ArticleRecord, 0, len(existing)+len(s.buffer))
	records = append(records, existing...)
	records = append(records, s.buffer...)

	data, err := encode(records)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return err
	}

	if isNew {
		s.shards++
	}
	s.size += int64(len(data)) - s.shardBytes
	s.shardBytes = int64(len(data))
	s.written += len(s.buffer)
	flushed := len(s.buffer)
	s.buffer = nil

	s.logger.Info("flushed records",
		"records", flushed,
		"shard", path,
		"total", s.written,
		"size", humanize.IBytes(uint64(s.size)))
	return nil
}

// readShard loads the records of path. A missing file is empty; a corrupt
// file is moved aside and treated as empty. A file that exists but cannot
// be read is an error, so its records are never overwritten.
func (s *Sink) readShard(path string) ([]*model.ArticleRecord, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(bytes.TrimSpace(data)) == 0) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var records []*model.ArticleRecord
	if err := json.Unmarshal(data, &records); err != nil {
		backup := path + ".corrupt"
		s.logger.Warn("output shard is corrupt, starting it empty",
			"path", path,
			"backup", backup,
			"error", err)
		if rerr := os.Rename(path, backup); rerr != nil {
			s.logger.Warn("failed to move corrupt shard aside", "path", path, "error", rerr)
		}
		return nil, nil
	}
	return records, nil
}

// IsFull reports whether the shards reached the size cap.
func (s *Sink) IsFull() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fullLocked()
}

func (s *Sink) fullLocked() bool {
	return s.maxSize > 0 && s.size >= s.maxSize
}

// Size returns the cumulative size of all shards in bytes.
func (s *Sink) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Stats returns a snapshot of the counters.
func (s *Sink) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Records:  s.written,
		Bytes:    s.size,
		Shards:   s.shards,
		Buffered: len(s.buffer),
	}
}

// Close flushes the remaining buffer. Any failure here is final.
func (s *Sink) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.flushLocked(); err != nil {
		s.unwritable = true
		s.logger.Error("final flush failed", "path", s.path, "lost", len(s.buffer), "error", err)
		return fmt.Errorf("%w: %w", ErrStoreUnwritable, err)
	}
	return nil
}

// Shards lists the shard files of the store at path in order, without
// opening it for writing. A store that was never written has no shards.
func Shards(path string) ([]string, error) {
	var shards []string
	for i := 0; i <= maxShards; i++ {
		name := shardPath(path, i)
		_, err := os.Stat(name)
		if errors.Is(err, fs.ErrNotExist) {
			if i == 0 {
				continue
			}
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrOutputPath, err)
		}
		shards = append(shards, name)
	}
	return shards, nil
}

// LoadAll reads the records of every shard of the store at path.
func LoadAll(path string) ([]model.ArticleRecord, error) {
	shards, err := Shards(path)
	if err != nil {
		return nil, err
	}
	var records []model.ArticleRecord
	for _, name := range shards {
		recs, err := Load(name)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}
	return records, nil
}

// Load reads every record of one shard file. An empty file holds no records.
func Load(path string) ([]model.ArticleRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var records []model.ArticleRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return records, nil
}

// encode renders records as an indented JSON array with HTML escaping
// disabled, so non-ASCII text and markup characters stay verbatim.
func encode(records []*model.ArticleRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, fmt.Errorf("failed to encode records: %w", err)
	}
	return buf.Bytes(), nil
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it over path.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

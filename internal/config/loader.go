package config

import (
	_ "embed"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".newscrawl.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

//go:embed templates/newscrawl.yaml
var defaultTemplate []byte

// RetryFile is the retry section of the configuration file.
type RetryFile struct {
	MaxAttempts  int           `yaml:"maxAttempts,omitempty"`
	InitialDelay time.Duration `yaml:"initialDelay,omitempty"`
	MaxDelay     time.Duration `yaml:"maxDelay,omitempty"`
	Multiplier   float64       `yaml:"multiplier,omitempty"`
}

// File represents the structure of the .newscrawl.yaml configuration file.
// Zero values mean "not set" and leave the corresponding Config field alone.
type File struct {
	Seeds         []string      `yaml:"seeds,omitempty"`
	Workers       int           `yaml:"workers,omitempty"`
	Delay         time.Duration `yaml:"delay,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`
	Retry         RetryFile     `yaml:"retry,omitempty"`
	Output        string        `yaml:"output,omitempty"`
	MaxSize       *ByteSize     `yaml:"maxSize,omitempty"`
	ShardSize     ByteSize      `yaml:"shardSize,omitempty"`
	BatchSize     int           `yaml:"batchSize,omitempty"`
	MaxDepth      int           `yaml:"maxDepth,omitempty"`
	RespectRobots *bool         `yaml:"respectRobots,omitempty"`
	Proxy         string        `yaml:"proxy,omitempty"`
	UserAgent     string        `yaml:"userAgent,omitempty"`
	SkipRecent    time.Duration `yaml:"skipRecent,omitempty"`

	// Sites is the ordered site rule table. Order matters: the first
	// matching rule wins.
	Sites []SiteRule `yaml:"sites,omitempty"`
}

// LoadConfigFile loads a configuration file from path.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers decide whether that is fatal based on whether the path was
// explicitly requested by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}
	return ParseConfigFile(data)
}

// ParseConfigFile decodes YAML configuration data.
func ParseConfigFile(data []byte) (*File, error) {
	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}
	return &cf, nil
}

// DefaultTemplate returns the embedded default configuration, which is also
// what `newscrawl init` writes.
func DefaultTemplate() []byte {
	out := make([]byte, len(defaultTemplate))
	copy(out, defaultTemplate)
	return out
}

// TemplateWithSeeds returns the default template with its seed list
// replaced by seeds. Comments and every other line are kept as they are.
// Without seeds the template is returned unchanged.
func TemplateWithSeeds(seeds []string) ([]byte, error) {
	if len(seeds) == 0 {
		return DefaultTemplate(), nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(defaultTemplate, &doc); err != nil {
		return nil, err
	}
	first, last := seedLines(&doc)
	if first == 0 {
		return nil, errors.New("default template has no seeds entry")
	}

	block := make([]string, 0, len(seeds)+1)
	block = append(block, "seeds:")
	for _, seed := range seeds {
		v, err := yaml.Marshal(seed)
		if err != nil {
			return nil, err
		}
		block = append(block, "  - "+strings.TrimSuffix(string(v), "\n"))
	}

	lines := strings.Split(string(defaultTemplate), "\n")
	out := make([]string, 0, len(lines)+len(block))
	out = append(out, lines[:first-1]...)
	out = append(out, block...)
	out = append(out, lines[last:]...)
	return []byte(strings.Join(out, "\n")), nil
}

// seedLines returns the 1-based line span of the top-level seeds entry,
// or zeros when there is none.
func seedLines(doc *yaml.Node) (int, int) {
	if len(doc.Content) == 0 {
		return 0, 0
	}
	root := doc.Content[0]
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		if key.Value != "seeds" {
			continue
		}
		last := key.Line
		for _, item := range val.Content {
			last = max(last, item.Line)
		}
		return key.Line, last
	}
	return 0, 0
}

// DefaultFile returns the parsed embedded default configuration.
func DefaultFile() (*File, error) {
	return ParseConfigFile(defaultTemplate)
}

// Apply merges the file's set values into cfg. When the file carries no
// site rules cfg.Sites is left unchanged.
func (cf *File) Apply(cfg *Config) error {
	if len(cf.Seeds) > 0 {
		cfg.Seeds = append([]string(nil), cf.Seeds...)
	}
	if cf.Workers != 0 {
		cfg.Workers = cf.Workers
	}
	if cf.Delay != 0 {
		cfg.CrawlDelay = cf.Delay
	}
	if cf.Timeout != 0 {
		cfg.Timeout = cf.Timeout
	}
	if cf.Retry.MaxAttempts != 0 {
		cfg.RetryAttempts = cf.Retry.MaxAttempts
	}
	if cf.Retry.InitialDelay != 0 {
		cfg.RetryDelay = cf.Retry.InitialDelay
	}
	if cf.Retry.MaxDelay != 0 {
		cfg.RetryMaxDelay = cf.Retry.MaxDelay
	}
	if cf.Retry.Multiplier != 0 {
		cfg.RetryMultiplier = cf.Retry.Multiplier
	}
	if cf.Output != "" {
		cfg.Output = cf.Output
	}
	if cf.MaxSize != nil {
		cfg.MaxSize = *cf.MaxSize
	}
	if cf.ShardSize != 0 {
		cfg.ShardSize = cf.ShardSize
	}
	if cf.BatchSize != 0 {
		cfg.BatchSize = cf.BatchSize
	}
	if cf.MaxDepth != 0 {
		cfg.MaxDepth = cf.MaxDepth
	}
	if cf.RespectRobots != nil {
		cfg.RespectRobots = *cf.RespectRobots
	}
	if cf.Proxy != "" {
		cfg.Proxy = cf.Proxy
	}
	if cf.UserAgent != "" {
		cfg.UserAgent = cf.UserAgent
	}
	if cf.SkipRecent != 0 {
		cfg.SkipRecent = cf.SkipRecent
	}
	if len(cf.Sites) > 0 {
		reg, err := NewRegistry(cf.Sites)
		if err != nil {
			return err
		}
		cfg.Sites = reg
	}
	return nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. .newscrawl.yaml in the current directory
// 3. .newscrawl.yaml in the user's home directory
// 4. config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	candidates := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

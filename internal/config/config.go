// Package config loads the pyrite.toml project manifest.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"pyrite/internal/trace"
)

// ManifestName identifies the project root.
const ManifestName = "pyrite.toml"

// Project is the [project] section: where sources live and how strictly
// unmarked files are checked.
type Project struct {
	// Roots are the search roots in priority order; earlier roots shadow
	// later ones. Relative entries resolve against the manifest directory.
	Roots []string `toml:"roots"`
	// Excludes are path.Match globs tested against root-relative paths.
	Excludes []string `toml:"excludes"`
	// Strict checks files without a mode marker as strict.
	Strict bool `toml:"strict"`
}

// Check is the [check] section.
type Check struct {
	Jobs           int  `toml:"jobs"` // 0 picks one per CPU
	Sequential     bool `toml:"sequential"`
	Lookups        bool `toml:"lookups"`
	MaxParseErrors int  `toml:"max_parse_errors"`
}

// Trace is the [trace] section. Values are validated at load time and
// parsed again where the tracer is built, since flags may override them.
type Trace struct {
	Level  string `toml:"level"`
	Output string `toml:"output"` // empty writes to stderr
	Format string `toml:"format"`
}

// Config is one loaded manifest plus defaults for whatever it omits.
type Config struct {
	Path string `toml:"-"` // manifest location, empty when defaulted

	Project Project `toml:"project"`
	Check   Check   `toml:"check"`
	Trace   Trace   `toml:"trace"`
}

// Default is the configuration used without a manifest: dir as the only
// search root.
func Default(dir string) Config {
	return Config{
		Project: Project{Roots: []string{dir}},
		Check:   Check{MaxParseErrors: 25},
		Trace:   Trace{Level: "off", Format: "auto"},
	}
}

// FindManifest walks up from startDir to locate pyrite.toml.
func FindManifest(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ManifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load parses one manifest. Omitted keys keep their defaults; relative
// search roots are resolved against the manifest directory.
func Load(path string) (Config, error) {
	dir := filepath.Dir(path)
	cfg := Default(dir)
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	cfg.Path = path

	if meta.IsDefined("project", "roots") && len(cfg.Project.Roots) == 0 {
		return Config{}, fmt.Errorf("%s: [project].roots is empty", path)
	}
	for i, root := range cfg.Project.Roots {
		if !filepath.IsAbs(root) {
			cfg.Project.Roots[i] = filepath.Join(dir, root)
		}
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault finds the manifest above startDir and loads it; without
// one the defaults apply with startDir as the search root.
func LoadOrDefault(startDir string) (Config, error) {
	path, ok, err := FindManifest(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		if startDir == "" {
			startDir = "."
		}
		abs, err := filepath.Abs(startDir)
		if err != nil {
			return Config{}, fmt.Errorf("failed to resolve start directory: %w", err)
		}
		return Default(abs), nil
	}
	return Load(path)
}

// RootDir returns the directory the project is anchored at: the
// manifest's directory, or the first search root when defaulted. Findings
// are reported for modules under this directory only.
func (c *Config) RootDir() string {
	if c.Path != "" {
		return filepath.Dir(c.Path)
	}
	if len(c.Project.Roots) > 0 {
		return c.Project.Roots[0]
	}
	return ""
}

func (c *Config) validate() error {
	for _, root := range c.Project.Roots {
		info, err := os.Stat(root)
		if err != nil {
			return fmt.Errorf("invalid [project].roots entry %q: %w", root, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("invalid [project].roots entry %q: not a directory", root)
		}
	}
	if c.Check.Jobs < 0 {
		return fmt.Errorf("[check].jobs must be >= 0, got %d", c.Check.Jobs)
	}
	if c.Check.MaxParseErrors < 0 {
		return fmt.Errorf("[check].max_parse_errors must be >= 0, got %d", c.Check.MaxParseErrors)
	}
	if _, err := trace.ParseLevel(c.Trace.Level); err != nil {
		return fmt.Errorf("[trace].level: %w", err)
	}
	if _, err := trace.ParseFormat(c.Trace.Format); err != nil {
		return fmt.Errorf("[trace].format: %w", err)
	}
	return nil
}

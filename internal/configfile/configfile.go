// Package configfile resolves the core's YAML configuration (§6): the
// `config` file inside the workspace directory, overridden by a fixed set
// of environment variables.
package configfile

import (
	"os"
	"os/user"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/hotschmoe/beads-zig-sub005/internal/beaderr"
)

// FileName is the config file's name inside the workspace directory.
const FileName = "config"

// ID groups the identifier-generation keys.
type ID struct {
	Prefix        string `yaml:"prefix"`
	MinHashLength int    `yaml:"min_hash_length"`
	MaxHashLength int    `yaml:"max_hash_length"`
}

// Defaults groups the issue-default keys.
type Defaults struct {
	Priority  int    `yaml:"priority"`
	IssueType string `yaml:"issue_type"`
}

// Sync groups the synchronization behavior keys.
type Sync struct {
	AutoFlush  bool `yaml:"auto_flush"`
	AutoImport bool `yaml:"auto_import"`
}

// Config is the resolved configuration value the core accepts; it is
// never read from disk by any component other than this package.
type Config struct {
	ID       ID       `yaml:"id"`
	Defaults Defaults `yaml:"defaults"`
	Sync     Sync     `yaml:"sync"`
	Actor    string   `yaml:"actor"`
}

// Default returns the configuration with every key at its documented
// default.
func Default() Config {
	actor := "unknown"
	if u, err := user.Current(); err == nil && u.Username != "" {
		actor = u.Username
	}
	return Config{
		ID:       ID{Prefix: "bd", MinHashLength: 3, MaxHashLength: 8},
		Defaults: Defaults{Priority: 2, IssueType: "task"},
		Sync:     Sync{AutoFlush: true, AutoImport: true},
		Actor:    actor,
	}
}

// Load reads the config file inside dir, merges it over Default(), then
// applies BEADS_PREFIX/BEADS_ACTOR environment overrides (BEADS_DIR is
// handled by ResolveWorkspaceDir, not here). A missing config file is not
// an error; Default() alone is returned.
func Load(dir string) (Config, error) {
	cfg := Default()

	path := filepath.Join(dir, FileName)
	// #nosec G304 - path is the workspace-resolved config file
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return Config{}, beaderr.FileNotFound(path).Wrap(err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, beaderr.CorruptLine(0, err.Error())
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if prefix := os.Getenv("BEADS_PREFIX"); prefix != "" {
		cfg.ID.Prefix = prefix
	}
	if actor := os.Getenv("BEADS_ACTOR"); actor != "" {
		cfg.Actor = actor
	}
}

// ResolveWorkspaceDir applies the BEADS_DIR override to the workspace
// path a caller would otherwise use (e.g. "./.beads" relative to cwd).
func ResolveWorkspaceDir(defaultDir string) string {
	if dir := os.Getenv("BEADS_DIR"); dir != "" {
		return dir
	}
	return defaultDir
}

// Package config handles configuration and the .inkdeck directory structure.
// Every user running inkdeck gets a .inkdeck/ folder in their home directory
// (or under INKDECK_HOME when set) holding config, session, logs, local
// draft snapshots, and platform plugins.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// InkdeckDir is the name of the directory created under the base dir.
	InkdeckDir = ".inkdeck"

	defaultTable            = "blog_posts"
	defaultPlatform         = "blog"
	defaultTimeoutSeconds   = 30
	defaultStatusTTLSeconds = 5
)

const defaultConfigYAML = `# inkdeck configuration
version: 1

# Remote content store (PostgREST-style REST endpoint).
store:
  url: ""
  api_key: ""
  table: blog_posts
  # Ordered body column candidates. Writes try the first name and fall back
  # to the next on a schema mismatch (the store has carried both names
  # across migrations).
  body_columns:
    - content
    - html_content

# Generation services, one endpoint per platform kind.
services:
  blog:
    endpoint: ""
  linkedin:
    endpoint: ""
    share_endpoint: ""
  tweet:
    endpoint: ""
    styles_endpoint: ""
    preferences_endpoint: ""

generation:
  timeout_seconds: 30

preview:
  enabled: true
  host: 127.0.0.1
  port: 8787

workspace:
  default_platform: blog
`

// StoreConfig points the store client at the persisted-content collection.
type StoreConfig struct {
	URL         string   `yaml:"url"`
	APIKey      string   `yaml:"api_key"`
	Table       string   `yaml:"table"`
	BodyColumns []string `yaml:"body_columns"`
}

// ServiceConfig describes one external generation service.
type ServiceConfig struct {
	Endpoint            string `yaml:"endpoint"`
	StylesEndpoint      string `yaml:"styles_endpoint,omitempty"`
	PreferencesEndpoint string `yaml:"preferences_endpoint,omitempty"`
	ShareEndpoint       string `yaml:"share_endpoint,omitempty"`
}

// GenerationConfig bounds generation requests.
type GenerationConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// PreviewConfig controls the loopback preview server.
type PreviewConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port,omitempty"`
}

// WorkspaceConfig captures dashboard preferences.
type WorkspaceConfig struct {
	DefaultPlatform string `yaml:"default_platform"`
}

// FileConfig models .inkdeck/config.yaml.
type FileConfig struct {
	Version    int                      `yaml:"version"`
	Store      StoreConfig              `yaml:"store"`
	Services   map[string]ServiceConfig `yaml:"services"`
	Generation GenerationConfig         `yaml:"generation"`
	Preview    PreviewConfig            `yaml:"preview"`
	Workspace  WorkspaceConfig          `yaml:"workspace"`
}

// Config holds the runtime configuration for inkdeck.
type Config struct {
	// BaseDir is where .inkdeck lives (the user's home dir by default).
	BaseDir string

	// InkdeckHome is BaseDir/.inkdeck.
	InkdeckHome string

	File FileConfig
}

// InitHomeDir creates the .inkdeck directory structure under baseDir.
// Called once at startup.
//
// Structure created:
// .inkdeck/
// ├── logs/       <- inkdeck.log
// ├── drafts/     <- local draft snapshots (edited content survives restarts)
// └── platforms/  <- platform definition plugins (*.yaml, *.go)
func InitHomeDir(baseDir string) error {
	home := filepath.Join(baseDir, InkdeckDir)
	dirs := []string{
		filepath.Join(home, "logs"),
		filepath.Join(home, "drafts"),
		filepath.Join(home, "platforms"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return ensureConfigFile(filepath.Join(home, "config.yaml"))
}

// BaseDir resolves the directory that should contain .inkdeck: the
// INKDECK_HOME override when set, the user home dir otherwise.
func BaseDir() (string, error) {
	if override := strings.TrimSpace(os.Getenv("INKDECK_HOME")); override != "" {
		return filepath.Clean(override), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home dir: %w", err)
	}
	return home, nil
}

// NewConfig loads configuration rooted at baseDir.
func NewConfig(baseDir string) (*Config, error) {
	cfg := &Config{
		BaseDir:     baseDir,
		InkdeckHome: filepath.Join(baseDir, InkdeckDir),
		File:        defaultFileConfig(),
	}
	if err := cfg.loadFileConfig(); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// LogsDir returns the path to the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.InkdeckHome, "logs")
}

// DraftsDir returns the directory holding local draft snapshots.
func (c *Config) DraftsDir() string {
	return filepath.Join(c.InkdeckHome, "drafts")
}

// PlatformsDir returns the directory scanned for platform plugins.
func (c *Config) PlatformsDir() string {
	return filepath.Join(c.InkdeckHome, "platforms")
}

// SessionPath returns the on-disk location of the persisted session.
func (c *Config) SessionPath() string {
	return filepath.Join(c.InkdeckHome, "session.json")
}

// ConfigPath returns the on-disk location of the config file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.InkdeckHome, "config.yaml")
}

// Service returns the generation service config for a platform kind.
func (c *Config) Service(kind string) (ServiceConfig, bool) {
	svc, ok := c.File.Services[strings.ToLower(strings.TrimSpace(kind))]
	return svc, ok
}

// GenerationTimeout returns the hard upper bound for generation requests.
func (c *Config) GenerationTimeout() time.Duration {
	seconds := c.File.Generation.TimeoutSeconds
	if seconds <= 0 {
		seconds = defaultTimeoutSeconds
	}
	return time.Duration(seconds) * time.Second
}

// StatusMessageTTL is how long transient status messages stay on screen.
func (c *Config) StatusMessageTTL() time.Duration {
	return defaultStatusTTLSeconds * time.Second
}

// DefaultPlatform returns the platform workspace opened by default.
func (c *Config) DefaultPlatform() string {
	return c.File.Workspace.DefaultPlatform
}

// SetDefaultPlatform updates the default platform and persists the value
// back to .inkdeck/config.yaml so the next launch opens the same workspace.
func (c *Config) SetDefaultPlatform(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("config: platform id is required")
	}
	c.File.Workspace.DefaultPlatform = strings.ToLower(id)
	return c.saveFileConfig()
}

func (c *Config) loadFileConfig() error {
	path := c.ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed FileConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.File = parsed
	return nil
}

func (c *Config) applyEnvOverrides() {
	if url := strings.TrimSpace(os.Getenv("INKDECK_STORE_URL")); url != "" {
		c.File.Store.URL = strings.TrimRight(url, "/")
	}
	if key := strings.TrimSpace(os.Getenv("INKDECK_STORE_API_KEY")); key != "" {
		c.File.Store.APIKey = key
	}
}

func defaultFileConfig() FileConfig {
	cfg := FileConfig{}
	cfg.applyDefaults()
	return cfg
}

func (fc *FileConfig) applyDefaults() {
	if fc.Version == 0 {
		fc.Version = 1
	}
	if fc.Services == nil {
		fc.Services = map[string]ServiceConfig{}
	}
	if fc.Store.Table == "" {
		fc.Store.Table = defaultTable
	}
	if len(fc.Store.BodyColumns) == 0 {
		fc.Store.BodyColumns = []string{"content", "html_content"}
	}
	if fc.Generation.TimeoutSeconds == 0 {
		fc.Generation.TimeoutSeconds = defaultTimeoutSeconds
	}
	if fc.Workspace.DefaultPlatform == "" {
		fc.Workspace.DefaultPlatform = defaultPlatform
	}
}

func (fc *FileConfig) normalize() {
	fc.Store.URL = strings.TrimRight(strings.TrimSpace(fc.Store.URL), "/")
	fc.Store.Table = strings.TrimSpace(fc.Store.Table)
	columns := make([]string, 0, len(fc.Store.BodyColumns))
	seen := map[string]struct{}{}
	for _, column := range fc.Store.BodyColumns {
		trimmed := strings.TrimSpace(column)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		columns = append(columns, trimmed)
	}
	fc.Store.BodyColumns = columns
	normalized := make(map[string]ServiceConfig, len(fc.Services))
	for kind, svc := range fc.Services {
		key := strings.ToLower(strings.TrimSpace(kind))
		if key == "" {
			continue
		}
		svc.Endpoint = strings.TrimSpace(svc.Endpoint)
		svc.StylesEndpoint = strings.TrimSpace(svc.StylesEndpoint)
		svc.PreferencesEndpoint = strings.TrimSpace(svc.PreferencesEndpoint)
		svc.ShareEndpoint = strings.TrimSpace(svc.ShareEndpoint)
		normalized[key] = svc
	}
	fc.Services = normalized
	fc.Workspace.DefaultPlatform = strings.ToLower(strings.TrimSpace(fc.Workspace.DefaultPlatform))
	if fc.Workspace.DefaultPlatform == "" {
		fc.Workspace.DefaultPlatform = defaultPlatform
	}
}

func (fc *FileConfig) validate() error {
	if fc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if len(fc.Store.BodyColumns) == 0 {
		return fmt.Errorf("store.body_columns must list at least one column")
	}
	if fc.Generation.TimeoutSeconds < 0 {
		return fmt.Errorf("generation.timeout_seconds must not be negative")
	}
	if fc.Preview.Port < 0 || fc.Preview.Port > 65535 {
		return fmt.Errorf("preview.port must be a valid TCP port")
	}
	return nil
}

func ensureConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

func (c *Config) saveFileConfig() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.File.applyDefaults()
	c.File.normalize()
	if err := c.File.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.InkdeckHome, 0o755); err != nil {
		return fmt.Errorf("config: ensure inkdeck dir: %w", err)
	}
	data, err := yaml.Marshal(c.File)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("config: write config: %w", err)
	}
	return nil
}

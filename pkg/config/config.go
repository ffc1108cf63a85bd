// Package config loads MU Kernel's project configuration from a
// .murc.toml file, with MU_* environment variables overriding individual
// fields for CI and container deployments.
//
// Configuration is organized into sections mirroring the Kernel's own
// module layout:
//   - Store: mubase location
//   - Daemon: HTTP/WebSocket listen address and auth
//   - Context: smart-extraction defaults (token budget, expand depth)
//   - Embedding: provider selection and endpoint
//   - Watch: file-watch debounce and ignore rules
//
// Example:
//
//	cfg, err := config.Load(".murc.toml")
//	if err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
//
//	fmt.Printf("daemon listening on %s\n", cfg.Daemon.ListenAddress)
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/mu-kernel/mukernel/pkg/kernel"
)

// Config holds all MU Kernel configuration, loaded from .murc.toml and
// then overridden field-by-field by MU_* environment variables.
type Config struct {
	Store     StoreConfig     `toml:"store"`
	Daemon    DaemonConfig    `toml:"daemon"`
	Context   ContextConfig   `toml:"context"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Watch     WatchConfig     `toml:"watch"`
}

// StoreConfig controls the embedded mubase.
type StoreConfig struct {
	// Path to the mubase directory, relative to the project root.
	Path string `toml:"path"`
}

// DaemonConfig controls the background watch-and-serve process.
type DaemonConfig struct {
	ListenAddress string        `toml:"listen_address"`
	AdminToken    string        `toml:"admin_token"`
	PIDFile       string        `toml:"pid_file"`
	ShutdownGrace time.Duration `toml:"shutdown_grace"`
}

// ContextConfig holds the extraction settings of the [context] table. The
// daemon's POST /context handler does not read them: it starts from
// pkg/context's DefaultConfig and applies only the request's max_tokens.
type ContextConfig struct {
	MaxTokens   int `toml:"max_tokens"`
	ExpandDepth int `toml:"expand_depth"`
	MaxResults  int `toml:"max_results"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider   string        `toml:"provider"` // "ollama" or "openai"
	APIURL     string        `toml:"api_url"`
	Model      string        `toml:"model"`
	APIKey     string        `toml:"api_key"`
	Dimensions int           `toml:"dimensions"`
	Timeout    time.Duration `toml:"timeout"`
}

// WatchConfig controls the daemon's fsnotify-driven rebuild.
type WatchConfig struct {
	DebounceWindow time.Duration `toml:"debounce_window"`
	IgnoredDirs    []string      `toml:"ignored_dirs"`
	Extensions     []string      `toml:"extensions"`
}

// Default returns the configuration MU Kernel ships with when no
// .murc.toml exists yet (the shape `mukernel init` writes out).
func Default() *Config {
	return &Config{
		Store: StoreConfig{Path: ".mu/mubase"},
		Daemon: DaemonConfig{
			ListenAddress: "127.0.0.1:4577",
			PIDFile:       ".mu/daemon.pid",
			ShutdownGrace: 5 * time.Second,
		},
		Context: ContextConfig{
			MaxTokens:   4000,
			ExpandDepth: 1,
			MaxResults:  50,
		},
		Embedding: EmbeddingConfig{
			Provider:   "ollama",
			APIURL:     "http://localhost:11434",
			Model:      "mxbai-embed-large",
			Dimensions: 1024,
			Timeout:    30 * time.Second,
		},
		Watch: WatchConfig{
			DebounceWindow: 100 * time.Millisecond,
			IgnoredDirs:    []string{".git", ".mu", "node_modules", "vendor"},
			Extensions:     []string{".go", ".py", ".ts", ".tsx", ".js", ".jsx"},
		},
	}
}

// Load reads path (falling back to Default() if it does not exist),
// applies MU_* environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read %s: %w", path, kernel.ErrConfig)
		}
	} else if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %v: %w", path, err, kernel.ErrConfig)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save encodes c as TOML and writes it to path, for `mukernel init`.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, kernel.ErrConfig)
	}
	return nil
}

// Validate checks invariants Load cannot otherwise catch at decode time.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty: %w", kernel.ErrConfig)
	}
	if c.Context.MaxTokens <= 0 {
		return fmt.Errorf("context.max_tokens must be positive: %w", kernel.ErrConfig)
	}
	if c.Context.ExpandDepth < 0 {
		return fmt.Errorf("context.expand_depth must not be negative: %w", kernel.ErrConfig)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive: %w", kernel.ErrConfig)
	}
	switch c.Embedding.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("embedding.provider must be ollama or openai, got %q: %w", c.Embedding.Provider, kernel.ErrConfig)
	}
	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" && os.Getenv("MU_EMBEDDING_API_KEY") == "" {
		return fmt.Errorf("embedding.provider openai requires an api key: %w", kernel.ErrConfig)
	}
	return nil
}

// applyEnvOverrides lets MU_* environment variables win over whatever
// .murc.toml set, the way CI and container deployments expect.
func applyEnvOverrides(c *Config) {
	overrideString("MU_STORE_PATH", &c.Store.Path)
	overrideString("MU_DAEMON_LISTEN_ADDRESS", &c.Daemon.ListenAddress)
	overrideString("MU_DAEMON_ADMIN_TOKEN", &c.Daemon.AdminToken)
	overrideInt("MU_CONTEXT_MAX_TOKENS", &c.Context.MaxTokens)
	overrideInt("MU_CONTEXT_EXPAND_DEPTH", &c.Context.ExpandDepth)
	overrideString("MU_EMBEDDING_PROVIDER", &c.Embedding.Provider)
	overrideString("MU_EMBEDDING_API_URL", &c.Embedding.APIURL)
	overrideString("MU_EMBEDDING_MODEL", &c.Embedding.Model)
	overrideString("MU_EMBEDDING_API_KEY", &c.Embedding.APIKey)
	overrideInt("MU_EMBEDDING_DIMENSIONS", &c.Embedding.Dimensions)
}

func overrideString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overrideInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}

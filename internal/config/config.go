// Copyright 2025 Blockscout
//
// Package config loads the YAML configuration shared by the indexer
// and verifier binaries: a ${VAR}/${VAR:-default} substitution pass
// before unmarshaling, an applyDefaults step, and a
// <SERVICE>__<SECTION>__<KEY> environment overlay on top of file-level
// substitution.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration for YAML unmarshaling as a Go duration
// string ("30s", "5m").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

// StreamKind selects which provider and consumer a stream runs.
type StreamKind string

const (
	StreamInterchain StreamKind = "interchain"
	StreamCCTX       StreamKind = "cctx"
	StreamUserOps    StreamKind = "userops"
	StreamCelestia   StreamKind = "celestia"
)

// StreamConfig names one fetcher instance: a stream key plus its
// poll/batch tuning. Kind-specific fields are ignored by the other
// kinds.
type StreamConfig struct {
	Name          string     `yaml:"name"`
	Kind          StreamKind `yaml:"kind"`
	BridgeID      int32      `yaml:"bridge_id"`
	ChainID       int64      `yaml:"chain_id"`
	RPCURL        string     `yaml:"rpc_url"`
	Addresses     []string   `yaml:"addresses"`
	InitTopic     string     `yaml:"init_topic"`
	ConfirmTopic  string     `yaml:"confirm_topic"`
	DeliverTopic  string     `yaml:"deliver_topic"`
	Namespaces    []string   `yaml:"namespaces"`
	AuthToken     string     `yaml:"auth_token"`
	GenesisFloor  uint64     `yaml:"genesis_floor"`
	PollInterval  Duration   `yaml:"poll_interval"`
	BatchSize     int        `yaml:"batch_size"`
	FinalityDepth uint64     `yaml:"finality_depth"`
}

// DatabaseConfig mirrors database.Config's fields for YAML loading.
type DatabaseConfig struct {
	URL             string   `yaml:"url"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxIdleTime Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig configures the TTL cache backing the verification
// coordinator.
type CacheConfig struct {
	Dir string   `yaml:"dir"`
	TTL Duration `yaml:"ttl"`
}

// BufferConfig configures the correlation buffer.
type BufferConfig struct {
	TTL      Duration `yaml:"ttl"`
	Capacity int      `yaml:"capacity"`
}

// RetryConfig configures the retry/backoff harness.
type RetryConfig struct {
	MaxAttempts  int      `yaml:"max_attempts"`
	InitialDelay Duration `yaml:"initial_delay"`
	MaxDelay     Duration `yaml:"max_delay"`
	Exponential  bool     `yaml:"exponential"`
}

// FirestoreConfig configures the status gate's Firestore publisher.
type FirestoreConfig struct {
	Enabled   bool   `yaml:"enabled"`
	ProjectID string `yaml:"project_id"`
}

// MetricsConfig configures the atomic-counter/prometheus mirror.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// LoggingConfig selects log level and output destination.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Output string `yaml:"output"`
}

// Config is the top-level document loaded for any of this module's
// binaries.
type Config struct {
	Environment string           `yaml:"environment"`
	Streams     []StreamConfig   `yaml:"streams"`
	Database    DatabaseConfig   `yaml:"database"`
	Cache       CacheConfig      `yaml:"cache"`
	Buffer      BufferConfig     `yaml:"buffer"`
	Retry       RetryConfig      `yaml:"retry"`
	Firestore   FirestoreConfig  `yaml:"firestore"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Logging     LoggingConfig    `yaml:"logging"`
}

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 4 {
			defaultValue = groups[3]
		}
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// Load reads path, substitutes ${VAR} tokens, unmarshals into Config,
// applies defaults, then overlays any <prefix>__<SECTION>__<KEY>
// environment variables.
func Load(path, envPrefix string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := substituteEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.overlayEnv(envPrefix); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxIdleTime == 0 {
		c.Database.ConnMaxIdleTime = Duration(5 * time.Minute)
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = Duration(time.Hour)
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = Duration(24 * time.Hour)
	}
	if c.Buffer.TTL == 0 {
		c.Buffer.TTL = Duration(10 * time.Minute)
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 5
	}
	if c.Retry.InitialDelay == 0 {
		c.Retry.InitialDelay = Duration(time.Second)
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = Duration(time.Minute)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	for i := range c.Streams {
		if c.Streams[i].Kind == "" {
			c.Streams[i].Kind = StreamInterchain
		}
		if c.Streams[i].PollInterval == 0 {
			c.Streams[i].PollInterval = Duration(15 * time.Second)
		}
		if c.Streams[i].BatchSize == 0 {
			c.Streams[i].BatchSize = 500
		}
	}
}

// overlayEnv applies the <SERVICE>__<SECTION>__<KEY> convention: an
// env var LOGINDEXER__DATABASE__URL overrides database.url for fields
// the operator wants to set purely from the environment without
// editing the YAML file at all.
func (c *Config) overlayEnv(prefix string) error {
	if prefix == "" {
		return nil
	}
	root := prefix + "__"
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, root) {
			continue
		}
		path := strings.Split(strings.TrimPrefix(key, root), "__")
		if err := applyOverride(c, path, value); err != nil {
			return fmt.Errorf("env override %s: %w", key, err)
		}
	}
	return nil
}

// applyOverride handles the small set of scalar fields a deployment
// commonly overrides without templating YAML; additional sections can
// be added here as new services need them.
func applyOverride(c *Config, path []string, value string) error {
	if len(path) != 2 {
		return nil
	}
	section, key := strings.ToUpper(path[0]), strings.ToUpper(path[1])
	switch section {
	case "DATABASE":
		switch key {
		case "URL":
			c.Database.URL = value
		case "MAX_OPEN_CONNS":
			n, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			c.Database.MaxOpenConns = n
		}
	case "LOGGING":
		switch key {
		case "LEVEL":
			c.Logging.Level = value
		case "OUTPUT":
			c.Logging.Output = value
		}
	case "FIRESTORE":
		switch key {
		case "PROJECT_ID":
			c.Firestore.ProjectID = value
		case "ENABLED":
			c.Firestore.Enabled = value == "true"
		}
	}
	return nil
}

// Package config loads the triplesync configuration file.
//
// The file is YAML. Before decoding, the raw document is unified with an
// embedded CUE schema: unknown keys, bad enum values and malformed
// durations are rejected with the CUE error path. Absent keys take the
// values from Default.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Config is the full configuration.
type Config struct {
	DataDir string       `yaml:"data_dir"`
	Backend string       `yaml:"backend"`
	Sync    SyncConfig   `yaml:"sync"`
	Log     LogConfig    `yaml:"log"`
	Relay   RelayConfig  `yaml:"relay"`
	Backup  BackupConfig `yaml:"backup"`
}

// SyncConfig configures the sync engine.
type SyncConfig struct {
	Endpoint       string   `yaml:"endpoint"`
	Interval       Duration `yaml:"interval"`
	RetryDelay     Duration `yaml:"retry_delay"`
	MaxRetryDelay  Duration `yaml:"max_retry_delay"`
	RequestTimeout Duration `yaml:"request_timeout"`
	PushOnChange   bool     `yaml:"push_on_change"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type RelayConfig struct {
	Listen string `yaml:"listen"`
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type BackupConfig struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// Duration is a time.Duration written as "30s" in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DataDir: ".triplesync",
		Backend: "sqlite",
		Sync: SyncConfig{
			Interval:       Duration(30 * time.Second),
			RetryDelay:     Duration(3 * time.Second),
			RequestTimeout: Duration(10 * time.Second),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Relay: RelayConfig{
			Listen: ":8080",
			Driver: "sqlite3",
			DSN:    "relay.db",
		},
		Backup: BackupConfig{
			Prefix: "triplesync/",
		},
	}
}

// Load reads path. A missing file yields Default with a nil error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates data against the schema and decodes it over Default.
func Parse(data []byte) (Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(raw); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate checks a decoded YAML document against the CUE schema.
func Validate(raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	if raw == nil {
		raw = map[string]any{}
	}
	doc := ctx.Encode(raw)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := def.Unify(doc).Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

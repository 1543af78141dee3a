package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brettbedarf/manifestfs/internal/util"
	"gopkg.in/yaml.v3"
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultFsName = "manifestfs"
	DefaultName   = "manifestfs"
	DefaultLogLvl = util.InfoLevel

	// DefaultAttrTimeout is the attribute cache timeout in seconds
	DefaultAttrTimeout = 1.0

	// DefaultEntryTimeout is the directory entry cache timeout in seconds
	DefaultEntryTimeout = 1.0

	// DefaultHTTPTimeout bounds every request made by http backends, in seconds
	DefaultHTTPTimeout = 30.0

	// DefaultDirectIO determines whether to bypass the kernel page cache for file reads
	DefaultDirectIO = false
)

// Config contains runtime configuration values for the filesystem.
type Config struct {
	MountOptions
	LogLvl       util.LogLevel `validate:"gte=0,lte=4"`
	AttrTimeout  float64       `validate:"gte=0"` // Attribute cache timeout in seconds (Default 1.0)
	EntryTimeout float64       `validate:"gte=0"` // Directory entry cache timeout in seconds (Default 1.0)
	HTTPTimeout  float64       `validate:"gt=0"`  // Timeout of a single http backend request in seconds (Default 30.0)
	DirectIO     bool          // Whether to bypass the page cache for file reads (Default false)
}

// AttrTTL returns AttrTimeout as a duration
func (c *Config) AttrTTL() time.Duration {
	return secondsToDuration(c.AttrTimeout)
}

// EntryTTL returns EntryTimeout as a duration
func (c *Config) EntryTTL() time.Duration {
	return secondsToDuration(c.EntryTimeout)
}

// HTTPTimeoutDuration returns HTTPTimeout as a duration
func (c *Config) HTTPTimeoutDuration() time.Duration {
	return secondsToDuration(c.HTTPTimeout)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	FsName       *string  `yaml:"fs_name,omitempty" json:"fs_name,omitempty"`
	Name         *string  `yaml:"name,omitempty" json:"name,omitempty"`
	AllowOther   *bool    `yaml:"allow_other,omitempty" json:"allow_other,omitempty"`
	LogLvl       *int     `yaml:"verbose,omitempty" json:"verbose,omitempty"` // CLI verbosity 1 (error) to 5 (trace)
	AttrTimeout  *float64 `yaml:"attr_timeout,omitempty" json:"attr_timeout,omitempty"`
	EntryTimeout *float64 `yaml:"entry_timeout,omitempty" json:"entry_timeout,omitempty"`
	HTTPTimeout  *float64 `yaml:"http_timeout,omitempty" json:"http_timeout,omitempty"`
	DirectIO     *bool    `yaml:"direct_io,omitempty" json:"direct_io,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		MountOptions: MountOptions{
			FsName: DefaultFsName,
			Name:   DefaultName,
		},
		LogLvl:       DefaultLogLvl,
		AttrTimeout:  DefaultAttrTimeout,
		EntryTimeout: DefaultEntryTimeout,
		HTTPTimeout:  DefaultHTTPTimeout,
		DirectIO:     DefaultDirectIO,
	}
}

// NewConfig returns the defaults with override merged on top. A nil override yields the defaults.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	c.FsName = util.ValueOr(override.FsName, c.FsName)
	c.Name = util.ValueOr(override.Name, c.Name)
	c.AllowOther = util.ValueOr(override.AllowOther, c.AllowOther)
	if override.LogLvl != nil {
		c.LogLvl = util.VerbosityLevel(*override.LogLvl)
	}
	c.AttrTimeout = util.ValueOr(override.AttrTimeout, c.AttrTimeout)
	c.EntryTimeout = util.ValueOr(override.EntryTimeout, c.EntryTimeout)
	c.HTTPTimeout = util.ValueOr(override.HTTPTimeout, c.HTTPTimeout)
	c.DirectIO = util.ValueOr(override.DirectIO, c.DirectIO)
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new validated Config by merging file overrides with defaults.
func NewConfigFromFile(path string) (*Config, error) {
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	cfg := NewConfig(override)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

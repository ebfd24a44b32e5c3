package link

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const DefaultConfigFile = "cartctl.json"

// Link defaults, matching the cart controller firmware.
const (
	DefaultBaudRate    = 9600
	DefaultReadTimeout = 100 * time.Millisecond
	DefaultSettle      = 100 * time.Millisecond
	DefaultMaxDrain    = 2 * time.Second
)

// Config holds the serial link configuration.
// Framing is always 8 data bits, no parity, one stop bit.
type Config struct {
	Port        string   `json:"port" yaml:"port" toml:"port"`
	BaudRate    int      `json:"baud_rate,omitempty" yaml:"baud_rate,omitempty" toml:"baud_rate,omitempty"`
	ReadTimeout Duration `json:"read_timeout,omitempty" yaml:"read_timeout,omitempty" toml:"read_timeout,omitempty"`
	Settle      Duration `json:"settle_delay,omitempty" yaml:"settle_delay,omitempty" toml:"settle_delay,omitempty"`
	MaxDrain    Duration `json:"max_drain,omitempty" yaml:"max_drain,omitempty" toml:"max_drain,omitempty"`
}

// Duration is a time.Duration written as "100ms" in config files.
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// WithDefaults returns a copy with zero values replaced by the defaults.
func (c Config) WithDefaults() Config {
	if c.BaudRate == 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = Duration(DefaultReadTimeout)
	}
	if c.Settle == 0 {
		c.Settle = Duration(DefaultSettle)
	}
	if c.MaxDrain == 0 {
		c.MaxDrain = Duration(DefaultMaxDrain)
	}
	return c
}

// Validate checks a defaulted config.
func (c Config) Validate() error {
	var errs []string
	if strings.TrimSpace(c.Port) == "" {
		errs = append(errs, "port is required")
	}
	if c.BaudRate <= 0 {
		errs = append(errs, fmt.Sprintf("invalid baud_rate %d", c.BaudRate))
	}
	if c.ReadTimeout <= 0 {
		errs = append(errs, "read_timeout must be positive")
	}
	if c.Settle < 0 {
		errs = append(errs, "settle_delay must not be negative")
	}
	if c.MaxDrain < c.ReadTimeout {
		errs = append(errs, "max_drain must be at least read_timeout")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

// LoadConfigFrom loads configuration from path. The format follows the
// extension: .yaml/.yml, .toml, anything else is JSON.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	switch configFormat(path) {
	case "yaml":
		err = yaml.Unmarshal(data, &cfg)
	case "toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// SaveTo saves configuration to path, in the format implied by its extension.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	switch configFormat(path) {
	case "yaml":
		data, err = yaml.Marshal(c)
	case "toml":
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(c)
		data = buf.Bytes()
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func configFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	}
	return "json"
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dusk-indust/unhcr-mcp/internal/logging"
	"github.com/dusk-indust/unhcr-mcp/internal/unhcr"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultPort is the HTTP listen port when neither a config file nor PORT
// names one.
const DefaultPort = 8080

// fileNames are tried in order; the first one found wins.
var fileNames = []string{"unhcr-mcp.yml", "unhcr-mcp.yaml", "unhcr-mcp.toml"}

// Config holds server settings loaded from unhcr-mcp.yml/.yaml/.toml and the
// environment.
type Config struct {
	BaseURL      string         `yaml:"baseURL,omitempty" toml:"baseURL,omitempty"`
	Timeout      string         `yaml:"timeout,omitempty" toml:"timeout,omitempty"`
	UserAgent    string         `yaml:"userAgent,omitempty" toml:"userAgent,omitempty"`
	DefaultYear  int            `yaml:"defaultYear,omitempty" toml:"defaultYear,omitempty"`
	YearDefaults map[string]int `yaml:"yearDefaults,omitempty" toml:"yearDefaults,omitempty"`
	Addr         string         `yaml:"addr,omitempty" toml:"addr,omitempty"`
	Path         string         `yaml:"path,omitempty" toml:"path,omitempty"`
	LogLevel     string         `yaml:"logLevel,omitempty" toml:"logLevel,omitempty"`
	LogFormat    string         `yaml:"logFormat,omitempty" toml:"logFormat,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaseURL:     unhcr.DefaultBaseURL,
		Timeout:     unhcr.DefaultTimeout.String(),
		DefaultYear: unhcr.DefaultYear,
		Addr:        ":" + strconv.Itoa(DefaultPort),
		Path:        "/mcp",
		LogLevel:    "info",
		LogFormat:   logging.FormatText,
	}
}

// Load reads the first config file found in dir over the defaults. Returns
// the defaults (not an error) if no config file exists.
func Load(dir string) (*Config, error) {
	cfg := Default()
	for _, name := range fileNames {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", name, err)
		}

		if filepath.Ext(name) == ".toml" {
			err = toml.Unmarshal(data, cfg)
		} else {
			err = yaml.Unmarshal(data, cfg)
		}
		if err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", name, err)
		}
		return cfg, nil
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables read through getenv:
// PORT, UNHCR_BASE_URL, UNHCR_DEFAULT_YEAR and LOG_LEVEL.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if port := strings.TrimSpace(getenv("PORT")); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n <= 0 || n > 65535 {
			return fmt.Errorf("config: invalid PORT %q", port)
		}
		c.Addr = ":" + port
	}
	if u := getenv("UNHCR_BASE_URL"); u != "" {
		c.BaseURL = u
	}
	if y := strings.TrimSpace(getenv("UNHCR_DEFAULT_YEAR")); y != "" {
		n, err := strconv.Atoi(y)
		if err != nil {
			return fmt.Errorf("config: invalid UNHCR_DEFAULT_YEAR %q", y)
		}
		c.DefaultYear = n
	}
	if lvl := getenv("LOG_LEVEL"); lvl != "" {
		c.LogLevel = lvl
	}
	return nil
}

// Validate checks the values that cannot be defaulted away.
func (c *Config) Validate() error {
	var errs []error

	if c.BaseURL == "" {
		errs = append(errs, errors.New("baseURL is required"))
	}
	if _, err := c.HTTPTimeout(); err != nil {
		errs = append(errs, err)
	}
	if c.DefaultYear <= 0 {
		errs = append(errs, fmt.Errorf("defaultYear must be positive, got %d", c.DefaultYear))
	}
	if _, err := c.EndpointYearDefaults(); err != nil {
		errs = append(errs, err)
	}
	if c.Path != "" && !strings.HasPrefix(c.Path, "/") {
		errs = append(errs, fmt.Errorf("path must start with '/', got %q", c.Path))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown logFormat %q", c.LogFormat))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// HTTPTimeout parses Timeout. An empty value means the client default.
func (c *Config) HTTPTimeout() (time.Duration, error) {
	if c.Timeout == "" {
		return unhcr.DefaultTimeout, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout must be positive, got %s", d)
	}
	return d, nil
}

// EndpointYearDefaults converts YearDefaults into typed endpoint keys.
func (c *Config) EndpointYearDefaults() (map[unhcr.Endpoint]int, error) {
	out := make(map[unhcr.Endpoint]int, len(c.YearDefaults))
	for name, year := range c.YearDefaults {
		e, err := unhcr.ParseEndpoint(name)
		if err != nil {
			return nil, fmt.Errorf("yearDefaults: %w", err)
		}
		if year <= 0 {
			return nil, fmt.Errorf("yearDefaults: %s: year must be positive, got %d", name, year)
		}
		out[e] = year
	}
	return out, nil
}

// ClientOptions returns the unhcr.Client options described by c. Call
// Validate first; invalid values are skipped here.
func (c *Config) ClientOptions() []unhcr.ClientOption {
	opts := []unhcr.ClientOption{
		unhcr.WithBaseURL(c.BaseURL),
		unhcr.WithUserAgent(c.UserAgent),
		unhcr.WithDefaultYear(c.DefaultYear),
	}
	if d, err := c.HTTPTimeout(); err == nil {
		opts = append(opts, unhcr.WithTimeout(d))
	}
	if m, err := c.EndpointYearDefaults(); err == nil {
		opts = append(opts, unhcr.WithYearDefaults(m))
	}
	return opts
}

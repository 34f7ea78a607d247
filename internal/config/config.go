package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/danmuck/canextract/internal/logging"
)

// ServeConfig configures the HTTP decode service.
type ServeConfig struct {
	Name        string   `toml:"name"`
	Addr        string   `toml:"addr"`
	Schemas     []string `toml:"schemas"`
	CorsOrigins []string `toml:"cors_origins"`
	Metrics     bool     `toml:"metrics"`
	LogLevel    string   `toml:"log_level"`
}

func DefaultServeConfig() ServeConfig {
	return ServeConfig{
		Name:     "canextract",
		Addr:     ":9200",
		Metrics:  true,
		LogLevel: "info",
	}
}

// LoadServeConfig reads a service config. Relative schema paths resolve
// against the config file's directory.
func LoadServeConfig(path string) (ServeConfig, error) {
	cfg := DefaultServeConfig()
	if err := loadToml(path, &cfg); err != nil {
		return ServeConfig{}, err
	}
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "canextract"
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = ":9200"
	}
	dir := filepath.Dir(path)
	for i, p := range cfg.Schemas {
		p = strings.TrimSpace(p)
		if p != "" && !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		cfg.Schemas[i] = p
	}
	if err := ValidateServeConfig(cfg); err != nil {
		return ServeConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateServeConfig(cfg ServeConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("serve config missing name")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("serve config missing addr")
	}
	if len(cfg.Schemas) == 0 {
		return fmt.Errorf("serve config lists no schema files")
	}
	for i, p := range cfg.Schemas {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("schemas[%d] is empty", i)
		}
		if _, err := FormatOf(p); err != nil {
			return fmt.Errorf("schemas[%d]: %w", i, err)
		}
	}
	if cfg.LogLevel != "" {
		if _, ok := logging.ParseLevel(cfg.LogLevel); !ok {
			return fmt.Errorf("unknown log_level %q", cfg.LogLevel)
		}
	}
	return nil
}

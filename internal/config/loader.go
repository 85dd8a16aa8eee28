package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for a conversion run.
// Zero values mean "unspecified" and are replaced by defaults or flags.
type Config struct {
	Model        string `json:"model" yaml:"model" toml:"model"`
	Output       string `json:"output" yaml:"output" toml:"output"`
	Quantization string `json:"quantization" yaml:"quantization" toml:"quantization"`
	OptimizeIOS  bool   `json:"optimize_ios" yaml:"optimize_ios" toml:"optimize_ios"`
	Python       string `json:"python" yaml:"python" toml:"python"`
	MetricsFile  string `json:"metrics_file" yaml:"metrics_file" toml:"metrics_file"`
	LogLevel     string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat    string `json:"log_format" yaml:"log_format" toml:"log_format"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// FromEnv reads MLXCONV_* environment defaults.
func FromEnv() Config {
	return Config{
		Model:        os.Getenv("MLXCONV_MODEL"),
		Output:       os.Getenv("MLXCONV_OUTPUT"),
		Quantization: os.Getenv("MLXCONV_QUANTIZATION"),
		Python:       os.Getenv("MLXCONV_PYTHON"),
		MetricsFile:  os.Getenv("MLXCONV_METRICS_FILE"),
		LogLevel:     os.Getenv("MLXCONV_LOG_LEVEL"),
		LogFormat:    os.Getenv("MLXCONV_LOG_FORMAT"),
	}
}

// Overlay returns base with every non-zero field of over applied on top.
// OptimizeIOS only overlays when true; a file cannot un-set the flag.
func Overlay(base, over Config) Config {
	if over.Model != "" {
		base.Model = over.Model
	}
	if over.Output != "" {
		base.Output = over.Output
	}
	if over.Quantization != "" {
		base.Quantization = over.Quantization
	}
	if over.OptimizeIOS {
		base.OptimizeIOS = true
	}
	if over.Python != "" {
		base.Python = over.Python
	}
	if over.MetricsFile != "" {
		base.MetricsFile = over.MetricsFile
	}
	if over.LogLevel != "" {
		base.LogLevel = over.LogLevel
	}
	if over.LogFormat != "" {
		base.LogFormat = over.LogFormat
	}
	return base
}

// Package config defines server configuration.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Store     StoreConfig     `yaml:"store"`
	Docs      DocsConfig      `yaml:"docs"`
	Highlight HighlightConfig `yaml:"highlight"`
	Survey    SurveyConfig    `yaml:"survey"`
	Panel     PanelConfig     `yaml:"panel"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// StoreConfig selects the durable store backend: "file" keeps one JSON
// document per session under DataDir, "sqlite" keeps them in one database.
type StoreConfig struct {
	Backend    string `yaml:"backend"`
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

type DocsConfig struct {
	Dir           string `yaml:"dir"`
	DefaultDoc    string `yaml:"default_doc"`
	DefaultSource string `yaml:"default_source"`
}

type HighlightConfig struct {
	// MaxSpan caps how many tokens one highlight stroke may cover.
	MaxSpan int      `yaml:"max_span"`
	Palette []string `yaml:"palette"`
}

type SurveyConfig struct {
	DefaultForm     string `yaml:"default_form"`
	DefaultQuestion string `yaml:"default_question"`
}

// Button defines one panel button.
type Button struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
}

type PanelConfig struct {
	DefaultPanel string   `yaml:"default_panel"`
	Buttons      []Button `yaml:"buttons"`
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 9988,
		},
		Log: LogConfig{
			Level: "info",
		},
		Store: StoreConfig{
			Backend:    "file",
			DataDir:    "data",
			SQLitePath: "data/hilite.db",
		},
		Docs: DocsConfig{
			Dir:           "wwwdocs",
			DefaultDoc:    "doc1",
			DefaultSource: "text.txt",
		},
		Highlight: HighlightConfig{
			MaxSpan: 8,
			Palette: []string{"yellow", "green", "blue", "pink", "orange"},
		},
		Survey: SurveyConfig{
			DefaultForm:     "feedback",
			DefaultQuestion: "Share your thoughts with us.",
		},
		Panel: PanelConfig{
			DefaultPanel: "main",
			Buttons: []Button{
				{ID: "suspension", Label: "Suspension"},
				{ID: "extension", Label: "Extension"},
				{ID: "reversal", Label: "Reversal"},
				{ID: "speed", Label: "Speed"},
			},
		},
	}

	if path := os.Getenv("HILITE_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("HILITE_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("HILITE_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid HILITE_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if level := os.Getenv("HILITE_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if backend := os.Getenv("HILITE_STORE_BACKEND"); backend != "" {
		cfg.Store.Backend = backend
	}
	if dir := os.Getenv("HILITE_DATA_DIR"); dir != "" {
		cfg.Store.DataDir = dir
	}
	if path := os.Getenv("HILITE_SQLITE_PATH"); path != "" {
		cfg.Store.SQLitePath = path
	}
	if dir := os.Getenv("HILITE_DOCS_DIR"); dir != "" {
		cfg.Docs.Dir = dir
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Store.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("unknown store backend %q (want file or sqlite)", c.Store.Backend)
	}
	if c.Highlight.MaxSpan < 1 {
		return fmt.Errorf("highlight.max_span must be at least 1")
	}
	if len(c.Highlight.Palette) == 0 {
		return fmt.Errorf("highlight.palette cannot be empty")
	}
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

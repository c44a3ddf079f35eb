package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML configuration of the pinmark service.
type fileConfig struct {
	// Listen is the overlay API address.
	Listen string `yaml:"listen"`

	// DB is the SQLite path holding session state and configuration.
	DB string `yaml:"db"`

	// PageURL is the reviewed app. When set, pinmark opens the page and
	// enables server-side element capture.
	PageURL string `yaml:"page_url"`

	Browser browserSection `yaml:"browser"`

	// MCP serves the agent tools on stdio.
	MCP bool `yaml:"mcp"`
}

type browserSection struct {
	// Remote is the WebSocket URL of an already-running Chrome.
	// Empty = launch a local one.
	Remote   string `yaml:"remote"`
	Headless bool   `yaml:"headless"`
	Stealth  bool   `yaml:"stealth"`
}

func (c *fileConfig) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":7333"
	}
	if c.DB == "" {
		c.DB = "pinmark.db"
	}
}

// loadConfigFile reads a YAML configuration file.
func loadConfigFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

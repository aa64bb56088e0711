package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML configuration file. Flags given on the command
// line take precedence over its values.
type fileConfig struct {
	Output       string   `yaml:"output"`
	FHIRPath     []string `yaml:"fhirpath"`
	PackageFiles []string `yaml:"packageFiles"`
	Definitions  []string `yaml:"definitions"`
	FHIRVersion  string   `yaml:"fhirVersion"`
	BaseURL      string   `yaml:"baseUrl"`
	ResourceType string   `yaml:"resourceType"`
	MaxDepth     int      `yaml:"maxDepth"`
	Strict       bool     `yaml:"strict"`
	Workers      int      `yaml:"workers"`
	Bundle       bool     `yaml:"bundleEntries"`
	Color        string   `yaml:"color"`
	LogLevel     string   `yaml:"logLevel"`
	Verbose      bool     `yaml:"verbose"`
}

func loadConfigFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &cfg, nil
}

func applyConfigFile(cli *CLI, path string) error {
	cfg, err := loadConfigFile(path)
	if err != nil {
		return err
	}
	cfg.apply(cli)
	return nil
}

// apply copies values into cli where the flag was left at its default.
func (cfg *fileConfig) apply(cli *CLI) {
	if cfg.Output != "" && cli.Output == "text" {
		cli.Output = cfg.Output
	}
	if cfg.LogLevel != "" && (cli.LogLevel == "warn" || cli.LogLevel == "") {
		cli.LogLevel = cfg.LogLevel
	}
	if cfg.Color != "" && cli.Color == "auto" {
		cli.Color = cfg.Color
	}
	if len(cli.FHIRPath) == 0 {
		cli.FHIRPath = cfg.FHIRPath
	}
	if len(cli.PackageFiles) == 0 {
		cli.PackageFiles = cfg.PackageFiles
	}
	if len(cli.Definitions) == 0 {
		cli.Definitions = cfg.Definitions
	}
	if cli.FHIRVersion == "" {
		cli.FHIRVersion = cfg.FHIRVersion
	}
	if cli.BaseURL == "" {
		cli.BaseURL = cfg.BaseURL
	}
	if cli.ResourceType == "" {
		cli.ResourceType = cfg.ResourceType
	}
	if cli.MaxDepth == 0 {
		cli.MaxDepth = cfg.MaxDepth
	}
	if cli.Workers == 0 {
		cli.Workers = cfg.Workers
	}
	cli.Strict = cli.Strict || cfg.Strict
	cli.Bundle = cli.Bundle || cfg.Bundle
	cli.Verbose = cli.Verbose || cfg.Verbose
}

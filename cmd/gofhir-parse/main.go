// Package main implements the gofhir-parse CLI tool.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/gofhir/parser/pkg/batch"
	"github.com/gofhir/parser/pkg/document"
	"github.com/gofhir/parser/pkg/element"
	"github.com/gofhir/parser/pkg/loader"
	"github.com/gofhir/parser/pkg/logger"
	"github.com/gofhir/parser/pkg/parser"
	"github.com/gofhir/parser/pkg/query"
	"github.com/gofhir/parser/pkg/registry"
)

const version = "0.1.0"

// CLI defines the command-line interface.
type CLI struct {
	Files []string `arg:"" optional:"" help:"FHIR JSON files or glob patterns. Use - to read stdin."`

	Output       string   `short:"o" enum:"text,json,yaml,tree,fhir" default:"text" help:"Output format: text, json, yaml, tree, fhir."`
	FHIRPath     []string `name:"fhirpath" short:"e" help:"FHIRPath expression evaluated against every parsed resource."`
	PackageFiles []string `name:"package-file" help:"FHIR package .tgz to load StructureDefinitions from."`
	Definitions  []string `name:"definition" help:"StructureDefinition JSON file to load."`
	FHIRVersion  string   `name:"fhir-version" help:"Load StructureDefinitions from the cached core package of this FHIR version."`
	BaseURL      string   `name:"base-url" help:"Base URL relative extension URLs resolve against."`
	ResourceType string   `name:"resource-type" help:"Reject documents of any other resource type."`
	MaxDepth     int      `name:"max-depth" help:"Maximum nesting depth (default ${default_depth})."`
	Strict       bool     `help:"Abort each document on its first diagnostic."`
	Workers      int      `short:"w" help:"Parallel workers (default: number of CPUs)."`
	Bundle       bool     `name:"bundle-entries" help:"Treat each input as a Bundle and report every entry resource separately."`
	Color        string   `enum:"auto,always,never" default:"auto" help:"Colorize text output: auto, always, never."`
	Config       string   `short:"c" type:"existingfile" help:"YAML configuration file."`
	LogLevel     string   `name:"log-level" enum:"debug,info,warn,error,none" default:"warn" help:"Log level on stderr: debug, info, warn, error, none."`
	Verbose      bool     `short:"v" help:"Log debug output to stderr (same as --log-level=debug)."`
	Version      bool     `help:"Show version."`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("gofhir-parse"),
		kong.Description("Parse FHIR JSON resources, reconciling primitive values with their _ sidecars."),
		kong.UsageOnError(),
		kong.Vars{"default_depth": strconv.Itoa(document.DefaultMaxDepth)},
	)

	if cli.Version {
		fmt.Printf("gofhir-parse v%s\n", version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	os.Exit(run(ctx, &cli, os.Stdout, os.Stderr))
}

func run(ctx context.Context, cli *CLI, stdout, stderr io.Writer) int {
	if cli.Config != "" {
		if err := applyConfigFile(cli, cli.Config); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}
	if len(cli.Files) == 0 {
		fmt.Fprintln(stderr, "Error: no input files (use - for stdin)")
		return 1
	}

	configureColor(cli.Color, stdout)

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if cli.Verbose {
		level = logger.LevelDebug
	}
	log := logger.New(stderr, level)

	defs, err := loadDefinitions(ctx, cli, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	p := parser.New(
		parser.WithServerBaseURL(cli.BaseURL),
		parser.WithResourceType(cli.ResourceType),
		parser.WithMaxDepth(cli.MaxDepth),
		parser.WithStrictMode(cli.Strict),
		parser.WithLogger(log),
	)

	jobs, readFailed := readJobs(cli.Files, os.Stdin, stderr)

	start := time.Now()
	var br *batch.Result
	if cli.Bundle {
		br = streamBundles(ctx, p, element.NewState(defs), jobs, log)
	} else {
		metrics := batch.NewMetrics()
		br = batch.New(p, element.NewState(defs), cli.Workers).WithMetrics(metrics).ParseAll(ctx, jobs)
		s := metrics.Snapshot()
		log.Debug("parse times: avg %s, min %s, max %s; %d fatal, %d error, %d warning issue(s)",
			s.AvgParseTime, s.MinParseTime, s.MaxParseTime, s.FatalTotal, s.ErrorsTotal, s.WarningsTotal)
	}
	log.Debug("parsed %d document(s) in %s", br.TotalJobs, time.Since(start).Round(time.Microsecond))

	reports := buildReports(br, query.New(), cli.FHIRPath)
	if err := render(stdout, cli.Output, reports); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if readFailed || br.HasErrors() {
		return 1
	}
	return 0
}

// configureColor sets the global color mode. auto disables color unless w
// is a terminal.
func configureColor(mode string, w io.Writer) {
	switch mode {
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	default:
		f, ok := w.(*os.File)
		color.NoColor = !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
	}
}

// loadDefinitions builds the element definitions: the built-in table,
// preceded by a registry when any StructureDefinition source is given.
func loadDefinitions(ctx context.Context, cli *CLI, log *logger.Logger) (element.Definitions, error) {
	if len(cli.PackageFiles) == 0 && len(cli.Definitions) == 0 && cli.FHIRVersion == "" {
		return element.DefaultDefinitions(), nil
	}

	l := loader.NewLoader("").WithLogger(log)
	var packages []*loader.Package

	if cli.FHIRVersion != "" {
		pkgs, err := l.LoadVersion(cli.FHIRVersion)
		if err != nil {
			return nil, err
		}
		packages = append(packages, pkgs...)
	}

	for _, path := range cli.PackageFiles {
		var (
			pkg *loader.Package
			err error
		)
		if isURL(path) {
			pkg, err = l.LoadFromURL(ctx, path)
		} else {
			pkg, err = l.LoadFromTgz(path)
		}
		if err != nil {
			return nil, err
		}
		packages = append(packages, pkg)
	}

	if len(cli.Definitions) > 0 {
		resources := make([][]byte, 0, len(cli.Definitions))
		for _, path := range cli.Definitions {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read definition: %w", err)
			}
			resources = append(resources, data)
		}
		pkg, err := l.LoadFromResources(resources)
		if err != nil {
			return nil, err
		}
		packages = append(packages, pkg)
	}

	reg := registry.New()
	if err := reg.LoadFromPackages(packages); err != nil {
		return nil, err
	}
	log.Debug("registry: %d StructureDefinitions, %d types", reg.Count(), reg.TypeCount())

	return element.Chain(reg, element.DefaultDefinitions()), nil
}

func isURL(s string) bool {
	return len(s) > 8 && (s[:7] == "http://" || s[:8] == "https://")
}

// readJobs expands glob patterns and reads every input. Unreadable inputs
// are reported to stderr and flagged in the returned bool.
func readJobs(patterns []string, stdin io.Reader, stderr io.Writer) ([]batch.Job, bool) {
	var (
		jobs   []batch.Job
		failed bool
	)

	for _, pattern := range patterns {
		if pattern == "-" {
			data, err := io.ReadAll(stdin)
			if err != nil {
				fmt.Fprintf(stderr, "Error reading stdin: %v\n", err)
				failed = true
				continue
			}
			jobs = append(jobs, batch.Job{ID: "stdin", Data: data})
			continue
		}

		matches, err := filepath.Glob(pattern)
		if err != nil {
			fmt.Fprintf(stderr, "Error with pattern '%s': %v\n", pattern, err)
			failed = true
			continue
		}
		if len(matches) == 0 {
			fmt.Fprintf(stderr, "No files match pattern: %s\n", pattern)
			failed = true
			continue
		}

		for _, path := range matches {
			data, err := os.ReadFile(path)
			if err != nil {
				fmt.Fprintf(stderr, "Error reading %s: %v\n", path, err)
				failed = true
				continue
			}
			jobs = append(jobs, batch.Job{ID: path, Data: data})
		}
	}
	return jobs, failed
}

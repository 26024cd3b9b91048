package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"linkprobe/pkg/config"
	"linkprobe/pkg/crawl"
)

const version = "0.4.1"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "crawl":
		runCrawl(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "list-seeds":
		runListSeeds(os.Args[2:])
	case "version":
		fmt.Printf("linkprobe %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`linkprobe - Site crawler for link regression comparison

Usage:
  linkprobe <command> [options]

Commands:
  crawl       Crawl the configured site and write per-seed reports
  validate    Validate configuration file
  list-seeds  List configured seeds
  version     Show version info

Run 'linkprobe <command> -h' for command-specific help.`)
}

// runCrawl handles the crawl subcommand
func runCrawl(args []string) {
	fs := flag.NewFlagSet("crawl", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	outDir := fs.String("out", "", "Output directory (overrides config)")
	seedKey := fs.String("seed", "", "Crawl only the seed with this key")
	verbosity := fs.Int("verbosity", -1, "Verbosity 0-4 (overrides config)")
	limit := fs.Int("limit", -1, "Max pages parsed per seed, 0 = unlimited (overrides config)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: linkprobe crawl [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  linkprobe crawl -config site.yaml\n")
		fmt.Fprintf(os.Stderr, "  linkprobe crawl -seed /docs/ -verbosity 3\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(executeCrawl(*configFile, *outDir, *seedKey, *verbosity, *limit))
}

// executeCrawl contains the main crawl logic. Returns the process exit code.
func executeCrawl(configFile, outDir, seedKey string, verbosity, limit int) int {
	appCfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		return 1
	}
	if verbosity >= 0 {
		appCfg.Verbosity = verbosity
	}
	if limit >= 0 {
		appCfg.Limit = limit
	}
	if outDir != "" {
		appCfg.OutputDir = outDir
	}

	log := setupLogger(appCfg.Verbosity)

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		log.Errorf("Config error: %v", err)
		return 1
	}

	seeds := crawl.SeedsFromConfig(appCfg.Seeds)
	if seedKey != "" {
		var selected []crawl.Seed
		for _, s := range seeds {
			if s.Key() == seedKey {
				selected = append(selected, s)
			}
		}
		if len(selected) == 0 {
			log.Errorf("Seed '%s' not found in config file '%s'", seedKey, configFile)
			return 1
		}
		seeds = selected
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		sig := <-sigChan
		log.Warnf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig = <-sigChan:
			log.Warnf("Received second signal %v, forcing exit", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown period exceeded, forcing exit")
			os.Exit(1)
		}
	}()

	logEntry := log.WithField("component", "crawl")
	engine, err := crawl.New(appCfg, seeds, logEntry)
	if err != nil {
		log.Errorf("Failed to initialize engine: %v", err)
		return 1
	}

	result := engine.Run(ctx)

	writer := crawl.NewOutputWriter(appCfg.OutputDir, logEntry)
	if err := writer.Write(result); err != nil {
		log.Errorf("Failed to write output: %v", err)
		return 1
	}

	if ctx.Err() != nil {
		log.Warn("Crawl cancelled before completion")
		return 1
	}
	if result.Failed() {
		for _, s := range result.Seeds {
			if s.Err != nil && !errors.Is(s.Err, context.Canceled) {
				log.Errorf("Seed '%s' failed: %v", s.Seed, s.Err)
			}
		}
		return 1
	}

	log.Info("Crawl completed successfully.")
	return 0
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: linkprobe validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doValidate(*configFile, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to the provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, "Configuration valid.")
	return 0
}

// runListSeeds handles the list-seeds subcommand
func runListSeeds(args []string) {
	fs := flag.NewFlagSet("list-seeds", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: linkprobe list-seeds [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doListSeeds(*configFile, os.Stdout, os.Stderr))
}

// doListSeeds lists seeds and writes output to the provided writers.
// Returns exit code (0 = success, 1 = error).
func doListSeeds(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Seeds in %s (site: %s):\n\n", configPath, appCfg.SiteURL)
	for _, seed := range appCfg.Seeds {
		fmt.Fprintf(stdout, "  %s\n", seed.Key())
		fmt.Fprintf(stdout, "    Path: %s\n", seed.Path)
		switch {
		case seed.FormLogin != nil:
			fmt.Fprintf(stdout, "    Auth: form login via %s\n", seed.FormLogin.Path)
		case seed.BasicAuth != nil:
			fmt.Fprintf(stdout, "    Auth: basic (%s)\n", seed.BasicAuth.Username)
		default:
			fmt.Fprintln(stdout, "    Auth: none")
		}
		fmt.Fprintln(stdout)
	}
	return 0
}

// setupLogger creates a logrus.Logger tuned to the 0-4 verbosity scale
func setupLogger(verbosity int) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(config.VerbosityLevel(verbosity))
	return log
}

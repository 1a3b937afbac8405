package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by the CLI. A .env file in the working
// directory is loaded first; variables already set win.
const (
	envLogLevel  = "CODEMODEL_LOG_LEVEL"
	envLogFormat = "CODEMODEL_LOG_FORMAT"
	envModels    = "CODEMODEL_MODELS"
)

// config holds the global options.
type config struct {
	LogLevel  string
	LogFormat string
	Models    []string
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitList splits a comma separated list, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseGlobal reads the global flags and returns the remaining arguments.
func parseGlobal(args []string, output io.Writer) (*config, []string, error) {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("codemodel", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() { printUsage(output) }
	level := fs.String("log-level", envOr(envLogLevel, "warn"), "Logging level: debug, info, warn or error.")
	format := fs.String("log-format", envOr(envLogFormat, "text"), "Log output format: text or json.")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	cfg := &config{
		LogLevel:  strings.ToLower(*level),
		LogFormat: strings.ToLower(*format),
		Models:    splitList(os.Getenv(envModels)),
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, nil, fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, nil, fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}
	return cfg, fs.Args(), nil
}

// newLogger builds the logger selected by cfg.
func newLogger(cfg *config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// modelsFlag registers -models on fs. Its default comes from the
// environment.
func modelsFlag(fs *flag.FlagSet, cfg *config) *string {
	return fs.String("models", strings.Join(cfg.Models, ","), "Comma separated package files (.json, .yaml).")
}

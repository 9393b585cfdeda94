// ABOUTME: Entry point for the opsgate privileged command-execution gateway
// ABOUTME: Parses one token, drives the pipeline, emits a single envelope on stdout

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/2389/opsgate/internal/config"
	"github.com/2389/opsgate/internal/envelope"
	"github.com/2389/opsgate/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

// getConfigPath returns the path to the gateway config file.
// Priority: OPSGATE_CONFIG env var > /etc/opsgate/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("OPSGATE_CONFIG"); envPath != "" {
		return envPath
	}
	return filepath.Join("/etc", "opsgate", "gateway.yaml")
}

func main() {
	var (
		configPath  = pflag.String("config", "", "config file path (default: /etc/opsgate/gateway.yaml)")
		showVersion = pflag.Bool("version", false, "print version and exit")
	)
	pflag.Parse()

	if *showVersion {
		fmt.Println("opsgate", version)
		return
	}

	os.Exit(run(*configPath, pflag.Args()))
}

// run loads config, resolves the token, and drives one invocation. It always
// writes exactly one envelope to stdout and returns the envelope's code as
// the process exit code; stdout carries nothing else.
func run(configPath string, args []string) int {
	if configPath == "" {
		configPath = getConfigPath()
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return emit(envelope.Newf(envelope.StatusInternal, "configuration error"), slog.Default(), err)
	}

	logger := setupLogger(cfg.Logging)

	rawToken, err := resolveToken(args)
	if err != nil {
		return emit(envelope.New(envelope.StatusInvalid, err.Error()), logger, nil)
	}

	gw := gateway.New(cfg, logger)
	defer gw.Close()

	result := gw.Invoke(context.Background(), rawToken)
	return emit(result, logger, nil)
}

// loadConfig loads the file at path, falling back to defaults when the file
// does not exist (the gateway must still answer with a proper envelope on a
// bare host).
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(path)
}

// resolveToken picks the token string: the single positional argument, or
// the SSH forced-command environment when invoked via an authorized_keys
// command= entry.
func resolveToken(args []string) (string, error) {
	switch len(args) {
	case 0:
		if forced := os.Getenv("SSH_ORIGINAL_COMMAND"); forced != "" {
			return forced, nil
		}
		return "", fmt.Errorf("no token given: pass it as the argument or via SSH_ORIGINAL_COMMAND")
	case 1:
		return args[0], nil
	default:
		return "", fmt.Errorf("expected exactly one token argument, got %d", len(args))
	}
}

// emit writes the envelope to stdout and returns its exit code. Internal
// detail goes to the log, never to the caller.
func emit(e *envelope.Envelope, logger *slog.Logger, cause error) int {
	if cause != nil {
		logger.Error("invocation aborted", "error", cause)
	}
	if err := e.Write(os.Stdout); err != nil {
		logger.Error("writing envelope", "error", err)
		return envelope.StatusInternal.Code()
	}
	return e.Code
}

// setupLogger builds the process logger. Logs go to stderr: stdout is
// reserved for the result envelope.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = &colorHandler{level: level}
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aelwen/novelcrawler/internal/version"
)

var (
	cfgFile  string
	homeDir  string
	logLevel string
)

// ParseLogLevel converts a string log level to slog.Level. Supports
// debug, info, warn, error (case-insensitive).
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: must be debug, info, warn, or error", level)
	}
}

// GetLogLevel resolves the effective log level: --log-level flag, then
// NOVELCRAWLER_LOG_LEVEL, then "info".
func GetLogLevel() slog.Level {
	level := logLevel
	if level == "" {
		level = os.Getenv("NOVELCRAWLER_LOG_LEVEL")
	}
	if level == "" {
		level = "info"
	}
	parsed, err := ParseLogLevel(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v, using info\n", err)
		return slog.LevelInfo
	}
	return parsed
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: GetLogLevel(),
	}))
}

var rootCmd = &cobra.Command{
	Use:     "novelcrawler",
	Short:   "Multi-site web novel crawler and packager",
	Version: version.GitRelease,
	Long: `novelcrawler downloads a web novel's chapters from a pluggable site
module, stores them in a durable keyed chapter store, and exports the
result to TXT or EPUB.

Commands:
  download  run the producer/worker/storage pipeline for one book
  repair    walk a book's catalog fixing missing chapter ids
  export    render a downloaded book to TXT or EPUB`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.novelcrawler/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "novelcrawler home directory (default: ~/.novelcrawler)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn, error (default: info, env: NOVELCRAWLER_LOG_LEVEL)",
	)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(exportCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("novelcrawler %s\n", version.GitRelease)
		fmt.Printf("  Go:     %s\n", version.GoInfo)
		fmt.Printf("  Commit: %s\n", version.GitCommit)
		fmt.Printf("  Date:   %s\n", version.GitCommitDate)
	},
}

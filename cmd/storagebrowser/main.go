package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/storagebrowser/internal/config"
	"github.com/openmined/storagebrowser/internal/utils"
	"github.com/openmined/storagebrowser/internal/version"
	"github.com/spf13/cobra"
)

// stderr level, raised by --debug
var logLevel = new(slog.LevelVar)

var rootCmd = &cobra.Command{
	Use:           "storagebrowser",
	Short:         "Browse, upload, move and copy files on a storage server",
	Version:       version.Detailed(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			logLevel.Set(slog.LevelDebug)
		}
	},
}

func init() {
	logLevel.Set(slog.LevelWarn)

	addGlobalFlags(rootCmd)
}

func addGlobalFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.SortFlags = false
	flags.StringP("config", "c", config.DefaultConfigPath, "config file")
	flags.StringP("server", "s", "", "url of the storage server")
	flags.String("storage-type", "", "storage backend kind (local or s3)")
	flags.StringP("datadir", "d", "", "directory holding the session and logs")
	flags.StringP("output", "o", outputText, "output format (text, json or yaml)")
	flags.Bool("debug", false, "verbose logging")
}

func main() {
	// a .env next to the working directory may carry STORAGEBROWSER_* values
	_ = godotenv.Load()

	file, err := openLogFile(config.DefaultLogFilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	stderrHandler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stderrHandler, fileHandler)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(err)
		stop()
		os.Exit(1)
	}
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

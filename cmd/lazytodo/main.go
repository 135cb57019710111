// Package main is the lazytodo binary: a terminal todo manager with an
// optional web interface and a set of scripting subcommands.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Joseda-hg/lazytodo/internal/config"
	"github.com/Joseda-hg/lazytodo/internal/db"
	"github.com/Joseda-hg/lazytodo/internal/logging"
	"github.com/Joseda-hg/lazytodo/internal/tui"
	"github.com/Joseda-hg/lazytodo/internal/web"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "lazytodo"

	shutdownTimeout = 5 * time.Second
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by the root command and every subcommand.
type globalFlags struct {
	configPath string
	dbPath     string
	logLevel   string
}

func rootCmd() *cobra.Command {
	var (
		globals globalFlags
		webFlag bool
		webOnly bool
		port    int
	)

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Terminal todo manager",
		Long:          "lazytodo keeps a local todo list and shows it in a terminal UI, with an optional web interface.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), globals, webFlag, webOnly, port)
		},
	}

	cmd.PersistentFlags().StringVar(&globals.configPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&globals.dbPath, "db", "", "sqlite db path")
	cmd.PersistentFlags().StringVar(&globals.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&webFlag, "web", false, "enable web server")
	cmd.Flags().BoolVar(&webOnly, "web-only", false, "run web server only")
	cmd.Flags().IntVar(&port, "port", 0, "web server port")

	cmd.AddCommand(
		listCmd(&globals),
		addCmd(&globals),
		toggleCmd(&globals),
		removeCmd(&globals),
		statsCmd(&globals),
		exportCmd(&globals),
		importCmd(&globals),
		versionCmd(),
	)

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
		},
	}
}

// loadConfig resolves the config file, applies flag overrides and fills
// the paths that default to the config directory.
func loadConfig(globals globalFlags) (config.Config, string, error) {
	cfgPath := globals.configPath
	if cfgPath == "" {
		defaultPath, err := config.DefaultConfigPath()
		if err != nil {
			return config.Config{}, "", err
		}
		cfgPath = defaultPath
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, "", err
	}

	if globals.dbPath != "" {
		cfg.DBPath = globals.dbPath
	}
	if globals.logLevel != "" {
		cfg.LogLevel = globals.logLevel
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(filepath.Dir(cfgPath), "lazytodo.db")
	}
	if cfg.LogPath == "" {
		cfg.LogPath = filepath.Join(filepath.Dir(cfgPath), "lazytodo.log")
	}
	if cfg.WebPort == 0 {
		cfg.WebPort = 8080
	}
	return cfg, cfgPath, nil
}

// validateConfig rejects settings that would make every later run fail, so
// they are never written back to the config file.
func validateConfig(cfg config.Config) (slog.Level, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return level, err
	}
	if cfg.WebPort < 1 || cfg.WebPort > 65535 {
		return level, fmt.Errorf("invalid web port %d", cfg.WebPort)
	}
	return level, nil
}

func openStore(ctx context.Context, dbPath string, logger *slog.Logger) (*db.Store, func(), error) {
	if err := config.EnsureDir(dbPath); err != nil {
		return nil, nil, err
	}

	sqlDB, err := db.Open(dbPath)
	if err != nil {
		return nil, nil, err
	}

	store, err := db.NewStore(ctx, sqlDB, db.WithLogger(logger))
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, err
	}
	return store, func() { _ = sqlDB.Close() }, nil
}

func run(ctx context.Context, globals globalFlags, webFlag, webOnly bool, port int) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, cfgPath, err := loadConfig(globals)
	if err != nil {
		return err
	}
	if webFlag || webOnly {
		cfg.WebEnabled = true
	}
	if port != 0 {
		cfg.WebPort = port
	}
	level, err := validateConfig(cfg)
	if err != nil {
		return err
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		return err
	}

	if webOnly {
		logger := logging.New(os.Stderr, level)
		slog.SetDefault(logger)
		return runWebOnly(ctx, cfg, logger)
	}

	// The terminal UI owns the screen, so logs go to a file.
	logger, closeLog, err := logging.OpenFile(cfg.LogPath, level)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()
	slog.SetDefault(logger)

	store, closeStore, err := openStore(ctx, cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.WebEnabled {
		server := newHTTPServer(cfg, store, logger)
		go func() {
			logger.Info("web server running", "addr", "http://localhost"+server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("web server", "error", err)
			}
		}()
		defer shutdown(server, logger)
	}

	return tui.Run(store, tui.Options{Logger: logger, DarkDefault: cfg.DarkModeDefault})
}

func runWebOnly(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	server := newHTTPServer(cfg, store, logger)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("web server running", "addr", "http://localhost"+server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down web server")
		shutdown(server, logger)
		return nil
	}
}

func newHTTPServer(cfg config.Config, store *db.Store, logger *slog.Logger) *http.Server {
	handler := web.NewServer(store,
		web.WithLogger(logger),
		web.WithDarkDefault(cfg.DarkModeDefault),
	).Handler()
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func shutdown(server *http.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("web server shutdown", "error", err)
	}
}

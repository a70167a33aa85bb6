package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rigveda-go/internal/config"
	"rigveda-go/internal/logging"
)

// version is set at build time.
var version = "dev"

var (
	// Global flags
	verbose    bool
	configPath string
	apiURL     string

	cfg    *config.Config
	logger *zap.Logger
	rt     *app
)

var rootCmd = &cobra.Command{
	Use:   "rigveda",
	Short: "Read, search and listen to the Rigveda in the terminal",
	Long: `rigveda is a terminal reader for the Rigveda backed by the RigVeda API.

Run without arguments to open the reader. Mandalas, suktas and riks are
browsed with vim-style keys, narration follows along verse by verse, and
the assistant answers questions with cited riks.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if rt != nil {
			return nil
		}
		return setup(cmd.Context())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		teardown()
	},
	RunE: runReader,
}

func setup(ctx context.Context) error {
	path := configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return err
		}
	}
	var err error
	cfg, err = config.Load(path)
	if err != nil {
		return err
	}
	if apiURL != "" {
		cfg.API.BaseURL = apiURL
	}

	logger, err = logging.New(cfg.Logging.File, cfg.Logging.Level, verbose)
	if err != nil {
		return err
	}
	logger.Debug("config loaded", zap.String("path", path), zap.String("api", cfg.API.BaseURL))

	rt, err = newApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	return nil
}

func teardown() {
	if rt != nil {
		if err := rt.Close(); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
		rt = nil
	}
	if logger != nil {
		_ = logger.Sync()
	}
}

// runReader opens the interactive reader.
func runReader(cmd *cobra.Command, args []string) error {
	svc := rt.services()
	defer svc.Close()

	m := newModel(svc, cfg.Theme, loadState())
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	unsubscribe := svc.subscribe(p.Send)
	defer unsubscribe()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("reader: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "RigVeda API base URL (or set RIGVEDA_API_URL)")
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

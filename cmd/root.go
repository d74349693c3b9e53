// Package cmd provides the kbtrial command-line interface.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kbtrial/internal/config"
	"kbtrial/internal/logging"
	"kbtrial/internal/models"
)

var (
	projectRoot  string
	protocolPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kbtrial",
	Short: "Run keyboard-response trials in the browser or the terminal.",
	Long: `kbtrial presents a protocol of keyboard-response trials, records ` +
		`the first valid key press and its reaction time for each trial, and ` +
		`stores the results.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&projectRoot, "root", ".",
		"project root containing config/ and .env")
	rootCmd.PersistentFlags().StringVar(&protocolPath, "protocol", "",
		"protocol YAML file (overrides protocol.path)")
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// app is what every command needs before doing its work.
type app struct {
	store *config.Store
	cfg   config.Config
	log   *zap.Logger
}

// bootstrap loads the configuration and builds the logger. console overrides
// logging.console for commands that own the terminal.
func bootstrap(console *bool) (*app, error) {
	store, err := config.Load(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg := *store.Get()
	if console != nil {
		cfg.Logging.Console = *console
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.Path != ":memory:" {
		cfg.Database.Path = resolve(cfg.Database.Path)
	}

	log, err := logging.Init(projectRoot, cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return &app{store: store, cfg: cfg, log: log}, nil
}

func (a *app) loadProtocol() (*models.Protocol, error) {
	path := a.cfg.Protocol.Path
	if protocolPath != "" {
		path = protocolPath
	}
	path = resolve(path)

	protocol, err := models.LoadProtocol(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load protocol %s: %w", path, err)
	}
	a.log.Info("Loaded protocol",
		zap.String("name", protocol.Name),
		zap.String("path", path),
		zap.Int("trials", len(protocol.Trials)),
	)
	return protocol, nil
}

// resolve makes relative paths relative to the project root.
func resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(projectRoot, path)
}

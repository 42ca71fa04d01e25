package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gauravmishra2744/Awaaj/internal/config"
	"github.com/gauravmishra2744/Awaaj/internal/enrich"
	"github.com/gauravmishra2744/Awaaj/internal/issues"
	"github.com/gauravmishra2744/Awaaj/internal/lifecycle"
	"github.com/gauravmishra2744/Awaaj/internal/notify"
	"github.com/gauravmishra2744/Awaaj/internal/output"
	"github.com/gauravmishra2744/Awaaj/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store
	service   *issues.Service

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "awaaz",
	Short: "Awaaz - citizen issue reporting backend",
	Long: `awaaz accepts civic issue reports from citizens, enriches them with
AI classification and prioritization, and tracks each issue through its
lifecycle with SLA deadlines and email notifications.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/awaaz/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(config.DefaultDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("AWAAZ")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	config.SetDefaults(viper.GetViper(), config.DefaultDir())

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// Store and service are opened lazily so config/version run without a db.
}

// loadConfig decodes and validates the effective configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	s, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// getService wires the issue service on first call: store, AI classifier,
// enrichment pipeline, lifecycle engine, and notification dispatcher.
func getService() (*issues.Service, error) {
	if service != nil {
		return service, nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	s, err := getStore()
	if err != nil {
		return nil, err
	}

	logger := slog.Default()
	classifier, health, err := newClassifier(cfg)
	if err != nil {
		return nil, err
	}
	pipeline := enrich.New(classifier, enrich.WithTimeout(cfg.AI.Timeout), enrich.WithLogger(logger))
	engine := lifecycle.New(notify.New(cfg.SMTP, logger), lifecycle.WithLogger(logger))

	service = issues.NewService(s, pipeline, engine, health, logger)
	return service, nil
}

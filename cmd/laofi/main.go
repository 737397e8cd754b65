package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/vasiliy-maslov/laofi/internal/config"
)

var (
	Version = "dev"
	envFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "laofi",
		Short:         "La Ofi coffee ordering backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedProductsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and points the global logger at the configured level and format.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	setupLogger(cfg.App)
	return cfg, nil
}

func setupLogger(app config.AppConfig) {
	level := zerolog.InfoLevel
	if !app.IsProduction() {
		level = zerolog.DebugLevel
	}
	if app.LogLevel != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(app.LogLevel)); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)

	if !app.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("service", "laofi").Logger()
}

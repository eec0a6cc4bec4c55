// Package cmd provides the folio command-line interface.
//
// Configuration sources, highest priority first:
//
//  1. Command-line flags (--port, --theme, ...)
//  2. Environment variables with the FOLIO_ prefix (FOLIO_SERVER_PORT,
//     FOLIO_SITE_THEME, ...)
//  3. The configuration file: --config, else FOLIO_CONFIG_FILE, else
//     .folio.yml in the working directory
//
// Production mode is enabled with `environment: production`, the
// --production flag of serve, or ENVIRONMENT=production.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "Personal website server and static site generator",
	Long: `Folio renders a personal website from a folder of HTML and Markdown pages,
blog posts with front matter and Mustache templates.

Quick Start:
  folio serve                 Serve the site, rendering on request
  folio generate build        Write the whole site to ./build
  folio static build --live   Preview a generated folder with live reload
  folio posts                 List blog posts`,
	SilenceUsage:      true,
	PersistentPreRunE: bindFlags(map[string]string{"log-level": "log.level", "log-format": "log.format"}),
}

// Execute runs the root command until it finishes or the process receives
// SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .folio.yml, can also use FOLIO_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	AddFlagValidation(rootCmd.PersistentFlags(), "log-level", func(level string) error {
		return ValidateChoice(level, []string{"debug", "info", "warn", "error"})
	})
	AddFlagValidation(rootCmd.PersistentFlags(), "log-format", func(format string) error {
		return ValidateChoice(format, []string{"text", "json"})
	})
}

// initConfig selects the configuration file and enables FOLIO_ environment
// variables. A missing file is not an error.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("FOLIO_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".folio")
	}

	viper.SetEnvPrefix("FOLIO")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// Package config loads folio's tool configuration with Viper.
//
// Values come from an optional .folio.yml file, FOLIO_* environment
// variables and command-line flags bound by the cmd package. The site
// document (app.json, content.json or site.yml) is a separate input that
// describes the website itself; see LoadSite.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvironmentProduction enables the process-wide cache and hides drafts.
const EnvironmentProduction = "production"

type Config struct {
	Environment string        `mapstructure:"environment" yaml:"environment"`
	Server      ServerConfig  `mapstructure:"server" yaml:"server"`
	Build       BuildConfig   `mapstructure:"build" yaml:"build"`
	Preview     PreviewConfig `mapstructure:"preview" yaml:"preview"`
	Site        SiteConfig    `mapstructure:"site" yaml:"site"`
	Log         LogConfig     `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port" yaml:"port"`
	Host string `mapstructure:"host" yaml:"host"`
}

type BuildConfig struct {
	Destination string `mapstructure:"destination" yaml:"destination"`
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency"`
	Watch       bool   `mapstructure:"watch" yaml:"watch"`
}

type PreviewConfig struct {
	Folder       string `mapstructure:"folder" yaml:"folder"`
	Port         int    `mapstructure:"port" yaml:"port"`
	IndexPage    string `mapstructure:"index_page" yaml:"index_page"`
	NotFoundPage string `mapstructure:"not_found_page" yaml:"not_found_page"`
	RedirectMap  string `mapstructure:"redirect_map" yaml:"redirect_map"`
	Browse       bool   `mapstructure:"browse" yaml:"browse"`
	Live         bool   `mapstructure:"live" yaml:"live"`
}

// SiteConfig locates the website sources.
type SiteConfig struct {
	// Root is the directory holding the site document.
	Root string `mapstructure:"root" yaml:"root"`
	// Content is the page and post tree, relative to Root.
	Content string `mapstructure:"content" yaml:"content"`
	// Themes holds one directory per theme, relative to Root.
	Themes string `mapstructure:"themes" yaml:"themes"`
	Theme  string `mapstructure:"theme" yaml:"theme"`
	// Document overrides site document discovery.
	Document string `mapstructure:"document" yaml:"document"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Production reports whether production mode is on, either through the
// configuration or the ENVIRONMENT variable used by deployments.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Environment, EnvironmentProduction) ||
		strings.EqualFold(os.Getenv("ENVIRONMENT"), EnvironmentProduction)
}

// ContentDir returns the absolute-or-relative content directory.
func (c *Config) ContentDir() string {
	return filepath.Join(c.Site.Root, c.Site.Content)
}

// ThemeDir returns the directory of the selected theme.
func (c *Config) ThemeDir() string {
	return filepath.Join(c.Site.Root, c.Site.Themes, c.Site.Theme)
}

func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	if !viper.IsSet("server.port") && config.Server.Port == 0 {
		config.Server.Port = 8080
	}

	if config.Build.Destination == "" {
		config.Build.Destination = "build"
	}
	if config.Build.Concurrency <= 0 {
		config.Build.Concurrency = 8
	}

	if config.Preview.Folder == "" {
		config.Preview.Folder = "."
	}
	if !viper.IsSet("preview.port") && config.Preview.Port == 0 {
		config.Preview.Port = 8080
	}
	if config.Preview.IndexPage == "" {
		config.Preview.IndexPage = "index.html"
	}

	if config.Site.Root == "" {
		config.Site.Root = "."
	}
	if config.Site.Content == "" {
		config.Site.Content = "content"
	}
	if config.Site.Themes == "" {
		config.Site.Themes = "themes"
	}
	if config.Site.Theme == "" {
		config.Site.Theme = "default"
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validatePort(config.Server.Port); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := validateHost(config.Server.Host); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := validatePort(config.Preview.Port); err != nil {
		return fmt.Errorf("preview config: %w", err)
	}

	for name, path := range map[string]string{
		"site.content": config.Site.Content,
		"site.themes":  config.Site.Themes,
		"site.theme":   config.Site.Theme,
	} {
		if err := validatePath(path); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if strings.ContainsAny(config.Site.Theme, `/\`) {
		return fmt.Errorf("site.theme must be a directory name: %s", config.Site.Theme)
	}

	switch strings.ToLower(config.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", config.Log.Format)
	}

	return nil
}

// validatePort allows 0 for system-assigned ports in tests.
func validatePort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", port)
	}
	return nil
}

func validateHost(host string) error {
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("host contains dangerous character: %s", char)
		}
	}
	return nil
}

// validatePath rejects empty, traversing or shell-hostile paths.
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}

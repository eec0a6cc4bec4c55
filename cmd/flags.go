package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/folio/internal/cache"
	"github.com/conneroisu/folio/internal/config"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/site"
)

// bindFlags returns a pre-run hook that binds the given flags of the running
// command to configuration keys. Binding at run time lets several commands
// share a key such as site.theme.
func bindFlags(keys map[string]string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		for name, key := range keys {
			flag := cmd.Flags().Lookup(name)
			if flag == nil {
				continue
			}
			if err := viper.BindPFlag(key, flag); err != nil {
				return fmt.Errorf("bind --%s: %w", name, err)
			}
		}
		return nil
	}
}

// AddFlagValidation makes the flag reject values the validator refuses.
func AddFlagValidation(flags *pflag.FlagSet, name string, validator func(string) error) {
	flag := flags.Lookup(name)
	if flag == nil {
		return
	}
	flag.Value = &validatingValue{Value: flag.Value, validator: validator}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if err := v.validator(val); err != nil {
		return err
	}
	return v.Value.Set(val)
}

// ValidateChoice accepts value when it is one of choices, case-insensitively,
// and suggests the closest choice otherwise.
func ValidateChoice(value string, choices []string) error {
	lower := strings.ToLower(value)
	for _, choice := range choices {
		if lower == choice {
			return nil
		}
	}
	for _, choice := range choices {
		if lower != "" && (strings.HasPrefix(choice, lower) || strings.HasPrefix(lower, choice)) {
			return fmt.Errorf("invalid value %q, did you mean %q? (valid: %s)",
				value, choice, strings.Join(choices, ", "))
		}
	}
	return fmt.Errorf("invalid value %q (valid: %s)", value, strings.Join(choices, ", "))
}

// loadConfig loads the configuration after flags were bound.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, out io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: strings.ToLower(cfg.Log.Format),
		Output: out,
	}), nil
}

// newComposer loads the site document and builds the composer. The cache is
// enabled in production only.
func newComposer(cfg *config.Config, logger logging.Logger) (*site.Composer, *cache.Cache, error) {
	doc, err := config.LoadSite(cfg.Site.Root, cfg.Site.Document)
	if err != nil {
		return nil, nil, err
	}
	c := cache.New(cfg.Production())
	composer := site.New(site.Options{
		ContentDir: cfg.ContentDir(),
		ThemeDir:   cfg.ThemeDir(),
		Document:   doc,
		Cache:      c,
		Logger:     logger,
	})
	return composer, c, nil
}

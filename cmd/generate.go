package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/folio/internal/build"
	"github.com/conneroisu/folio/internal/watcher"
)

var generateCmd = &cobra.Command{
	Use:     "generate [destination]",
	Aliases: []string{"g"},
	Short:   "Write the whole site to a static folder",
	Long: `Render every page, post and feed of the content folder into the
destination folder (default ./build), copying all other files. The
destination is emptied first.

Examples:
  folio generate                  # Write to ./build
  folio generate public --theme dark
  folio generate --watch          # Regenerate on every change`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: bindFlags(map[string]string{
		"theme":       "site.theme",
		"content":     "site.content",
		"watch":       "build.watch",
		"concurrency": "build.concurrency",
	}),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().String("theme", "default", "Theme directory name")
	generateCmd.Flags().String("content", "content", "Content folder, relative to the site root")
	generateCmd.Flags().BoolP("watch", "w", false, "Regenerate whenever content or theme files change")
	generateCmd.Flags().IntP("concurrency", "j", 8, "Files rendered at once per folder")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		viper.Set("build.destination", args[0])
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	composer, c, err := newComposer(cfg, logger)
	if err != nil {
		return err
	}

	generator := build.NewGenerator(build.Options{
		ContentDir:  cfg.ContentDir(),
		Destination: cfg.Build.Destination,
		Concurrency: cfg.Build.Concurrency,
		Production:  cfg.Production(),
	}, composer, c, logger)

	ctx := cmd.Context()
	report, err := generator.Generate(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Generated %s: %s\n", cfg.Build.Destination, report)

	if !cfg.Build.Watch {
		return nil
	}

	w, err := watcher.NewFileWatcher(watcher.DefaultDelay, logger)
	if err != nil {
		return err
	}
	defer w.Stop()
	if err := generator.Watch(ctx, w, cfg.ContentDir(), cfg.ThemeDir()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Watching for changes, press Ctrl+C to stop")
	<-ctx.Done()
	return nil
}

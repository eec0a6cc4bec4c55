package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/folio/internal/config"
	"github.com/conneroisu/folio/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Serve the website, rendering pages on request",
	Long: `Serve the website from the content folder. Pages, posts and feeds are
rendered per request. In production mode rendered output is cached and
drafts are hidden, except for requests to localhost.

Examples:
  folio serve                     # Serve on port 8080
  folio serve -p 3000 --theme dark
  folio serve --site ~/www --production`,
	Args: cobra.NoArgs,
	PreRunE: bindFlags(map[string]string{
		"port":  "server.port",
		"host":  "server.host",
		"site":  "site.root",
		"theme": "site.theme",
	}),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "", "Host to bind to (all interfaces when empty)")
	serveCmd.Flags().String("site", ".", "Site root holding the site document, content and themes")
	serveCmd.Flags().String("theme", "default", "Theme directory name")
	serveCmd.Flags().Bool("production", false, "Cache rendered output and hide drafts")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if production, _ := cmd.Flags().GetBool("production"); production {
		cfg.Environment = config.EnvironmentProduction
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	composer, c, err := newComposer(cfg, logger)
	if err != nil {
		return err
	}

	srv := server.New(cfg, composer, c, logger)
	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s at http://%s\n", cfg.ContentDir(), srv.Addr())
	if err := srv.Start(cmd.Context()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

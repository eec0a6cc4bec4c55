package cmd

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/folio/internal/preview"
	"github.com/conneroisu/folio/internal/watcher"
)

var staticCmd = &cobra.Command{
	Use:     "static [folder]",
	Aliases: []string{"preview", "p"},
	Short:   "Serve a folder of static files",
	Long: `Serve a folder as-is, typically the output of folio generate.

Redirect maps hold one "source target" pair per line; source is a regular
expression matched against the request path.

Examples:
  folio static build              # Serve ./build on port 8080
  folio static build -b --live    # Open the browser and reload on change
  folio static -r redirects.txt -n 404.html`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: bindFlags(map[string]string{
		"port":           "preview.port",
		"browse":         "preview.browse",
		"index-page":     "preview.index_page",
		"not-found-page": "preview.not_found_page",
		"redirect-map":   "preview.redirect_map",
		"live":           "preview.live",
	}),
	RunE: runStatic,
}

func init() {
	rootCmd.AddCommand(staticCmd)

	staticCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	staticCmd.Flags().BoolP("browse", "b", false, "Open the site in the browser")
	staticCmd.Flags().StringP("index-page", "i", "index.html", "Page served for directory requests")
	staticCmd.Flags().StringP("not-found-page", "n", "", "Page returned with 404 responses")
	staticCmd.Flags().StringP("redirect-map", "r", "", "Redirect map file")
	staticCmd.Flags().Bool("live", false, "Reload open pages when the folder changes")
}

func runStatic(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		viper.Set("preview.folder", args[0])
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	opts := preview.Options{
		Folder:       cfg.Preview.Folder,
		IndexPage:    cfg.Preview.IndexPage,
		NotFoundPage: cfg.Preview.NotFoundPage,
		Live:         cfg.Preview.Live,
	}
	if cfg.Preview.RedirectMap != "" {
		if opts.Redirects, err = preview.LoadRedirectMap(cfg.Preview.RedirectMap); err != nil {
			return err
		}
	}
	srv, err := preview.New(opts, logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if opts.Live {
		w, err := watcher.NewFileWatcher(watcher.DefaultDelay, logger)
		if err != nil {
			return err
		}
		defer w.Stop()
		if err := srv.Watch(ctx, w); err != nil {
			return err
		}
	}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Preview.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	url := "http://localhost:" + strconv.Itoa(ln.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(cmd.OutOrStdout(), "Serving '%s' at %s...\n", opts.Folder, url)
	if cfg.Preview.Browse {
		if err := preview.OpenBrowser(url); err != nil {
			logger.Warn(ctx, err, "could not open browser")
		}
	}
	return srv.Serve(ctx, ln)
}

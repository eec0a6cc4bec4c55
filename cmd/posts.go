package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/folio/internal/content"
	"github.com/conneroisu/folio/internal/logging"
)

var postsCmd = &cobra.Command{
	Use:     "posts",
	Aliases: []string{"l"},
	Short:   "List blog posts",
	Long: `List the posts of the blog folder, newest first. Drafts are included
with --drafts.

Examples:
  folio posts                     # Table of published posts
  folio posts --drafts -o json`,
	Args:    cobra.NoArgs,
	PreRunE: bindFlags(map[string]string{"site": "site.root"}),
	RunE:    runPosts,
}

var (
	postsOutput string
	postsDrafts bool
)

func init() {
	rootCmd.AddCommand(postsCmd)

	postsCmd.Flags().StringVarP(&postsOutput, "output", "o", "table", "Output format (table|json|yaml)")
	postsCmd.Flags().BoolVar(&postsDrafts, "drafts", false, "Include unpublished posts")
	postsCmd.Flags().String("site", ".", "Site root holding the site document, content and themes")

	AddFlagValidation(postsCmd.Flags(), "output", func(format string) error {
		return ValidateChoice(format, []string{"table", "json", "yaml"})
	})
}

// postSummary is one row of the posts listing.
type postSummary struct {
	Slug      string `json:"slug" yaml:"slug"`
	Title     string `json:"title" yaml:"title"`
	Date      string `json:"date,omitempty" yaml:"date,omitempty"`
	State     string `json:"state" yaml:"state"`
	Published bool   `json:"published" yaml:"published"`
	Path      string `json:"path" yaml:"path"`
}

func runPosts(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	composer, _, err := newComposer(cfg, logging.Discard())
	if err != nil {
		return err
	}

	entries, err := composer.Posts(true)
	if err != nil {
		return err
	}
	summaries := make([]postSummary, 0, len(entries))
	for _, e := range entries {
		post, ok := composer.Load(e, true)
		if !ok || (!postsDrafts && !post.Published()) {
			continue
		}
		title := post["title"]
		if title == "" {
			title = content.TitleFromSlug(e.Slug)
		}
		summaries = append(summaries, postSummary{
			Slug:      e.Slug,
			Title:     title,
			Date:      post["date"],
			State:     post.State(),
			Published: post.Published(),
			Path:      e.Path,
		})
	}

	out := cmd.OutOrStdout()
	switch strings.ToLower(postsOutput) {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(summaries)
	case "yaml":
		encoder := yaml.NewEncoder(out)
		defer encoder.Close()
		return encoder.Encode(summaries)
	default:
		return outputPostsTable(out, summaries)
	}
}

func outputPostsTable(out io.Writer, summaries []postSummary) error {
	if len(summaries) == 0 {
		_, err := fmt.Fprintln(out, "No posts found.")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SLUG\tTITLE\tDATE\tSTATE")
	for _, s := range summaries {
		date := s.Date
		if t, ok := content.ParseTime(s.Date); ok {
			date = humanize.Time(t)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Slug, s.Title, date, s.State)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "\n%s posts\n", humanize.Comma(int64(len(summaries))))
	return err
}

// Package internal contains the implementation packages of folio.
//
// # Package Organization
//
//   - mustache: logic-less template engine with lazy values, partials and
//     HTML escaping
//   - content: front matter parsing, Markdown conversion, dates and MIME types
//   - excerpt: HTML-aware truncation
//   - site: composes pages, posts, listings and feeds from the content tree
//   - cache: process-wide render cache used in production
//   - server: live HTTP server rendering on request
//   - build: static generator writing the site to a folder
//   - preview: development file server with live reload
//   - watcher: debounced file system notifications
//   - config, logging, errors, version: ambient support
//
// # Data Flow
//
// Both the live server and the generator hold a site.Composer. The composer
// reads files through the cache when one is configured, builds a mustache
// view from the site document and the post or page being rendered, and
// renders the theme template. The server writes the result to the response;
// the generator writes it below the destination folder.
package internal

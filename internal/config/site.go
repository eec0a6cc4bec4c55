package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	siteerrors "github.com/conneroisu/folio/internal/errors"
)

// SiteDocumentNames are probed in order when no document is configured.
var SiteDocumentNames = []string{"app.json", "content.json", "site.yml", "site.yaml"}

// Link is a social or external link rendered as an icon.
type Link struct {
	URL    string `yaml:"url"`
	Name   string `yaml:"name"`
	Symbol string `yaml:"symbol"`
}

// Page is a navigation entry.
type Page struct {
	URL     string `yaml:"url"`
	Name    string `yaml:"name"`
	Visible bool   `yaml:"visible"`
}

// Redirect sends requests matching Pattern to Target.
type Redirect struct {
	Pattern string `yaml:"pattern"`
	Target  string `yaml:"target"`
}

// SiteDocument is the website description shared by every rendered page.
// Raw keeps every top-level key so templates can reference fields the typed
// view does not know about.
type SiteDocument struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Host        string     `yaml:"host"`
	Feed        string     `yaml:"feed"`
	Links       []Link     `yaml:"links"`
	Pages       []Page     `yaml:"pages"`
	Redirects   []Redirect `yaml:"redirects"`

	Raw map[string]interface{} `yaml:"-"`
	// Path is the file the document was read from, empty when built in code.
	Path string `yaml:"-"`
}

// ParseSite decodes a site document. JSON documents are valid YAML, so one
// decoder serves app.json, content.json and site.yml alike.
func ParseSite(data []byte) (*SiteDocument, error) {
	var doc SiteDocument
	if len(bytes.TrimSpace(data)) == 0 {
		doc.Raw = map[string]interface{}{}
		return &doc, nil
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, siteerrors.NewConfig("site document is not valid JSON or YAML", err)
	}
	if err := yaml.Unmarshal(data, &doc.Raw); err != nil {
		return nil, siteerrors.NewConfig("site document is not valid JSON or YAML", err)
	}
	if doc.Raw == nil {
		doc.Raw = map[string]interface{}{}
	}
	return &doc, nil
}

// LoadSite reads the site document. When name is empty the first existing
// entry of SiteDocumentNames inside root is used; a site without any
// document gets an empty one.
func LoadSite(root, name string) (*SiteDocument, error) {
	candidates := SiteDocumentNames
	if name != "" {
		candidates = []string{name}
	}

	for _, candidate := range candidates {
		path := candidate
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, candidate)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) && name == "" {
				continue
			}
			return nil, siteerrors.NewIO(siteerrors.CodeReadFailed, path, err)
		}
		doc, err := ParseSite(data)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		doc.Path = filepath.Base(path)
		return doc, nil
	}

	return &SiteDocument{Raw: map[string]interface{}{}}, nil
}

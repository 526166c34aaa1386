// Package seo generates robots.txt, sitemap.xml and per-page metadata from an
// embedded page catalog.
package seo

import (
	_ "embed"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog lists the site's public pages and crawl rules
type Catalog struct {
	Defaults Defaults    `yaml:"defaults"`
	Robots   RobotsRules `yaml:"robots"`
	Pages    []Page      `yaml:"pages"`
}

// Defaults apply to pages without their own values
type Defaults struct {
	SiteName      string `yaml:"siteName"`
	Title         string `yaml:"title"`
	Description   string `yaml:"description"`
	Image         string `yaml:"image"`
	TwitterHandle string `yaml:"twitterHandle"`
}

// RobotsRules are emitted for User-agent: *
type RobotsRules struct {
	Allow    []string `yaml:"allow"`
	Disallow []string `yaml:"disallow"`
}

// Page is one catalog entry
type Page struct {
	Path        string        `yaml:"path"`
	Title       string        `yaml:"title"`
	Description string        `yaml:"description"`
	NoIndex     bool          `yaml:"noIndex"`
	Sitemap     *SitemapEntry `yaml:"sitemap"`
}

// SitemapEntry marks a page for inclusion in sitemap.xml
type SitemapEntry struct {
	ChangeFrequency string  `yaml:"changeFrequency"`
	Priority        float64 `yaml:"priority"`
}

// Generator renders SEO artifacts for one public site URL
type Generator struct {
	siteURL string
	catalog Catalog
	pages   map[string]Page
	now     func() time.Time
}

// New loads the embedded catalog
func New(siteURL string) (*Generator, error) {
	return NewFromYAML(siteURL, defaultCatalog)
}

// NewFromYAML builds a generator from a YAML catalog document
func NewFromYAML(siteURL string, data []byte) (*Generator, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse page catalog: %w", err)
	}

	pages := make(map[string]Page, len(catalog.Pages))
	for _, p := range catalog.Pages {
		if !strings.HasPrefix(p.Path, "/") {
			return nil, fmt.Errorf("page path %q must start with /", p.Path)
		}
		if _, dup := pages[p.Path]; dup {
			return nil, fmt.Errorf("duplicate page path %q", p.Path)
		}
		pages[p.Path] = p
	}

	return &Generator{
		siteURL: strings.TrimRight(siteURL, "/"),
		catalog: catalog,
		pages:   pages,
		now:     time.Now,
	}, nil
}

// Robots renders robots.txt
func (g *Generator) Robots() string {
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	for _, p := range g.catalog.Robots.Allow {
		fmt.Fprintf(&b, "Allow: %s\n", p)
	}
	for _, p := range g.catalog.Robots.Disallow {
		fmt.Fprintf(&b, "Disallow: %s\n", p)
	}
	fmt.Fprintf(&b, "\nSitemap: %s/sitemap.xml\n", g.siteURL)
	return b.String()
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc             string `xml:"loc"`
	LastModified    string `xml:"lastmod"`
	ChangeFrequency string `xml:"changefreq"`
	Priority        string `xml:"priority"`
}

// Sitemap renders sitemap.xml with every catalog page that has a sitemap entry
func (g *Generator) Sitemap() ([]byte, error) {
	lastMod := g.now().UTC().Format(time.RFC3339)

	set := urlSet{Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, p := range g.catalog.Pages {
		if p.Sitemap == nil || p.NoIndex {
			continue
		}
		set.URLs = append(set.URLs, sitemapURL{
			Loc:             g.absolute(p.Path),
			LastModified:    lastMod,
			ChangeFrequency: p.Sitemap.ChangeFrequency,
			Priority:        fmt.Sprintf("%.1f", p.Sitemap.Priority),
		})
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render sitemap: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

// Metadata is the head metadata for one page
type Metadata struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Canonical   string      `json:"canonical"`
	Robots      string      `json:"robots"`
	OpenGraph   OpenGraph   `json:"openGraph"`
	Twitter     TwitterCard `json:"twitter"`
}

type OpenGraph struct {
	Type        string `json:"type"`
	SiteName    string `json:"siteName"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Image       string `json:"image,omitempty"`
}

type TwitterCard struct {
	Card        string `json:"card"`
	Site        string `json:"site,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
}

// Metadata returns the metadata for path, falling back to the catalog
// defaults for unknown pages.
func (g *Generator) Metadata(path string) Metadata {
	if path == "" {
		path = "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}

	d := g.catalog.Defaults
	title, description, robots := d.Title, d.Description, "index, follow"
	if p, ok := g.pages[path]; ok {
		if p.Title != "" {
			title = p.Title
		}
		if p.Description != "" {
			description = p.Description
		}
		if p.NoIndex {
			robots = "noindex, nofollow"
		}
	}

	canonical := g.absolute(path)
	image := ""
	if d.Image != "" {
		image = g.absolute(d.Image)
	}

	return Metadata{
		Title:       title,
		Description: description,
		Canonical:   canonical,
		Robots:      robots,
		OpenGraph: OpenGraph{
			Type:        "website",
			SiteName:    d.SiteName,
			Title:       title,
			Description: description,
			URL:         canonical,
			Image:       image,
		},
		Twitter: TwitterCard{
			Card:        "summary_large_image",
			Site:        d.TwitterHandle,
			Title:       title,
			Description: description,
			Image:       image,
		},
	}
}

func (g *Generator) absolute(path string) string {
	if path == "/" {
		return g.siteURL
	}
	return g.siteURL + path
}

package feed

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"marketbrief/internal/config"
	"marketbrief/internal/logger"
)

// Sentinel is returned by FetchBatch when no source yielded any item.
const Sentinel = "No current news found."

const (
	fetchTimeout   = 10 * time.Second
	articleTimeout = 30 * time.Second
	userAgent      = "marketbrief/1.0 RSS Reader"
)

// Item is a single flattened feed entry.
type Item struct {
	Source  string
	Title   string
	Link    string
	Excerpt string
}

// Fetcher retrieves the configured RSS sources and flattens them into a
// plain-text batch for the report generator.
type Fetcher struct {
	sources      []config.Source
	maxEntries   int
	excerptLimit int
	parser       *gofeed.Parser
	client       *http.Client
	policy       *bluemonday.Policy

	// readArticle extracts the article body for entries that ship no
	// description. Swappable in tests.
	readArticle func(link string) (string, error)
}

// NewFetcher creates a fetcher over the configured sources.
func NewFetcher(cfg *config.Config) *Fetcher {
	return &Fetcher{
		sources:      cfg.Feeds,
		maxEntries:   cfg.Agent.MaxEntries,
		excerptLimit: cfg.Agent.ExcerptLimit,
		parser:       gofeed.NewParser(),
		client:       &http.Client{Timeout: fetchTimeout},
		policy:       bluemonday.StrictPolicy(),
		readArticle:  readArticleText,
	}
}

// FetchBatch fetches every source in order and renders the combined batch.
// Per-source failures are logged and skipped; partial results never abort
// the batch. When nothing was collected it returns the sentinel string.
func (f *Fetcher) FetchBatch(ctx context.Context) string {
	var items []Item
	for _, src := range f.sources {
		fetched, err := f.fetchSource(ctx, src)
		if err != nil {
			logger.Log.Warnf("fetch %s failed, skipping: %v", src.Name, err)
			continue
		}
		items = append(items, fetched...)
	}

	if len(items) == 0 {
		return Sentinel
	}
	return RenderBatch(items)
}

// fetchSource retrieves one feed and converts its leading entries.
func (f *Fetcher) fetchSource(ctx context.Context, src config.Source) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	feed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	limit := f.maxEntries
	if len(feed.Items) < limit {
		limit = len(feed.Items)
	}

	items := make([]Item, 0, limit)
	for i := 0; i < limit; i++ {
		entry := feed.Items[i]

		desc := entry.Description
		if desc == "" {
			desc = entry.Content
		}
		if desc == "" && entry.Link != "" {
			body, err := f.readArticle(entry.Link)
			if err != nil {
				logger.Log.Debugf("article fallback failed for %s: %v", entry.Link, err)
			} else {
				desc = body
			}
		}

		items = append(items, Item{
			Source:  src.Name,
			Title:   entry.Title,
			Link:    entry.Link,
			Excerpt: f.cleanExcerpt(desc),
		})
	}
	return items, nil
}

// cleanExcerpt strips all markup, unescapes entities, collapses whitespace
// and truncates to the excerpt budget.
func (f *Fetcher) cleanExcerpt(s string) string {
	s = f.policy.Sanitize(s)
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ") // &nbsp; survives as U+00A0
	s = collapseSpace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	runes := []rune(s)
	if len(runes) > f.excerptLimit {
		s = string(runes[:f.excerptLimit])
	}
	return s
}

var collapseSpace = regexp.MustCompile(`\s+`)

// RenderBatch serializes items into the delimited text blob handed to the
// language model: one record per item, fields newline-separated, records
// joined with a divider. Order follows the input slice.
func RenderBatch(items []Item) string {
	records := make([]string, 0, len(items))
	for _, it := range items {
		records = append(records, fmt.Sprintf(
			"SOURCE: %s\nTITLE: %s\nLINK: %s\nCONTENT: %s\n---",
			it.Source, it.Title, it.Link, it.Excerpt))
	}
	return strings.Join(records, "\n")
}

// readArticleText fetches the entry link and extracts the readable body.
func readArticleText(link string) (string, error) {
	article, err := readability.FromURL(link, articleTimeout)
	if err != nil {
		return "", err
	}
	return article.TextContent, nil
}

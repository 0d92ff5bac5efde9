package watchfeed

import (
	"context"
	"log"
	"net/http"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"
)

var (
	filmSlugPattern   = regexp.MustCompile(`/film/([^/]+)/`)
	feedYearPattern   = regexp.MustCompile(`\s*\((\d{4})\)\s*`)
	feedPrefixPattern = regexp.MustCompile(`(?i)^.*?(added|watched|liked)\s+`)
	// Leading whitespace is optional: the prefix strip can leave the clause
	// at the start of the string.
	feedTrailerPattern = regexp.MustCompile(`(?i)\s*to their.*$`)
)

// FeedStrategy is the terminal retrieval path. The site has no watchlist
// feed, so it approximates one from the user's public activity feed. There
// is nothing further to fall back to, so any failure here degrades to an
// empty mapping rather than an error.
type FeedStrategy struct {
	fetcher  *Fetcher
	resolver *Resolver
	base     string
}

// NewFeedStrategy creates the syndication fallback.
func NewFeedStrategy(fetcher *Fetcher, resolver *Resolver, base string) *FeedStrategy {
	return &FeedStrategy{fetcher: fetcher, resolver: resolver, base: base}
}

// Name returns the strategy name used in logs.
func (s *FeedStrategy) Name() string { return "feed" }

// Fetch derives a best-effort record set from the user's activity feed.
func (s *FeedStrategy) Fetch(ctx context.Context, username string) (Watchlist, error) {
	url := strings.TrimSuffix(s.base, "/") + "/" + username + "/rss/"

	resp, err := s.fetcher.get(ctx, url)
	if err != nil {
		log.Printf("WARN: [feed] Fetch failed for %s: %v", username, err)
		return Watchlist{}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		log.Printf("INFO: [feed] No activity feed for %s", username)
		return Watchlist{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("WARN: [feed] Status %d for %s", resp.StatusCode, username)
		return Watchlist{}, nil
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		log.Printf("WARN: [feed] Failed to parse activity feed for %s: %v", username, err)
		return Watchlist{}, nil
	}

	list := Watchlist{}
	for _, item := range feed.Items {
		entry := s.parseFeedItem(item)
		if entry == nil {
			continue
		}
		if err := s.resolver.Resolve(ctx, entry); err != nil {
			log.Printf("WARN: Skipping %s: %v", entry.Slug, err)
			continue
		}
		list[entry.Slug] = entry
	}

	log.Printf("INFO: [feed] %d films found for %s", len(list), username)
	return list, nil
}

// parseFeedItem derives an entry from one activity-feed item. Items whose
// link does not reference a film detail page yield nil.
func (s *FeedStrategy) parseFeedItem(item *gofeed.Item) *Entry {
	match := filmSlugPattern.FindStringSubmatch(item.Link)
	if match == nil {
		return nil
	}
	slug := match[1]

	// Activity items read like "alice added Example Movie (2021) to their
	// watchlist"; strip the narrative phrasing around the title.
	title := item.Title
	var year string
	if m := feedYearPattern.FindStringSubmatch(title); m != nil {
		year = m[1]
		title = feedYearPattern.ReplaceAllString(title, " ")
	}
	title = feedPrefixPattern.ReplaceAllString(title, "")
	title = feedTrailerPattern.ReplaceAllString(title, "")
	title = strings.TrimSpace(title)

	if title == "" {
		title = titleFromSlug(slug)
	}

	return &Entry{
		Slug: slug,
		Name: title,
		Year: year,
		URL:  filmURL(s.base, slug),
		Kind: KindMovie,
	}
}

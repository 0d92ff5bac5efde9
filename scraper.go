package watchfeed

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// maxWatchlistPages bounds pagination in case the site's next-page link is
// ever malformed. The site lists 28 posters per page, so this covers any
// realistic watchlist.
const maxWatchlistPages = 100

// ScraperStrategy retrieves a watchlist by paginating through the site's
// rendered list pages and extracting one entry per listed item. Entries are
// enriched through the resolver in the order they are extracted, page by
// page, before insertion into the result mapping.
type ScraperStrategy struct {
	fetcher  *Fetcher
	resolver *Resolver
	sel      *Selectors
	base     string
}

// NewScraperStrategy creates the markup-scraping retrieval path.
func NewScraperStrategy(fetcher *Fetcher, resolver *Resolver, sel *Selectors, base string) *ScraperStrategy {
	return &ScraperStrategy{fetcher: fetcher, resolver: resolver, sel: sel, base: base}
}

// Name returns the strategy name used in logs.
func (s *ScraperStrategy) Name() string { return "scraper" }

// Fetch paginates from page 1 until the site signals the end of the list.
// Failures on page 1 fail the whole attempt; failures on later pages stop
// pagination and keep what was collected.
func (s *ScraperStrategy) Fetch(ctx context.Context, username string) (Watchlist, error) {
	list := Watchlist{}
	yearPattern := s.sel.yearRegexp()

	for page := 1; ; page++ {
		if page > maxWatchlistPages {
			log.Printf("WARN: [scraper] Page ceiling (%d) reached for %s, stopping", maxWatchlistPages, username)
			break
		}

		url := fmt.Sprintf("%s/%s/watchlist/page/%d/", strings.TrimSuffix(s.base, "/"), username, page)
		doc, err := s.fetchPage(ctx, url, page, username)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			break
		}

		container := doc.Find(s.sel.Watchlist.Container).First()
		if container.Length() == 0 {
			if page == 1 {
				return nil, fmt.Errorf("container selector %q matched nothing for %q: %w",
					s.sel.Watchlist.Container, username, ErrStrategyUnavailable)
			}
			break
		}

		items := container.Find(s.sel.Watchlist.Item)
		if items.Length() == 0 {
			break
		}

		items.Each(func(_ int, item *goquery.Selection) {
			entry := s.parseItem(item, yearPattern)
			if entry == nil {
				return
			}
			if err := s.resolver.Resolve(ctx, entry); err != nil {
				log.Printf("WARN: Skipping %s: %v", entry.Slug, err)
				return
			}
			list[entry.Slug] = entry
		})

		if doc.Find(s.sel.Watchlist.Pagination.NextPage).Length() == 0 {
			break
		}
		log.Printf("INFO: [scraper] Page %d for %s...", page+1, username)
	}

	log.Printf("INFO: [scraper] %d films found for %s", len(list), username)
	return list, nil
}

// fetchPage retrieves and parses one watchlist page. A nil document with a
// nil error signals the normal end of pagination.
func (s *ScraperStrategy) fetchPage(ctx context.Context, url string, page int, username string) (*goquery.Document, error) {
	resp, err := s.fetcher.get(ctx, url)
	if err != nil {
		if page == 1 {
			return nil, fmt.Errorf("watchlist page 1 for %q: %v: %w", username, err, ErrStrategyUnavailable)
		}
		log.Printf("WARN: [scraper] Page %d failed for %s, keeping partial results: %v", page, username, err)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		if page == 1 {
			return nil, fmt.Errorf("%w: %q", ErrUserNotFound, username)
		}
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		if page == 1 {
			return nil, fmt.Errorf("watchlist page 1 for %q: status %d: %w", username, resp.StatusCode, ErrStrategyUnavailable)
		}
		log.Printf("WARN: [scraper] Page %d returned status %d for %s, keeping partial results", page, resp.StatusCode, username)
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		if page == 1 {
			return nil, fmt.Errorf("failed to parse watchlist page 1 for %q: %v: %w", username, err, ErrStrategyUnavailable)
		}
		log.Printf("WARN: [scraper] Failed to parse page %d for %s, keeping partial results: %v", page, username, err)
		return nil, nil
	}
	return doc, nil
}

// parseItem extracts one entry from a list item. Items without a resolvable
// slug are discarded.
func (s *ScraperStrategy) parseItem(item *goquery.Selection, yearPattern *regexp.Regexp) *Entry {
	w := s.sel.Watchlist

	poster := item.Find(w.PosterDiv).First()
	if poster.Length() == 0 {
		// The item itself may carry the attributes if the markup changes.
		poster = item
	}

	slug := poster.AttrOr(w.AttrSlug, "")
	if slug == "" {
		return nil
	}

	raw := poster.AttrOr(w.AttrName, "")
	if raw == "" {
		raw = item.Find("img.image").First().AttrOr("alt", "Unknown")
		if raw == "" {
			raw = "Unknown"
		}
	}
	name, year := splitTitleYear(raw, yearPattern)

	url := poster.AttrOr(w.AttrLink, "")
	switch {
	case url == "":
		url = filmURL(s.base, slug)
	case strings.HasPrefix(url, "/"):
		url = strings.TrimSuffix(s.base, "/") + url
	}

	return &Entry{
		Slug:   slug,
		Name:   name,
		Year:   year,
		FilmID: poster.AttrOr(w.AttrID, ""),
		URL:    url,
		Kind:   KindMovie,
	}
}

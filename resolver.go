package watchfeed

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

var (
	imdbIDPattern = regexp.MustCompile(`tt\d+`)
	tmdbIDPattern = regexp.MustCompile(`themoviedb\.org/(movie|tv)/(\d+)`)
)

// Resolver attaches IMDb and TMDb identifiers to entries by fetching their
// detail pages. Outcomes are written through to the identifier cache so a
// slug is probed at most once across runs; cached outcomes -- including
// "checked but nothing found" -- are copied without any network request.
type Resolver struct {
	fetcher *Fetcher
	cache   *Cache
	sel     *Selectors
}

// NewResolver creates a resolver backed by the given fetcher and cache.
func NewResolver(fetcher *Fetcher, cache *Cache, sel *Selectors) *Resolver {
	return &Resolver{fetcher: fetcher, cache: cache, sel: sel}
}

// Resolve fills in the entry's external identifiers. A 404 or 403 on the
// detail page, or a transport failure, leaves the entry unresolved without
// error; transport failures are not cached so they retry next run. Any other
// non-success status is returned as an error for this entry alone.
func (r *Resolver) Resolve(ctx context.Context, entry *Entry) error {
	if cached, ok := r.cache.Lookup(entry.Slug); ok {
		entry.ImdbID = cached.ImdbID
		entry.TmdbID = cached.TmdbID
		if cached.Kind != "" {
			entry.Kind = cached.Kind
		}
		return nil
	}

	resp, err := r.fetcher.get(ctx, entry.URL)
	if err != nil {
		log.Printf("WARN: Failed to fetch detail page for %s (will retry next run): %v", entry.Slug, err)
		return nil
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		log.Printf("INFO: Detail page not found (404): %s", entry.Slug)
		return nil
	case resp.StatusCode == http.StatusForbidden:
		log.Printf("INFO: Detail page forbidden (403): %s", entry.Slug)
		return nil
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("detail page for %s: unexpected status %d", entry.Slug, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to parse detail page for %s: %w", entry.Slug, err)
	}

	if href, ok := doc.Find(r.sel.FilmPage.ImdbLink).First().Attr("href"); ok {
		if id := imdbIDPattern.FindString(href); id != "" {
			entry.ImdbID = id
		}
	}

	if href, ok := doc.Find(r.sel.FilmPage.TmdbLink).First().Attr("href"); ok {
		if match := tmdbIDPattern.FindStringSubmatch(href); match != nil {
			entry.TmdbID = match[2]
			if match[1] == "tv" {
				entry.Kind = KindShow
			}
		}
	}

	r.cache.Store(entry.Slug, CacheEntry{
		ImdbID: entry.ImdbID,
		TmdbID: entry.TmdbID,
		Kind:   entry.Kind,
	})

	if entry.ImdbID != "" || entry.TmdbID != "" {
		log.Printf("INFO: Resolved %s: imdb=%s tmdb=%s kind=%s", entry.Slug, entry.ImdbID, entry.TmdbID, entry.Kind)
	}
	return nil
}

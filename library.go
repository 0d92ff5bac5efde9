package watchfeed

import (
	"context"
	"fmt"
	"log"
)

// Strategy is one retrieval path in the fallback chain. A strategy either
// produces the full slug-keyed mapping for a user or fails as a whole; no
// partial result is salvaged from a failed strategy.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, username string) (Watchlist, error)
}

// ClientFilm is the record shape a pre-built watchlist client returns. Year
// may be empty when the client folds it into the name as a "(YYYY)" suffix.
type ClientFilm struct {
	Slug string
	Name string
	Year string
	ID   string
	URL  string
}

// WatchlistClient is the seam for a pre-built client library for the site.
// Implementations own their transport; the adapter only normalizes their
// output and folds their failures into the strategy chain.
type WatchlistClient interface {
	UserWatchlist(ctx context.Context, username string) (map[string]ClientFilm, error)
}

// LibraryStrategy is the primary retrieval path: it delegates to a pre-built
// client and normalizes the result. Any client error is treated uniformly as
// the strategy being unavailable.
type LibraryStrategy struct {
	client   WatchlistClient
	resolver *Resolver
	sel      *Selectors
	base     string
}

// NewLibraryStrategy creates the structured-source adapter. A nil client
// makes the strategy report unavailable immediately.
func NewLibraryStrategy(client WatchlistClient, resolver *Resolver, sel *Selectors, base string) *LibraryStrategy {
	return &LibraryStrategy{client: client, resolver: resolver, sel: sel, base: base}
}

// Name returns the strategy name used in logs.
func (s *LibraryStrategy) Name() string { return "library" }

// Fetch retrieves the watchlist through the client and enriches each entry.
func (s *LibraryStrategy) Fetch(ctx context.Context, username string) (Watchlist, error) {
	if s.client == nil {
		return nil, fmt.Errorf("no watchlist client configured: %w", ErrStrategyUnavailable)
	}

	films, err := s.client.UserWatchlist(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("watchlist client failed for %q: %v: %w", username, err, ErrStrategyUnavailable)
	}

	yearPattern := s.sel.yearRegexp()
	list := make(Watchlist, len(films))
	for _, film := range films {
		if film.Slug == "" {
			continue
		}

		name, year := film.Name, film.Year
		if year == "" {
			name, year = splitTitleYear(film.Name, yearPattern)
		}

		url := film.URL
		if url == "" {
			url = filmURL(s.base, film.Slug)
		}

		entry := &Entry{
			Slug:   film.Slug,
			Name:   name,
			Year:   year,
			FilmID: film.ID,
			URL:    url,
			Kind:   KindMovie,
		}

		if err := s.resolver.Resolve(ctx, entry); err != nil {
			log.Printf("WARN: Skipping %s: %v", entry.Slug, err)
			continue
		}
		list[entry.Slug] = entry
	}

	log.Printf("INFO: [library] %d films found for %s", len(list), username)
	return list, nil
}

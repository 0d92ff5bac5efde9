package watchfeed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// posterItem renders one watchlist grid item in the site's current markup.
func posterItem(slug, name, link string) string {
	attrs := fmt.Sprintf(`data-item-slug=%q data-film-id="42"`, slug)
	if name != "" {
		attrs += fmt.Sprintf(` data-item-name=%q`, name)
	}
	if link != "" {
		attrs += fmt.Sprintf(` data-item-link=%q`, link)
	}
	return fmt.Sprintf(`<li class="griditem"><div class="react-component" data-component-class="LazyPoster" %s></div></li>`, attrs)
}

// watchlistPage renders a full watchlist page around the given items.
func watchlistPage(items []string, hasNext bool) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul class="grid">`)
	for _, item := range items {
		b.WriteString(item)
	}
	b.WriteString(`</ul>`)
	if hasNext {
		b.WriteString(`<a class="next" href="#">Older</a>`)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

// newTestScraper wires a scraper strategy against an httptest server. Detail
// pages under /film/ serve filmPageHTML so enrichment succeeds.
func newTestScraper(t *testing.T, pages map[int]string) (*ScraperStrategy, *Cache, *httptest.Server) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/film/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(filmPageHTML))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		var page int
		if _, err := fmt.Sscanf(r.URL.Path, "/alice/watchlist/page/%d/", &page); err != nil {
			http.NotFound(w, r)
			return
		}
		body, ok := pages[page]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cache := OpenCache(filepath.Join(t.TempDir(), "cache.json"), 0)
	fetcher := NewFetcher(NewPacer(time.Millisecond))
	resolver := NewResolver(fetcher, cache, DefaultSelectors())
	return NewScraperStrategy(fetcher, resolver, DefaultSelectors(), srv.URL), cache, srv
}

// TestScraper_SinglePage verifies extraction, title/year splitting, and
// interleaved enrichment on a one-page watchlist
func TestScraper_SinglePage(t *testing.T) {
	pages := map[int]string{
		1: watchlistPage([]string{
			posterItem("example-movie", "Example Movie (2021)", "/film/example-movie/"),
			posterItem("another-film", "Another Film", "/film/another-film/"),
		}, false),
	}
	scraper, _, srv := newTestScraper(t, pages)

	list, err := scraper.Fetch(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)

	entry := list["example-movie"]
	require.NotNil(t, entry)
	assert.Equal(t, "Example Movie", entry.Name)
	assert.Equal(t, "2021", entry.Year)
	assert.Equal(t, "42", entry.FilmID)
	assert.Equal(t, srv.URL+"/film/example-movie/", entry.URL)
	assert.Equal(t, "tt1234567", entry.ImdbID, "entries should be enriched during extraction")

	assert.Equal(t, "Another Film", list["another-film"].Name)
	assert.Empty(t, list["another-film"].Year)
}

// TestScraper_UserNotFound verifies a 404 on page 1 fails the attempt with
// the user-not-found error
func TestScraper_UserNotFound(t *testing.T) {
	scraper, _, _ := newTestScraper(t, map[int]string{})

	_, err := scraper.Fetch(context.Background(), "alice")

	assert.ErrorIs(t, err, ErrUserNotFound)
}

// TestScraper_NotFoundMidPagination verifies a 404 past page 1 ends
// pagination and keeps collected results
func TestScraper_NotFoundMidPagination(t *testing.T) {
	pages := map[int]string{
		1: watchlistPage([]string{posterItem("example-movie", "Example Movie (2021)", "/film/example-movie/")}, true),
	}
	scraper, _, _ := newTestScraper(t, pages)

	list, err := scraper.Fetch(context.Background(), "alice")

	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// TestScraper_ContainerMissingFirstPage verifies broken selectors on page 1
// fail the whole attempt
func TestScraper_ContainerMissingFirstPage(t *testing.T) {
	pages := map[int]string{1: `<html><body><div>nothing here</div></body></html>`}
	scraper, _, _ := newTestScraper(t, pages)

	_, err := scraper.Fetch(context.Background(), "alice")

	assert.ErrorIs(t, err, ErrStrategyUnavailable)
}

// TestScraper_ContainerMissingLaterPage verifies a missing container past
// page 1 ends pagination normally
func TestScraper_ContainerMissingLaterPage(t *testing.T) {
	pages := map[int]string{
		1: watchlistPage([]string{posterItem("example-movie", "Example Movie (2021)", "/film/example-movie/")}, true),
		2: `<html><body><div>markup changed</div></body></html>`,
	}
	scraper, _, _ := newTestScraper(t, pages)

	list, err := scraper.Fetch(context.Background(), "alice")

	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// TestScraper_PaginationStopsWithoutNextLink verifies no request is issued
// for the page after the last one carrying a next link
func TestScraper_PaginationStopsWithoutNextLink(t *testing.T) {
	var pageRequests []string
	mux := http.NewServeMux()
	mux.HandleFunc("/film/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(filmPageHTML))
	})
	mux.HandleFunc("/alice/watchlist/page/", func(w http.ResponseWriter, r *http.Request) {
		pageRequests = append(pageRequests, r.URL.Path)
		switch r.URL.Path {
		case "/alice/watchlist/page/1/":
			w.Write([]byte(watchlistPage([]string{posterItem("film-one", "Film One (2001)", "/film/film-one/")}, true)))
		case "/alice/watchlist/page/2/":
			w.Write([]byte(watchlistPage([]string{posterItem("film-two", "Film Two (2002)", "/film/film-two/")}, false)))
		default:
			t.Errorf("unexpected page request: %s", r.URL.Path)
			http.NotFound(w, r)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	fetcher := NewFetcher(NewPacer(time.Millisecond))
	cache := OpenCache(filepath.Join(t.TempDir(), "cache.json"), 0)
	resolver := NewResolver(fetcher, cache, DefaultSelectors())
	scraper := NewScraperStrategy(fetcher, resolver, DefaultSelectors(), srv.URL)

	list, err := scraper.Fetch(context.Background(), "alice")

	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Len(t, pageRequests, 2, "no request should be issued past the last next link")
}

// TestScraper_AltTextTitleFallback verifies the image alt text supplies the
// title when the name attribute is missing
func TestScraper_AltTextTitleFallback(t *testing.T) {
	item := `<li class="griditem">` +
		`<div class="react-component" data-component-class="LazyPoster" data-item-slug="alt-film" data-item-link="/film/alt-film/">` +
		`<img class="image" alt="Alt Film (1987)"/></div></li>`
	pages := map[int]string{1: watchlistPage([]string{item}, false)}
	scraper, _, _ := newTestScraper(t, pages)

	list, err := scraper.Fetch(context.Background(), "alice")

	require.NoError(t, err)
	require.NotNil(t, list["alt-film"])
	assert.Equal(t, "Alt Film", list["alt-film"].Name)
	assert.Equal(t, "1987", list["alt-film"].Year)
}

// TestScraper_ItemWithoutSlugSkipped verifies unparseable items are skipped
// without aborting the page
func TestScraper_ItemWithoutSlugSkipped(t *testing.T) {
	noSlug := `<li class="griditem"><div class="react-component" data-component-class="LazyPoster" data-item-name="Mystery"></div></li>`
	pages := map[int]string{
		1: watchlistPage([]string{
			noSlug,
			posterItem("example-movie", "Example Movie (2021)", "/film/example-movie/"),
		}, false),
	}
	scraper, _, _ := newTestScraper(t, pages)

	list, err := scraper.Fetch(context.Background(), "alice")

	require.NoError(t, err)
	assert.Len(t, list, 1, "slugless items are discarded")
	assert.NotNil(t, list["example-movie"])
}

// TestScraper_SynthesizedURL verifies the detail URL is built from the slug
// when the link attribute is absent
func TestScraper_SynthesizedURL(t *testing.T) {
	pages := map[int]string{
		1: watchlistPage([]string{posterItem("example-movie", "Example Movie (2021)", "")}, false),
	}
	scraper, _, srv := newTestScraper(t, pages)

	list, err := scraper.Fetch(context.Background(), "alice")

	require.NoError(t, err)
	require.NotNil(t, list["example-movie"])
	assert.Equal(t, srv.URL+"/film/example-movie/", list["example-movie"].URL)
}

// TestScraper_EnrichmentFailureSkipsItem verifies an unexpected detail-page
// status drops only the affected item
func TestScraper_EnrichmentFailureSkipsItem(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/film/good-film/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(filmPageHTML))
	})
	mux.HandleFunc("/film/bad-film/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/alice/watchlist/page/1/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(watchlistPage([]string{
			posterItem("good-film", "Good Film (2020)", "/film/good-film/"),
			posterItem("bad-film", "Bad Film (2020)", "/film/bad-film/"),
		}, false)))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	fetcher := NewFetcher(NewPacer(time.Millisecond))
	cache := OpenCache(filepath.Join(t.TempDir(), "cache.json"), 0)
	resolver := NewResolver(fetcher, cache, DefaultSelectors())
	scraper := NewScraperStrategy(fetcher, resolver, DefaultSelectors(), srv.URL)

	list, err := scraper.Fetch(context.Background(), "alice")

	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.NotNil(t, list["good-film"])
	assert.Nil(t, list["bad-film"])
}

// TestScraper_ErrorsAreStrategyFailures verifies first-page failures
// classify as strategy-unavailable so the chain escalates
func TestScraper_ErrorsAreStrategyFailures(t *testing.T) {
	fetcher := NewFetcher(NewPacer(time.Millisecond))
	cache := OpenCache(filepath.Join(t.TempDir(), "cache.json"), 0)
	resolver := NewResolver(fetcher, cache, DefaultSelectors())
	scraper := NewScraperStrategy(fetcher, resolver, DefaultSelectors(), "http://127.0.0.1:1")

	_, err := scraper.Fetch(context.Background(), "alice")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStrategyUnavailable))
}

package watchfeed

import (
	"encoding/json"
	"log"
	"os"
	"regexp"
)

// WatchlistSelectors defines how entries are extracted from rendered
// watchlist pages.
type WatchlistSelectors struct {
	Container   string              `json:"container"`
	Item        string              `json:"item"`
	PosterDiv   string              `json:"poster_div"`
	AttrSlug    string              `json:"poster_attr_slug"`
	AttrID      string              `json:"poster_attr_id"`
	AttrName    string              `json:"poster_attr_name"`
	AttrLink    string              `json:"poster_attr_link"`
	YearPattern string              `json:"year_pattern"`
	Pagination  PaginationSelectors `json:"pagination"`
}

// PaginationSelectors defines how the next-page link is located.
type PaginationSelectors struct {
	NextPage string `json:"next_page"`
}

// FilmPageSelectors defines how external-database links are located on a
// film's detail page.
type FilmPageSelectors struct {
	ImdbLink string `json:"imdb_link"`
	TmdbLink string `json:"tmdb_link"`
}

// Selectors holds the full extraction rule set used by the markup scraper
// and the identifier resolver. A selector document on disk can override the
// built-in defaults wholesale; callers never see a partial rule set.
type Selectors struct {
	Watchlist WatchlistSelectors `json:"watchlist"`
	FilmPage  FilmPageSelectors  `json:"film_page"`
}

// DefaultSelectors returns the built-in extraction rules matching the site's
// current React frontend.
func DefaultSelectors() *Selectors {
	return &Selectors{
		Watchlist: WatchlistSelectors{
			Container:   "ul.grid",
			Item:        "li.griditem",
			PosterDiv:   "div.react-component[data-component-class='LazyPoster']",
			AttrSlug:    "data-item-slug",
			AttrID:      "data-film-id",
			AttrName:    "data-item-name",
			AttrLink:    "data-item-link",
			YearPattern: `\((\d{4})\)$`,
			Pagination:  PaginationSelectors{NextPage: "a.next"},
		},
		FilmPage: FilmPageSelectors{
			ImdbLink: "a[href*='imdb.com']",
			TmdbLink: "a[href*='themoviedb.org']",
		},
	}
}

// LoadSelectors reads a selector document from path. Any failure -- missing
// file, malformed JSON, or an incomplete rule set -- substitutes the full
// built-in defaults rather than a merge.
func LoadSelectors(path string) *Selectors {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("WARN: Failed to read selectors from %s, using defaults: %v", path, err)
		}
		return DefaultSelectors()
	}

	var sel Selectors
	if err := json.Unmarshal(data, &sel); err != nil {
		log.Printf("WARN: Failed to parse selectors from %s, using defaults: %v", path, err)
		return DefaultSelectors()
	}

	if !sel.complete() {
		log.Printf("WARN: Selector document %s is incomplete, using defaults", path)
		return DefaultSelectors()
	}

	log.Printf("INFO: Selectors loaded from %s", path)
	return &sel
}

// complete reports whether every required rule is present.
func (s *Selectors) complete() bool {
	w := s.Watchlist
	return w.Container != "" &&
		w.Item != "" &&
		w.AttrSlug != "" &&
		w.AttrName != "" &&
		w.YearPattern != "" &&
		w.Pagination.NextPage != "" &&
		s.FilmPage.ImdbLink != "" &&
		s.FilmPage.TmdbLink != ""
}

// yearRegexp compiles the configured year-extraction pattern, falling back
// to the built-in pattern if the configured one does not compile.
func (s *Selectors) yearRegexp() *regexp.Regexp {
	re, err := regexp.Compile(s.Watchlist.YearPattern)
	if err != nil {
		log.Printf("WARN: Invalid year pattern %q, using default: %v", s.Watchlist.YearPattern, err)
		return regexp.MustCompile(DefaultSelectors().Watchlist.YearPattern)
	}
	return re
}

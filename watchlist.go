package watchfeed

import (
	"regexp"
	"strings"
	"unicode"
)

// Kind distinguishes movies from TV shows. Entries default to movie and are
// upgraded to show only when a TV-typed external identifier is found.
type Kind string

const (
	KindMovie Kind = "movie"
	KindShow  Kind = "show"
)

// Entry is one item on a user's watchlist. Slug is the stable identifier for
// the film on the site and is the key used for the identifier cache; entries
// without a slug are discarded before enrichment.
type Entry struct {
	Slug   string `json:"slug"`
	Name   string `json:"name"`
	Year   string `json:"year,omitempty"`
	FilmID string `json:"film_id,omitempty"`
	URL    string `json:"url"`
	ImdbID string `json:"imdb_id,omitempty"`
	TmdbID string `json:"tmdb_id,omitempty"`
	Kind   Kind   `json:"kind"`
}

// Watchlist maps film slug to entry.
type Watchlist map[string]*Entry

// splitTitleYear splits a raw display title into a clean title and an
// optional 4-digit year using the given year pattern. When the pattern does
// not match, the title is returned unmodified and the year is empty.
func splitTitleYear(raw string, yearPattern *regexp.Regexp) (title, year string) {
	match := yearPattern.FindStringSubmatch(raw)
	if match == nil {
		return raw, ""
	}
	title = strings.TrimSpace(yearPattern.ReplaceAllString(raw, ""))
	return title, match[1]
}

// filmURL builds the canonical detail-page URL for a film slug.
func filmURL(base, slug string) string {
	return strings.TrimSuffix(base, "/") + "/film/" + slug + "/"
}

// titleFromSlug synthesizes a human-readable title from a film slug by
// replacing hyphens with spaces and title-casing each word.
func titleFromSlug(slug string) string {
	words := strings.Split(slug, "-")
	for i, word := range words {
		if word == "" {
			continue
		}
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

package watchfeed

import (
	"encoding/xml"
	"fmt"
	"sort"
	"time"
)

// generatorTag identifies this tool in emitted feed documents.
const generatorTag = "watchfeed"

type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Generator     string    `xml:"generator"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title    string  `xml:"title"`
	Link     string  `xml:"link"`
	GUID     rssGUID `xml:"guid"`
	Category string  `xml:"category"`
	ImdbID   string  `xml:"imdbId,omitempty"`
	TmdbID   string  `xml:"tmdbId,omitempty"`
}

type rssGUID struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

// BuildFeed converts a watchlist mapping into an RSS 2.0 document. It is a
// pure transformation: deterministic for the same mapping and build time,
// with entries ordered by slug. Each item's GUID prefers the IMDb title URL,
// then the TMDb URL (using the TV path for shows), then the entry's own URL.
func BuildFeed(username string, list Watchlist, buildTime time.Time) ([]byte, error) {
	slugs := make([]string, 0, len(list))
	for slug := range list {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	items := make([]rssItem, 0, len(list))
	for _, slug := range slugs {
		items = append(items, entryToItem(list[slug]))
	}

	doc := rssDocument{
		Version: "2.0",
		Channel: rssChannel{
			Title:         username + " Watchlist",
			Link:          fmt.Sprintf("%s/%s/watchlist/", defaultBaseURL, username),
			Description:   fmt.Sprintf("Letterboxd watchlist for %s", username),
			LastBuildDate: buildTime.UTC().Format("Mon, 02 Jan 2006 15:04:05") + " GMT",
			Generator:     generatorTag,
			Items:         items,
		},
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal feed: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

func entryToItem(entry *Entry) rssItem {
	title := entry.Name
	if entry.Year != "" {
		title = fmt.Sprintf("%s (%s)", entry.Name, entry.Year)
	}

	var guid string
	switch {
	case entry.ImdbID != "":
		guid = fmt.Sprintf("https://www.imdb.com/title/%s/", entry.ImdbID)
	case entry.TmdbID != "":
		tmdbKind := "movie"
		if entry.Kind == KindShow {
			tmdbKind = "tv"
		}
		guid = fmt.Sprintf("https://www.themoviedb.org/%s/%s", tmdbKind, entry.TmdbID)
	default:
		guid = entry.URL
	}

	return rssItem{
		Title:    title,
		Link:     entry.URL,
		GUID:     rssGUID{IsPermaLink: "true", Value: guid},
		Category: "letterboxd",
		ImdbID:   entry.ImdbID,
		TmdbID:   entry.TmdbID,
	}
}

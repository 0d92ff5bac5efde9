package watchfeed

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

// Options configures an Engine.
type Options struct {
	// Client is an optional pre-built watchlist client for the primary
	// retrieval path. When nil the engine starts at the markup scraper.
	Client WatchlistClient

	// Selectors overrides the extraction rules. Nil uses the defaults.
	Selectors *Selectors

	// Cache is the identifier cache. Nil uses an in-memory cache that is
	// never persisted.
	Cache *Cache

	// RequestSpacing is the minimum delay between outbound requests. Zero
	// uses the default of two seconds.
	RequestSpacing time.Duration

	// BaseURL overrides the site base URL, for tests.
	BaseURL string

	// ForceScraper skips the library strategy even when a client is set.
	ForceScraper bool
}

// Engine runs the retrieval chain for one user at a time: library client,
// then markup scraper, then syndication fallback. All outbound requests
// share one pacer and one identifier cache. The engine is single-threaded;
// pages are fetched in order and entries enriched in extraction order.
type Engine struct {
	cache      *Cache
	strategies []Strategy
	scraper    *ScraperStrategy
}

// NewEngine wires the strategy chain from the given options.
func NewEngine(opts Options) *Engine {
	sel := opts.Selectors
	if sel == nil {
		sel = DefaultSelectors()
	}
	cache := opts.Cache
	if cache == nil {
		cache = OpenCache("", 0)
	}
	base := opts.BaseURL
	if base == "" {
		base = defaultBaseURL
	}

	fetcher := NewFetcher(NewPacer(opts.RequestSpacing))
	resolver := NewResolver(fetcher, cache, sel)
	scraper := NewScraperStrategy(fetcher, resolver, sel, base)

	var strategies []Strategy
	if !opts.ForceScraper {
		strategies = append(strategies, NewLibraryStrategy(opts.Client, resolver, sel, base))
	}
	strategies = append(strategies,
		scraper,
		NewFeedStrategy(fetcher, resolver, base),
	)

	return &Engine{cache: cache, strategies: strategies, scraper: scraper}
}

// FetchWatchlist retrieves one user's watchlist, trying each strategy in
// order until one succeeds. The terminal fallback degrades to an empty
// mapping rather than failing, so an error here means every strategy
// including the fallback was unable to run.
func (e *Engine) FetchWatchlist(ctx context.Context, username string) (Watchlist, error) {
	var lastErr error
	for _, strategy := range e.strategies {
		list, err := strategy.Fetch(ctx, username)
		if err != nil {
			log.Printf("WARN: Strategy %s failed for %q: %v", strategy.Name(), username, err)
			lastErr = err
			continue
		}
		return list, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no retrieval strategy configured")
	}
	return nil, lastErr
}

// CheckSelectors probes the markup scraper alone and reports how many
// entries the active selectors extracted. Used to detect site markup changes
// without touching the other strategies.
func (e *Engine) CheckSelectors(ctx context.Context, username string) (int, error) {
	list, err := e.scraper.Fetch(ctx, username)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

// UserResult records the outcome of one user's retrieval within a batch.
type UserResult struct {
	Username string
	Entries  int
	Err      error
}

// RunStats summarizes one batch invocation.
type RunStats struct {
	StartedAt      time.Time
	FinishedAt     time.Time
	UsersProcessed int
	UsersFailed    int
	TotalEntries   int
	Results        []UserResult
}

// BatchConfig configures RunBatch.
type BatchConfig struct {
	// OutputDir receives one <username>.xml feed file per user.
	OutputDir string

	// MinUserDelay and MaxUserDelay bound the randomized pause between
	// users. Both zero disables the pause.
	MinUserDelay time.Duration
	MaxUserDelay time.Duration

	// DryRun skips writing feed files.
	DryRun bool
}

// RunBatch processes users strictly in sequence, writing one feed document
// per successful user. A failed user yields zero entries and a recorded
// error; other users are unaffected. The identifier cache is flushed once at
// the end of the batch.
func (e *Engine) RunBatch(ctx context.Context, usernames []string, cfg BatchConfig) *RunStats {
	stats := &RunStats{StartedAt: time.Now().UTC()}

	for i, username := range usernames {
		log.Printf("INFO: [%d/%d] %s", i+1, len(usernames), username)

		result := UserResult{Username: username}
		list, err := e.FetchWatchlist(ctx, username)
		if err == nil && !cfg.DryRun {
			err = e.writeFeed(username, list, cfg.OutputDir)
		}

		if err != nil {
			log.Printf("ERROR: %s failed: %v", username, err)
			result.Err = err
			stats.UsersFailed++
		} else {
			result.Entries = len(list)
			stats.UsersProcessed++
			stats.TotalEntries += len(list)
			log.Printf("INFO: %s: %d films", username, len(list))
		}
		stats.Results = append(stats.Results, result)

		if i < len(usernames)-1 && cfg.MaxUserDelay > 0 {
			delay := cfg.MinUserDelay
			if spread := cfg.MaxUserDelay - cfg.MinUserDelay; spread > 0 {
				delay += time.Duration(rand.Int63n(int64(spread)))
			}
			log.Printf("INFO: Waiting %s before next user...", delay.Round(100*time.Millisecond))
			time.Sleep(delay)
		}
	}

	if err := e.cache.Save(); err != nil {
		log.Printf("ERROR: Failed to save identifier cache: %v", err)
	}

	stats.FinishedAt = time.Now().UTC()
	return stats
}

func (e *Engine) writeFeed(username string, list Watchlist, outputDir string) error {
	data, err := BuildFeed(username, list, time.Now())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(outputDir, username+".xml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write feed file: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/pevans/watchfeed"
	"github.com/pevans/watchfeed/config"
)

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configPath := flag.String("config", getEnv("WATCHFEED_CONFIG", "watchfeed.yaml"), "Path to config file (WATCHFEED_CONFIG)")
	testUser := flag.String("test", "", "Dry-run a single user instead of the configured batch")
	checkSelectors := flag.Bool("check-selectors", false, "Probe whether the scraper selectors still match the site")
	forceScraper := flag.Bool("force-scraper", false, "Skip the library strategy and start at the markup scraper")

	flag.Parse()

	ctx := context.Background()

	if *testUser != "" || *checkSelectors {
		// Single-user modes don't need a config file; use defaults.
		engine := watchfeed.NewEngine(watchfeed.Options{
			Selectors:    watchfeed.LoadSelectors(config.Default().SelectorsPath),
			ForceScraper: *forceScraper,
		})

		user := *testUser
		if user == "" {
			user = flag.Arg(0)
		}
		if user == "" {
			log.Fatal("no username given")
		}

		if *checkSelectors {
			count, err := engine.CheckSelectors(ctx, user)
			if err != nil {
				log.Fatalf("Selectors NOT working: %v", err)
			}
			log.Printf("INFO: Selectors working, %d films found for %s", count, user)
			return
		}

		stats := engine.RunBatch(ctx, []string{user}, watchfeed.BatchConfig{DryRun: true})
		if stats.UsersFailed > 0 {
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	cache := watchfeed.OpenCache(cfg.CachePath, cfg.CacheTTL)
	engine := watchfeed.NewEngine(watchfeed.Options{
		Selectors:      watchfeed.LoadSelectors(cfg.SelectorsPath),
		Cache:          cache,
		RequestSpacing: cfg.RequestSpacing,
		ForceScraper:   *forceScraper,
	})

	log.Printf("INFO: Processing %d users", len(cfg.Usernames))
	stats := engine.RunBatch(ctx, cfg.Usernames, watchfeed.BatchConfig{
		OutputDir:    cfg.OutputDir,
		MinUserDelay: cfg.MinUserDelay,
		MaxUserDelay: cfg.MaxUserDelay,
	})

	store, err := watchfeed.NewRunStore(cfg.StatusDB)
	if err != nil {
		log.Printf("ERROR: Failed to open run store: %v", err)
	} else {
		defer store.Close()
		if _, err := store.RecordRun(stats); err != nil {
			log.Printf("ERROR: Failed to record run: %v", err)
		}
	}

	log.Printf("INFO: Success: %d/%d users, %d films total",
		stats.UsersProcessed, len(cfg.Usernames), stats.TotalEntries)

	if stats.UsersFailed > 0 && stats.UsersProcessed == 0 {
		os.Exit(1)
	}
}

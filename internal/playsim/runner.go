package playsim

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/playstats/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// Run executes the complete simulation: health check, baseline, submit,
// then verification of counters and leaderboard.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Get().Named("playsim")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting play simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("events", cfg.NumEvents),
		logger.Int("groups", cfg.Groups),
		logger.Int("workers", cfg.Workers),
		logger.Int("topN", cfg.TopN),
	)

	c := newClient(cfg.BaseURL, cfg.Timeout)

	// Step 1: Check service health
	if err := c.getJSON(ctx, "/healthz", nil); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate plays
	events, generated := generate(cfg, time.Now())
	stats.EventsGenerated = len(events)

	// Step 3: Read the counters this run will move
	base, err := baseline(ctx, c, generated)
	if err != nil {
		return stats, err
	}

	// Step 4: Submit concurrently
	submit(ctx, cfg, c, events, stats)
	if stats.EventsFailed > 0 {
		return stats, fmt.Errorf("%d of %d plays were not accepted", stats.EventsFailed, stats.EventsSubmitted)
	}

	// Step 5: Wait for accrual and verify
	expected := base
	for g, n := range generated {
		expected[g] += n
	}
	if err := verify(ctx, cfg, c, expected, stats); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}

	if cfg.OutputFile != "" {
		if err := saveEvents(cfg.OutputFile, events); err != nil {
			log.Warn(ctx, "failed to save plays to file", logger.Error(err))
		}
	}

	stats.Duration = time.Since(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// saveEvents writes the submitted plays as a JSON array.
func saveEvents(filename string, events []Event) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal plays: %w", err)
	}
	return os.WriteFile(filename, data, filePermission)
}

func displayFinalStats(ctx context.Context, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.EventsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Named("playsim").Info(ctx, "final statistics",
		logger.Int("eventsGenerated", stats.EventsGenerated),
		logger.Int("eventsSubmitted", stats.EventsSubmitted),
		logger.Int("eventsAccepted", stats.EventsAccepted),
		logger.Int("eventsDuplicate", stats.EventsDuplicate),
		logger.Int("eventsRetried", stats.EventsRetried),
		logger.Int("eventsFailed", stats.EventsFailed),
		logger.Int("groupsVerified", stats.GroupsVerified),
		logger.Int("leaderboardEntries", stats.LeaderboardTopN),
		logger.Duration("duration", stats.Duration),
		logger.Any("eventsPerSecond", perSecond),
	)
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/playstats/internal/playsim"
	"github.com/okian/playstats/pkg/logger"
)

// Default configuration constants.
const (
	defaultNumEvents    = 10000
	defaultGroups       = 200
	defaultTopN         = 50
	defaultWorkers      = 2 // multiplier for runtime.NumCPU()
	defaultTimeout      = 10 * time.Second
	defaultWait         = time.Minute
	defaultPollInterval = 250 * time.Millisecond
	defaultRunTimeout   = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numEvents  = flag.Int("events", defaultNumEvents, "Number of plays to submit")
		groups     = flag.Int("groups", defaultGroups, "Number of distinct groups")
		topN       = flag.Int("top", defaultTopN, "Leaderboard entries to verify")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		wait       = flag.Duration("wait", defaultWait, "How long to wait for accrual")
		seed       = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Seed for the play distribution")
		outputFile = flag.String("output", "", "Write the submitted plays to this JSON file")
		logFormat  = flag.String("log-format", "text", "text or json")
		verbose    = flag.Bool("verbose", false, "Log progress while submitting")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		playsim.ShowHelp()
		return
	}

	if err := logger.Init(logger.WithFormat(*logFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	cfg := &playsim.Config{
		BaseURL:      *baseURL,
		NumEvents:    max(*numEvents, 1),
		Groups:       max(*groups, 1),
		TopN:         max(*topN, 1),
		Workers:      max(*workers, 1),
		Timeout:      *timeout,
		WaitTimeout:  *wait,
		PollInterval: defaultPollInterval,
		Seed:         *seed,
		OutputFile:   *outputFile,
		Verbose:      *verbose,
	}

	if _, err := playsim.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		os.Exit(1)
	}
}

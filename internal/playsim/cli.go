package playsim

import (
	"os"
)

// ShowHelp prints usage information for the play simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Play Simulator
==============

Submits synthetic plays to a running playstats service and verifies the
group counters and the leaderboard afterwards.

Usage:
  go run ./cmd/play-sim [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -events int
        Number of plays to submit (default 10000)
  -groups int
        Number of distinct groups (default 200)
  -top int
        Leaderboard entries to verify (default 50)
  -workers int
        Number of concurrent submitters (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 10s)
  -wait duration
        How long to wait for accrual (default 1m)
  -seed uint
        Seed for the play distribution (default: current time)
  -output string
        Write the submitted plays to this JSON file
  -log-format string
        text or json (default "text")
  -verbose
        Log progress while submitting
  -help
        Show this help message

Examples:
  go run ./cmd/play-sim -events 50000 -workers 16 -url http://localhost:8080
`)
}

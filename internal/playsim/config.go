// Package playsim drives a running playstats service with synthetic plays
// and checks that the counters and the leaderboard add up.
package playsim

import (
	"time"

	"github.com/okian/playstats/internal/domain/model"
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL      string        // Base URL of the service
	NumEvents    int           // Number of plays to submit
	Groups       int           // Number of distinct groups
	TopN         int           // Leaderboard entries to check
	Workers      int           // Concurrent submitters
	Timeout      time.Duration // HTTP request timeout
	WaitTimeout  time.Duration // How long to wait for accrual to catch up
	PollInterval time.Duration
	Seed         uint64
	OutputFile   string // Optional JSON dump of the submitted plays
	Verbose      bool
}

// Event is the wire shape of POST /plays.
type Event = model.PlayEvent

// Entry mirrors a leaderboard row.
type Entry struct {
	Rank    int   `json:"rank"`
	GroupID int64 `json:"group_id"`
	Count   int64 `json:"count"`
}

type groupCount struct {
	GroupID int64 `json:"group_id"`
	Count   int64 `json:"count"`
}

// AckResponse represents the response from play submission.
type AckResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// Stats holds run statistics.
type Stats struct {
	EventsGenerated int
	EventsSubmitted int
	EventsAccepted  int
	EventsDuplicate int
	EventsRetried   int
	EventsFailed    int
	GroupsVerified  int
	LeaderboardTopN int
	StartTime       time.Time
	Duration        time.Duration
}

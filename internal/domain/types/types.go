// Package types contains common types used across the application
package types

// Entry represents a leaderboard entry
type Entry struct {
	Rank    int   `json:"rank"`
	GroupID int64 `json:"group_id"`
	Count   int64 `json:"count"`
}

// GroupCount is the point lookup response for one group.
type GroupCount struct {
	GroupID int64 `json:"group_id"`
	Count   int64 `json:"count"`
}

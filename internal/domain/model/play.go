// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// UnknownSongTitle is stored when a play event carries no title.
const UnknownSongTitle = "Unknown Song"

// ErrInvalidArgument reports a malformed identifier or argument.
var ErrInvalidArgument = errors.New("invalid argument")

// GroupID identifies a chat/group. Group chats use negative identifiers,
// zero is never a valid chat.
type GroupID int64

// Validate reports ErrInvalidArgument for the zero identifier.
func (g GroupID) Validate() error {
	if g == 0 {
		return fmt.Errorf("%w: group id must be nonzero", ErrInvalidArgument)
	}
	return nil
}

// String renders the identifier in base 10.
func (g GroupID) String() string {
	return strconv.FormatInt(int64(g), 10)
}

// ParseGroupID parses a base-10 group identifier.
func ParseGroupID(s string) (GroupID, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: group id %q", ErrInvalidArgument, s)
	}
	g := GroupID(v)
	if err := g.Validate(); err != nil {
		return 0, err
	}
	return g, nil
}

// GroupCounter is the stored play count of one group.
type GroupCounter struct {
	GroupID GroupID
	Count   int64
}

// PlayRecord is one immutable entry of play history.
type PlayRecord struct {
	ID        string
	GroupID   GroupID
	UserID    int64
	SongTitle string
	PlayedAt  time.Time
}

// PlayEvent is a successful playback start reported by the bot.
type PlayEvent struct {
	EventID   string    `json:"event_id"` // optional; enables idempotent ingestion
	GroupID   GroupID   `json:"group_id"`
	UserID    int64     `json:"user_id"`
	SongTitle string    `json:"song_title"`
	PlayedAt  time.Time `json:"played_at"`
}

// Validate checks the fields required to accrue the event.
func (e PlayEvent) Validate() error {
	if err := e.GroupID.Validate(); err != nil {
		return err
	}
	if e.UserID < 0 {
		return fmt.Errorf("%w: user id must not be negative", ErrInvalidArgument)
	}
	return nil
}

// Record converts the event into a history record, defaulting the title
// and timestamp.
func (e PlayEvent) Record(id string, now time.Time) PlayRecord {
	title := strings.TrimSpace(e.SongTitle)
	if title == "" {
		title = UnknownSongTitle
	}
	at := e.PlayedAt
	if at.IsZero() {
		at = now
	}
	return PlayRecord{
		ID:        id,
		GroupID:   e.GroupID,
		UserID:    e.UserID,
		SongTitle: title,
		PlayedAt:  at.UTC(),
	}
}

// Outcome reports what happened to one playback. The two steps are
// independent: a play may be counted while its history record is lost.
type Outcome struct {
	Count    int64 // count after the increment; 0 when not accrued
	Accrued  bool
	Recorded bool
	Err      error // first failure seen, for logging only
}

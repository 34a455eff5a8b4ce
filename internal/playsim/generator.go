package playsim

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/okian/playstats/internal/domain/model"
)

// Group ids are negative like chat ids of group chats.
const firstGroupID = -1_000_000

const zipfSkew = 1.2

var songTitles = []string{
	"Bohemian Rhapsody",
	"Smells Like Teen Spirit",
	"Billie Jean",
	"Hotel California",
	"Wonderwall",
	"",
}

// generate returns cfg.NumEvents plays spread over cfg.Groups groups with a
// Zipf skew, so a few groups dominate the leaderboard and the tail ties.
func generate(cfg *Config, now time.Time) ([]Event, map[model.GroupID]int64) {
	r := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x5bd1e995))
	var zipf *rand.Zipf
	if cfg.Groups > 1 {
		zipf = rand.NewZipf(r, zipfSkew, 1, uint64(cfg.Groups-1))
	}

	events := make([]Event, cfg.NumEvents)
	perGroup := make(map[model.GroupID]int64, cfg.Groups)
	for i := range events {
		var offset uint64
		if zipf != nil {
			offset = zipf.Uint64()
		}
		group := model.GroupID(firstGroupID - int64(offset))
		perGroup[group]++

		events[i] = Event{
			EventID:   uuid.NewString(),
			GroupID:   group,
			UserID:    1 + r.Int64N(1000),
			SongTitle: songTitles[r.IntN(len(songTitles))],
			PlayedAt:  now.Add(-time.Duration(r.IntN(3600)) * time.Second).UTC(),
		}
	}
	return events, perGroup
}

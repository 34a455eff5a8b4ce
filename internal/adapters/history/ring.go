package history

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/okian/playstats/internal/adapters/repository"
	"github.com/okian/playstats/internal/domain/model"
)

const defaultPerGroupCap = 100

var (
	_ Recorder = (*Ring)(nil)
	_ Reader   = (*Ring)(nil)
)

// Ring keeps the most recent records of each group in memory, evicting the
// oldest record once a group reaches its cap.
type Ring struct {
	mu     sync.Mutex
	cap    int
	groups map[model.GroupID]*ring
	total  atomic.Int64

	unavailable atomic.Bool
}

type ring struct {
	buf   []model.PlayRecord
	start int
	n     int
}

func (r *ring) push(rec model.PlayRecord) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = rec
		r.n++
		return
	}
	r.buf[r.start] = rec
	r.start = (r.start + 1) % len(r.buf)
}

// newest returns up to limit records, newest first.
func (r *ring) newest(limit int) []model.PlayRecord {
	if limit <= 0 || limit > r.n {
		limit = r.n
	}
	out := make([]model.PlayRecord, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, r.buf[(r.start+r.n-1-i)%len(r.buf)])
	}
	return out
}

// NewRing creates a recorder keeping up to perGroup records per group.
func NewRing(perGroup int) *Ring {
	if perGroup < 1 {
		perGroup = defaultPerGroupCap
	}
	return &Ring{
		cap:    perGroup,
		groups: make(map[model.GroupID]*ring),
	}
}

// SetAvailable toggles simulated storage availability.
func (h *Ring) SetAvailable(ok bool) {
	h.unavailable.Store(!ok)
}

// Append implements Recorder.
func (h *Ring) Append(ctx context.Context, rec model.PlayRecord) error {
	if err := rec.GroupID.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return repository.Unavailable("history.append", err)
	}
	if h.unavailable.Load() {
		return repository.Unavailable("history.append", errOffline)
	}

	h.mu.Lock()
	r, ok := h.groups[rec.GroupID]
	if !ok {
		r = &ring{buf: make([]model.PlayRecord, h.cap)}
		h.groups[rec.GroupID] = r
	}
	r.push(rec)
	h.mu.Unlock()

	h.total.Add(1)
	return nil
}

// Recent implements Reader. A limit <= 0 returns every retained record.
func (h *Ring) Recent(ctx context.Context, group model.GroupID, limit int) ([]model.PlayRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, repository.Unavailable("history.recent", err)
	}
	if h.unavailable.Load() {
		return nil, repository.Unavailable("history.recent", errOffline)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.groups[group]
	if !ok {
		return nil, nil
	}
	return r.newest(limit), nil
}

// Total returns how many records were ever appended.
func (h *Ring) Total() int64 {
	return h.total.Load()
}

// Package service wires the counter store, play history and leaderboard
// into the operations used by the bot, the HTTP API and the ingestion
// workers.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/playstats/internal/adapters/history"
	eventqueue "github.com/okian/playstats/internal/adapters/mq/queue"
	workerpool "github.com/okian/playstats/internal/adapters/mq/worker"
	"github.com/okian/playstats/internal/adapters/repository"
	"github.com/okian/playstats/internal/domain/dedupe"
	"github.com/okian/playstats/internal/domain/leaderboard"
	"github.com/okian/playstats/internal/domain/model"
	"github.com/okian/playstats/internal/domain/types"
	"github.com/okian/playstats/pkg/logger"
	"github.com/okian/playstats/pkg/metrics"
)

// ErrHistoryDisabled is returned by RecentPlays when no readable history is
// configured. It matches repository.ErrNotFound.
var ErrHistoryDisabled = fmt.Errorf("play history disabled: %w", repository.ErrNotFound)

// ErrNotStarted is returned by operations that need the ingestion pipeline.
var ErrNotStarted = errors.New("service not started")

// Service implements the accrual and query operations.
type Service struct {
	mu sync.RWMutex

	store   repository.Store
	history history.Recorder // nil when disabled
	board   *leaderboard.Board

	deduper    dedupe.Deduper
	eventQueue *eventqueue.InMemoryQueue
	workerPool *workerpool.Pool

	workerCount int
	queueSize   int
	dedupeSize  int

	now   func() time.Time
	newID func() string

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the counter store. Middlewares are applied by the caller.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithHistory enables play history on rec.
func WithHistory(rec history.Recorder) Option {
	return func(s *Service) {
		s.history = rec
	}
}

// WithWorkerCount sets the number of ingestion workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the ingestion queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the remembered event ids.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used to stamp plays.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how play record ids are generated.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// New constructs a Service. Without WithStore it counts in memory.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 2,
		queueSize:   10000,
		dedupeSize:  dedupe.DefaultMaxSize,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = repository.NewTreapStore()
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.board = leaderboard.New(s.store)
	s.deduper = dedupe.New(dedupe.WithMaxSize(s.dedupeSize))
	return s
}

// Start creates the ingestion queue and worker pool. Workers outlive ctx:
// they stop only in Stop, after the queue is drained.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.eventQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s)
	s.workerPool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "play stats service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.Bool("history", s.history != nil),
	)
	return nil
}

// Stop drains queued events and closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	if err := s.workerPool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
	}
	if closer, ok := s.store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			s.logger.Error(ctx, "error closing store", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "play stats service stopped")
}

// IncrementGroupPlayCount atomically adds one play to group and returns the
// new count.
func (s *Service) IncrementGroupPlayCount(ctx context.Context, group model.GroupID) (int64, error) {
	n, err := s.store.Increment(ctx, group)
	if err != nil {
		return 0, fmt.Errorf("increment group %s: %w", group, err)
	}
	metrics.RecordPlayAccrued()
	return n, nil
}

// SavePlayData appends a history record stamped with the current time. It
// is a no-op when history is disabled.
func (s *Service) SavePlayData(ctx context.Context, group model.GroupID, user int64, title string) error {
	e := model.PlayEvent{GroupID: group, UserID: user, SongTitle: title}
	if err := e.Validate(); err != nil {
		return err
	}
	return s.save(ctx, e)
}

func (s *Service) save(ctx context.Context, e model.PlayEvent) error {
	if s.history == nil {
		return nil
	}
	if err := s.history.Append(ctx, e.Record(s.newID(), s.now())); err != nil {
		return fmt.Errorf("save play of group %s: %w", e.GroupID, err)
	}
	metrics.RecordHistoryAppend()
	return nil
}

// TopGroups returns up to k leaderboard entries.
func (s *Service) TopGroups(ctx context.Context, k int) ([]types.Entry, error) {
	return s.board.Top(ctx, k)
}

// GroupRank returns the entry at 0-based position index.
func (s *Service) GroupRank(ctx context.Context, index int) (types.Entry, error) {
	return s.board.RankAt(ctx, index)
}

// GroupCount returns the count of group, 0 when it never played.
func (s *Service) GroupCount(ctx context.Context, group model.GroupID) (int64, error) {
	return s.store.Get(ctx, group)
}

// AddTestData is the administrative path to add one play. It goes through
// the same increment as a real playback.
func (s *Service) AddTestData(ctx context.Context, group model.GroupID) (int64, error) {
	n, err := s.IncrementGroupPlayCount(ctx, group)
	if err != nil {
		return 0, err
	}
	metrics.RecordAdminIncrement()
	s.logger.Info(ctx, "test play added",
		logger.Int64("group_id", int64(group)),
		logger.Int64("count", n),
	)
	return n, nil
}

// RecentPlays lists the newest history records of group.
func (s *Service) RecentPlays(ctx context.Context, group model.GroupID, limit int) ([]model.PlayRecord, error) {
	if err := group.Validate(); err != nil {
		return nil, err
	}
	r, ok := s.history.(history.Reader)
	if !ok {
		return nil, ErrHistoryDisabled
	}
	return r.Recent(ctx, group, limit)
}

// RecordPlayback applies one successful playback start. Counting and
// history are attempted independently and neither failure reaches the
// caller: they are logged, counted in metrics and reported in the Outcome.
func (s *Service) RecordPlayback(ctx context.Context, e model.PlayEvent) model.Outcome {
	var out model.Outcome

	if err := e.Validate(); err != nil {
		metrics.RecordAccrualFailure("invalid")
		s.logger.Warn(ctx, "playback rejected",
			logger.Int64("group_id", int64(e.GroupID)),
			logger.Error(err),
		)
		out.Err = err
		return out
	}

	n, err := s.IncrementGroupPlayCount(ctx, e.GroupID)
	if err != nil {
		metrics.RecordAccrualFailure("counter")
		s.logger.Error(ctx, "play count not incremented",
			logger.Int64("group_id", int64(e.GroupID)),
			logger.Error(err),
		)
		out.Err = err
	} else {
		out.Accrued = true
		out.Count = n
	}

	if s.history != nil {
		if err := s.save(ctx, e); err != nil {
			metrics.RecordAccrualFailure("history")
			s.logger.Error(ctx, "play history not saved",
				logger.Int64("group_id", int64(e.GroupID)),
				logger.Int64("user_id", e.UserID),
				logger.Error(err),
			)
			if out.Err == nil {
				out.Err = err
			}
		} else {
			out.Recorded = true
		}
	}
	return out
}

// SeenAndRecord reports whether event id was already ingested.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordEventDuplicate()
	}
	return seen
}

// Unrecord forgets id after a failed enqueue.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns how many event ids are remembered.
func (s *Service) Size() int64 {
	return s.deduper.Size()
}

// Enqueue submits e for asynchronous accrual. It returns false on
// backpressure or when the service is not running.
func (s *Service) Enqueue(ctx context.Context, e model.PlayEvent) bool {
	s.mu.RLock()
	q := s.eventQueue
	started := s.started
	s.mu.RUnlock()

	if !started {
		s.logger.Warn(ctx, "event dropped", logger.Error(ErrNotStarted))
		return false
	}
	return q.Enqueue(ctx, e)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"dedupeSeen":  s.deduper.Size(),
		"history":     s.history != nil,
	}

	if s.started {
		queueLen := s.eventQueue.Len(context.Background())
		stats["queueLength"] = queueLen
		stats["processed"] = s.workerPool.Processed()
		metrics.UpdateQueueSize(queueLen)
	}
	if n, ok := repository.Len(s.store); ok {
		stats["trackedGroups"] = n
	}
	return stats
}

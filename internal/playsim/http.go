package playsim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/playstats/internal/domain/model"
	"github.com/okian/playstats/pkg/logger"
)

const (
	maxSubmitAttempts = 5
	retryBaseDelay    = 50 * time.Millisecond
)

type submitResult int

const (
	resultAccepted submitResult = iota
	resultDuplicate
	resultFailed
)

// client wraps http.Client with JSON helpers.
type client struct {
	http    *http.Client
	baseURL string
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{http: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

func (c *client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(body))
	}
	if v == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *client) postPlay(ctx context.Context, e Event) (int, AckResponse, error) {
	var ack AckResponse
	data, err := json.Marshal(e)
	if err != nil {
		return 0, ack, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/plays", bytes.NewReader(data))
	if err != nil {
		return 0, ack, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, ack, err
	}
	defer func() { _ = resp.Body.Close() }()
	_ = json.NewDecoder(resp.Body).Decode(&ack)
	return resp.StatusCode, ack, nil
}

func (c *client) groupCount(ctx context.Context, group model.GroupID) (int64, error) {
	var out groupCount
	if err := c.getJSON(ctx, "/groups/"+strconv.FormatInt(int64(group), 10), &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *client) leaderboard(ctx context.Context, limit int) ([]Entry, error) {
	var out []Entry
	err := c.getJSON(ctx, "/leaderboard?limit="+strconv.Itoa(limit), &out)
	return out, err
}

// submit posts events with cfg.Workers concurrent senders. A 429 is retried
// with the same event id, so a retry never double counts.
func submit(ctx context.Context, cfg *Config, c *client, events []Event, stats *Stats) {
	log := logger.Get().Named("playsim")
	log.Info(ctx, "submitting plays", logger.Int("events", len(events)), logger.Int("workers", cfg.Workers))

	var accepted, duplicate, failed, retried, submitted atomic.Int64

	ch := make(chan Event, cfg.Workers*2)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range ch {
				res, retries := submitOne(ctx, c, e)
				submitted.Add(1)
				retried.Add(int64(retries))
				switch res {
				case resultAccepted:
					accepted.Add(1)
				case resultDuplicate:
					duplicate.Add(1)
				default:
					failed.Add(1)
				}
				if cfg.Verbose && submitted.Load()%1000 == 0 {
					log.Info(ctx, "progress", logger.Int64("submitted", submitted.Load()))
				}
			}
		}()
	}

	func() {
		defer close(ch)
		for _, e := range events {
			select {
			case <-ctx.Done():
				return
			case ch <- e:
			}
		}
	}()
	wg.Wait()

	stats.EventsSubmitted = int(submitted.Load())
	stats.EventsAccepted = int(accepted.Load())
	stats.EventsDuplicate = int(duplicate.Load())
	stats.EventsFailed = int(failed.Load())
	stats.EventsRetried = int(retried.Load())
}

func submitOne(ctx context.Context, c *client, e Event) (submitResult, int) {
	delay := retryBaseDelay
	for attempt := 0; attempt < maxSubmitAttempts; attempt++ {
		status, _, err := c.postPlay(ctx, e)
		switch {
		case err != nil:
		case status == http.StatusAccepted:
			return resultAccepted, attempt
		case status == http.StatusOK:
			return resultDuplicate, attempt
		case status != http.StatusTooManyRequests && status < http.StatusInternalServerError:
			return resultFailed, attempt
		}

		select {
		case <-ctx.Done():
			return resultFailed, attempt
		case <-time.After(delay):
		}
		delay *= 2
	}
	return resultFailed, maxSubmitAttempts - 1
}

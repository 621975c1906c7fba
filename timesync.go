package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// TimeSync estimates the local clock's offset from the Date headers of a
// few well-known servers, so a scheduled start fires on the store's clock.
type TimeSync struct {
	servers      []string
	client       *http.Client
	log          *zap.Logger
	offset       time.Duration
	lastSyncTime time.Time
	synced       bool
}

func NewTimeSync(servers []string, log *zap.Logger) *TimeSync {
	if log == nil {
		log = zap.NewNop()
	}
	return &TimeSync{
		servers: servers,
		client:  &http.Client{Timeout: 5 * time.Second},
		log:     log,
	}
}

// Sync averages the offset over every server that answers.
func (ts *TimeSync) Sync(ctx context.Context) error {
	var totalOffset time.Duration
	successCount := 0

	for _, server := range ts.servers {
		offset, err := ts.getTimeOffset(ctx, server)
		if err != nil {
			ts.log.Debug("time sync failed", zap.String("server", server), zap.Error(err))
			continue
		}

		totalOffset += offset
		successCount++
		ts.log.Debug("time offset", zap.String("server", server), zap.Duration("offset", offset))
	}

	if successCount == 0 {
		return fmt.Errorf("failed to sync time with any server")
	}

	ts.offset = totalOffset / time.Duration(successCount)
	ts.lastSyncTime = time.Now()
	ts.synced = true
	ts.log.Info("time synchronized", zap.Duration("offset", ts.offset), zap.Int("servers", successCount))
	return nil
}

func (ts *TimeSync) getTimeOffset(ctx context.Context, url string) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}

	beforeRequest := time.Now()
	resp, err := ts.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	afterRequest := time.Now()

	dateHeader := resp.Header.Get("Date")
	if dateHeader == "" {
		return 0, fmt.Errorf("no Date header in response")
	}

	serverTime, err := http.ParseTime(dateHeader)
	if err != nil {
		return 0, fmt.Errorf("failed to parse Date header: %w", err)
	}

	// Half the round trip approximates when the server stamped the header.
	latency := afterRequest.Sub(beforeRequest) / 2
	return serverTime.Sub(beforeRequest.Add(latency)), nil
}

// Now returns local time corrected by the last measured offset.
func (ts *TimeSync) Now() time.Time {
	if !ts.synced {
		return time.Now()
	}
	return time.Now().Add(ts.offset)
}

func (ts *TimeSync) IsSynced() bool {
	return ts.synced
}

func (ts *TimeSync) GetOffset() time.Duration {
	return ts.offset
}

// ShouldResync is true before the first sync and hourly after it.
func (ts *TimeSync) ShouldResync() bool {
	if !ts.synced {
		return true
	}
	return time.Since(ts.lastSyncTime) > 1*time.Hour
}

// waitUntil blocks until target on the synchronized clock, logging progress
// every tick and resyncing when the last sync is stale.
func (ts *TimeSync) waitUntil(ctx context.Context, target time.Time, tick time.Duration, sleep SleepFunc) error {
	for {
		remaining := target.Sub(ts.Now())
		if remaining <= 0 {
			return nil
		}

		if remaining <= tick {
			return sleep(ctx, remaining)
		}

		ts.log.Info("waiting for scheduled start", zap.Duration("remaining", remaining.Round(time.Second)), zap.Time("start_at", target))
		if err := sleep(ctx, tick); err != nil {
			return err
		}

		if ts.ShouldResync() && len(ts.servers) > 0 {
			if err := ts.Sync(ctx); err != nil {
				ts.log.Warn("resync failed", zap.Error(err))
			}
		}
	}
}

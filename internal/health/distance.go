package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/versusfit/versus/internal/backend"
	"github.com/versusfit/versus/internal/logging"
)

// Sync errors.
var (
	ErrSyncAlreadyRunning = errors.New("distance sync already running")
)

// ContributionAPI is the backend surface for distance contributions.
type ContributionAPI interface {
	InsertMatchDistance(ctx context.Context, row backend.MatchDistanceRow) (backend.MatchDistanceRow, error)
	WeeklyDistanceSum(ctx context.Context, userID string) (float64, error)
}

// Sync periodically reads logged distance from the health provider and pushes
// contributions for the user's active match.
type Sync struct {
	provider Provider
	api      ContributionAPI
	userID   string
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewSync creates a distance sync for the given user.
func NewSync(provider Provider, api ContributionAPI, userID string, interval time.Duration) *Sync {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Sync{
		provider: provider,
		api:      api,
		userID:   userID,
		interval: interval,
		logger:   logging.Component("distance-sync"),
	}
}

// SyncOnce reads this week's distance samples, records a contribution for the
// match, and returns the authoritative weekly sum from the backend.
func (s *Sync) SyncOnce(ctx context.Context, matchID string) (float64, error) {
	if err := s.provider.IsAvailable(ctx); err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	result, err := s.provider.QuerySamples(ctx, SampleQuery{
		SampleType: SampleDistanceWalkingRunning,
		StartDate:  weekStart(now),
		EndDate:    now,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to query distance samples: %w", err)
	}

	var meters float64
	for _, record := range result.Records {
		meters += record.Value
	}

	if _, err := s.api.InsertMatchDistance(ctx, backend.MatchDistanceRow{
		MatchID:  matchID,
		UserID:   s.userID,
		Meters:   meters,
		LoggedAt: now,
	}); err != nil {
		return 0, fmt.Errorf("failed to record distance contribution: %w", err)
	}

	total, err := s.api.WeeklyDistanceSum(ctx, s.userID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch weekly distance sum: %w", err)
	}
	return total, nil
}

// Start begins the periodic sync loop for the match.
func (s *Sync) Start(ctx context.Context, matchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSyncAlreadyRunning
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.logger.Info().
		Dur("interval", s.interval).
		Str("match_id", matchID).
		Msg("distance sync starting")

	s.wg.Add(1)
	go s.runLoop(ctx, matchID)
	return nil
}

// Stop halts the sync loop and waits for it to exit.
func (s *Sync) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

func (s *Sync) runLoop(ctx context.Context, matchID string) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SyncOnce(ctx, matchID); err != nil {
				s.logger.Warn().Err(err).Msg("distance sync failed")
			}
		}
	}
}

// weekStart returns Monday 00:00 UTC of the week containing t.
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	day := t.AddDate(0, 0, -(weekday - 1))
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/urpt/student-rotation-service/internal/events"
	"github.com/urpt/student-rotation-service/internal/metrics"
	"github.com/urpt/student-rotation-service/internal/models"
	"github.com/urpt/student-rotation-service/internal/repositories"
)

// CleanupService expires published rotations once they have started.
type CleanupService struct {
	repo      repositories.Repository
	publisher events.EventPublisher
	metrics   *metrics.ImportMetrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewCleanupService(repo repositories.Repository, publisher events.EventPublisher, m *metrics.ImportMetrics, logger *slog.Logger) *CleanupService {
	return &CleanupService{
		repo:      repo,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Run deletes every published rotation whose start date is before today and
// returns how many were removed.
func (s *CleanupService) Run(ctx context.Context) (int, error) {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	deleted, err := s.repo.Rotation().DeleteStartingBefore(ctx, nil, models.RotationPublished, today)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired rotations: %w", err)
	}

	s.metrics.CleanupDeleted(int(deleted))
	s.logger.Info("Expired rotations removed", "before", today.Format(time.DateOnly), "count", deleted)

	if deleted > 0 && s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.NewRotationsExpiredEvent(today, int(deleted))); err != nil {
			s.logger.Error("Failed to publish rotations expired event", "error", err)
		}
	}
	return int(deleted), nil
}

// Start runs the cleanup every interval until ctx is done. A failed run is
// logged and retried on the next tick.
func (s *CleanupService) Start(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Cleanup scheduler started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Cleanup scheduler stopped")
			return nil
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil {
				s.logger.Error("Cleanup run failed", "error", err)
			}
		}
	}
}

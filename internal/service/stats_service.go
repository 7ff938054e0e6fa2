package service

import (
	"context"

	"dealdossier/internal/domain"
	"dealdossier/internal/port"
)

// StatsService provides dashboard statistics.
type StatsService interface {
	GetStats(ctx context.Context, sess *domain.Session) (*domain.DashboardStats, error)
}

type statsService struct {
	statsRepo port.StatsRepository
}

// NewStatsService creates a new StatsService implementation.
func NewStatsService(statsRepo port.StatsRepository) StatsService {
	return &statsService{statsRepo: statsRepo}
}

func (s *statsService) GetStats(ctx context.Context, sess *domain.Session) (*domain.DashboardStats, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	return s.statsRepo.GetUserStats(ctx, sess.UserID())
}

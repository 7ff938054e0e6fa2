package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dealdossier/internal/domain"
	"dealdossier/internal/port"
)

// InsightPersister stores an extracted insight and its evidence rows.
type InsightPersister struct {
	store  port.InsightStore
	logger *zap.Logger
}

// NewInsightPersister creates a persister over store.
func NewInsightPersister(store port.InsightStore, logger *zap.Logger) *InsightPersister {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InsightPersister{store: store, logger: logger}
}

// Persist completes fileID with insight and writes one evidence row per key metric.
// It returns the number of evidence rows written. Failures are *domain.PersistenceError
// and leave neither the insight nor any evidence behind.
func (p *InsightPersister) Persist(ctx context.Context, fileID uuid.UUID, insight domain.Insight) (int, error) {
	raw, err := domain.EncodeInsight(insight)
	if err != nil {
		return 0, &domain.PersistenceError{Op: "encode insight", Err: err}
	}
	evidence := domain.EvidenceFor(fileID, insight)

	if err := p.store.SaveInsight(ctx, fileID, raw, evidence); err != nil {
		p.logger.Warn("insightPersister.Persist: save failed",
			zap.String("file_id", fileID.String()), zap.Error(err))
		return 0, &domain.PersistenceError{Op: "save insight", Err: err}
	}

	p.logger.Debug("insightPersister.Persist: saved",
		zap.String("file_id", fileID.String()),
		zap.String("strategy", string(insight.Strategy())),
		zap.Int("evidence", len(evidence)))
	return len(evidence), nil
}

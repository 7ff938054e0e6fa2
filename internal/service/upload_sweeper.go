package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dealdossier/internal/port"
)

const staleUploadMessage = "upload abandoned before completion"

// UploadSweeperConfig holds settings for the stale upload sweeper.
type UploadSweeperConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
}

// UploadSweeper marks file records stuck in uploading as failed. Such rows
// are left behind when the process stops in the middle of a batch.
type UploadSweeper struct {
	fileRepo port.FileRepository
	cfg      UploadSweeperConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewUploadSweeper creates a new UploadSweeper.
func NewUploadSweeper(fileRepo port.FileRepository, cfg UploadSweeperConfig, logger *zap.Logger) *UploadSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadSweeper{fileRepo: fileRepo, cfg: cfg, logger: logger, now: time.Now}
}

// SweepOnce marks every upload older than StaleAfter as failed and returns how many changed.
func (w *UploadSweeper) SweepOnce(ctx context.Context) (int64, error) {
	cutoff := w.now().UTC().Add(-w.cfg.StaleAfter)
	n, err := w.fileRepo.MarkStale(ctx, cutoff, staleUploadMessage)
	if err != nil {
		return 0, fmt.Errorf("uploadSweeper.SweepOnce: %w", err)
	}
	if n > 0 {
		w.logger.Info("uploadSweeper: stale uploads marked failed",
			zap.Int64("count", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}

// Start runs the sweep loop until ctx is canceled.
func (w *UploadSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.logger.Info("uploadSweeper: started",
		zap.Duration("interval", w.cfg.Interval), zap.Duration("stale_after", w.cfg.StaleAfter))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("uploadSweeper: shutdown complete")
			return
		case <-ticker.C:
			if _, err := w.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				w.logger.Warn("uploadSweeper: sweep failed", zap.Error(err))
			}
		}
	}
}

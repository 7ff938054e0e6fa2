package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"dealdossier/internal/analysis"
	"dealdossier/internal/domain"
	"dealdossier/internal/port"
)

const (
	defaultAnalysisCacheSize = 256
	defaultAnalysisCacheTTL  = 10 * time.Minute
)

// AnalysisService derives project analyses from completed files.
type AnalysisService interface {
	// Analyze returns the analysis of a project. The result is shared with
	// the cache and must not be modified.
	Analyze(ctx context.Context, sess *domain.Session, projectID uuid.UUID) (*domain.ProjectAnalysis, error)
}

// AnalysisCacheConfig sizes the analysis cache.
type AnalysisCacheConfig struct {
	Size int
	TTL  time.Duration
}

type analysisService struct {
	projectRepo port.ProjectRepository
	fileRepo    port.FileRepository
	engine      *analysis.Engine
	cache       *expirable.LRU[string, *domain.ProjectAnalysis]
	logger      *zap.Logger
}

// NewAnalysisService creates a new AnalysisService implementation.
func NewAnalysisService(
	projectRepo port.ProjectRepository,
	fileRepo port.FileRepository,
	engine *analysis.Engine,
	cacheCfg AnalysisCacheConfig,
	logger *zap.Logger,
) AnalysisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine == nil {
		engine = analysis.NewEngine(nil)
	}
	if cacheCfg.Size <= 0 {
		cacheCfg.Size = defaultAnalysisCacheSize
	}
	if cacheCfg.TTL <= 0 {
		cacheCfg.TTL = defaultAnalysisCacheTTL
	}
	return &analysisService{
		projectRepo: projectRepo,
		fileRepo:    fileRepo,
		engine:      engine,
		cache:       expirable.NewLRU[string, *domain.ProjectAnalysis](cacheCfg.Size, nil, cacheCfg.TTL),
		logger:      logger,
	}
}

func (s *analysisService) Analyze(ctx context.Context, sess *domain.Session, projectID uuid.UUID) (*domain.ProjectAnalysis, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if _, err := s.projectRepo.GetByID(ctx, sess.UserID(), projectID); err != nil {
		return nil, err
	}

	records, err := s.fileRepo.ListCompleted(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("analysisService.Analyze: %w", err)
	}

	key := s.cacheKey(projectID, records)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	files := make([]analysis.File, 0, len(records))
	for i := range records {
		f, err := analysis.FromRecord(records[i])
		if err != nil {
			s.logger.Warn("analysisService.Analyze: stored insight not decodable",
				zap.String("file_id", records[i].ID.String()), zap.Error(err))
		}
		files = append(files, f)
	}

	result := s.engine.Fold(files)
	s.cache.Add(key, &result)

	s.logger.Debug("analysisService.Analyze: folded",
		zap.String("project_id", projectID.String()),
		zap.Int("files", len(files)),
		zap.Int("metrics", len(result.KeyMetrics)))
	return &result, nil
}

// cacheKey fingerprints the file set so any completed, replaced or removed
// file produces a new key.
func (s *analysisService) cacheKey(projectID uuid.UUID, records []domain.FileRecord) string {
	h := sha256.New()
	h.Write([]byte(s.engine.Policy().Name))
	for i := range records {
		h.Write(records[i].ID[:])
		h.Write([]byte(records[i].UpdatedAt.UTC().Format(time.RFC3339Nano)))
	}
	return projectID.String() + ":" + hex.EncodeToString(h.Sum(nil))
}

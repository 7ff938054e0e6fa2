package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dealdossier/internal/analysis"
	"dealdossier/internal/domain"
	"dealdossier/internal/service"
	"dealdossier/mocks"
)

func insightRecord(t *testing.T, projectID uuid.UUID, name string, in domain.Insight, updated time.Time) domain.FileRecord {
	t.Helper()
	raw, err := domain.EncodeInsight(in)
	require.NoError(t, err)
	return domain.FileRecord{
		ID:           uuid.New(),
		ProjectID:    projectID,
		Name:         name,
		Size:         2048,
		UploadStatus: domain.FileStatusCompleted,
		Insights:     raw,
		CreatedAt:    updated,
		UpdatedAt:    updated,
	}
}

func TestAnalysisService_AnalyzeCachesByFileSet(t *testing.T) {
	projectRepo := new(mocks.MockProjectRepo)
	fileRepo := new(mocks.MockFileRepo)
	sess := &domain.Session{User: domain.User{ID: uuid.New()}}
	projectID := uuid.New()
	projectRepo.On("GetByID", mock.Anything, sess.User.ID, projectID).Return(&domain.Project{ID: projectID}, nil)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []domain.FileRecord{
		insightRecord(t, projectID, "financials.json", &domain.JSONInsight{
			Kind:       domain.StrategyJSON,
			KeyMetrics: []domain.KeyMetric{{Label: "Revenue", Value: "$2.5M", Confidence: domain.Confidence(0.95)}},
		}, now),
		insightRecord(t, projectID, "pipeline.csv", &domain.CSVInsight{
			Kind:       domain.StrategyCSV,
			RowCount:   12,
			KeyMetrics: []domain.KeyMetric{{Label: "Customers", Value: "140"}},
		}, now.Add(-time.Hour)),
	}
	fileRepo.On("ListCompleted", mock.Anything, projectID).Return(records, nil).Twice()

	svc := service.NewAnalysisService(projectRepo, fileRepo, analysis.NewEngine(nil), service.AnalysisCacheConfig{}, nil)

	first, err := svc.Analyze(context.Background(), sess, projectID)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Summary.TotalFiles)
	assert.NotEmpty(t, first.KeyMetrics)

	second, err := svc.Analyze(context.Background(), sess, projectID)
	require.NoError(t, err)
	assert.Same(t, first, second)

	changed := append([]domain.FileRecord(nil), records...)
	changed[1].UpdatedAt = now.Add(time.Minute)
	fileRepo.On("ListCompleted", mock.Anything, projectID).Return(changed, nil).Once()

	third, err := svc.Analyze(context.Background(), sess, projectID)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, first.Summary.TotalFiles, third.Summary.TotalFiles)
}

func TestAnalysisService_UndecodableInsightStillCounted(t *testing.T) {
	projectRepo := new(mocks.MockProjectRepo)
	fileRepo := new(mocks.MockFileRepo)
	sess := &domain.Session{User: domain.User{ID: uuid.New()}}
	projectID := uuid.New()
	projectRepo.On("GetByID", mock.Anything, sess.User.ID, projectID).Return(&domain.Project{ID: projectID}, nil)

	fileRepo.On("ListCompleted", mock.Anything, projectID).Return([]domain.FileRecord{{
		ID:           uuid.New(),
		ProjectID:    projectID,
		Name:         "mystery.bin",
		UploadStatus: domain.FileStatusCompleted,
		Insights:     json.RawMessage(`{"kind":"hologram"}`),
		UpdatedAt:    time.Now(),
	}}, nil)

	svc := service.NewAnalysisService(projectRepo, fileRepo, nil, service.AnalysisCacheConfig{Size: 4, TTL: time.Minute}, nil)
	result, err := svc.Analyze(context.Background(), sess, projectID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Summary.TotalFiles)
}

func TestAnalysisService_ForeignProject(t *testing.T) {
	projectRepo := new(mocks.MockProjectRepo)
	fileRepo := new(mocks.MockFileRepo)
	sess := &domain.Session{User: domain.User{ID: uuid.New()}}
	projectID := uuid.New()
	projectRepo.On("GetByID", mock.Anything, sess.User.ID, projectID).Return(nil, domain.ErrProjectNotFound)

	svc := service.NewAnalysisService(projectRepo, fileRepo, nil, service.AnalysisCacheConfig{}, nil)
	_, err := svc.Analyze(context.Background(), sess, projectID)
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
	fileRepo.AssertNotCalled(t, "ListCompleted", mock.Anything, mock.Anything)

	_, err = svc.Analyze(context.Background(), nil, projectID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

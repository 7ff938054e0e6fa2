package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dealdossier/internal/domain"
	"dealdossier/internal/extract"
	"dealdossier/internal/repository/postgres"
	"dealdossier/internal/service"
	"dealdossier/internal/storage"
)

var (
	reprocessProject   string
	reprocessBatchSize int
	reprocessDryRun    bool
)

var reprocessCmd = &cobra.Command{
	Use:   "reprocess",
	Short: "Re-extract failed files whose content is in storage",
	Long: `Finds files in error state that have a stored object and runs
extraction and persistence again. Files that fail again keep their error
status with the new message.`,
	Args: cobra.NoArgs,
	RunE: runReprocess,
}

func init() {
	reprocessCmd.Flags().StringVar(&reprocessProject, "project", "", "Only reprocess files of this project")
	reprocessCmd.Flags().IntVar(&reprocessBatchSize, "batch-size", 50, "Files fetched per page")
	reprocessCmd.Flags().BoolVar(&reprocessDryRun, "dry-run", false, "List candidates without reprocessing")
}

func runReprocess(cmd *cobra.Command, _ []string) error {
	var projectID *uuid.UUID
	if reprocessProject != "" {
		id, err := uuid.Parse(reprocessProject)
		if err != nil {
			return fmt.Errorf("invalid project id: %w", err)
		}
		projectID = &id
	}
	if reprocessBatchSize < 1 {
		return fmt.Errorf("batch-size must be positive")
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	objectStore, err := storage.New(ctx, &cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}

	projectRepo := postgres.NewProjectRepo(db)
	fileRepo := postgres.NewFileRepo(db)
	uploadSvc := service.NewUploadService(projectRepo, fileRepo, objectStore,
		extract.New(extract.WithMaxBytes(cfg.Ingest.MaxFileSizeBytes()), extract.WithLogger(logger)),
		service.NewInsightPersister(postgres.NewInsightStore(db), logger),
		nil,
		service.UploadConfig{
			Bucket:      cfg.Storage.Bucket,
			MaxBytes:    cfg.Ingest.MaxFileSizeBytes(),
			StepTimeout: cfg.Ingest.StepTimeout,
		}, logger)
	defer func() { _ = uploadSvc.Shutdown(ctx) }()

	out := cmd.OutOrStdout()
	var ok, failed, skipped int
	// Successful files leave the error set, so the offset only advances past
	// files that stay in it.
	offset := 0
	for {
		files, err := fileRepo.ListByStatus(ctx, domain.FileStatusError, projectID, offset, reprocessBatchSize)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			break
		}
		for i := range files {
			f := &files[i]
			if f.FileURL == "" {
				skipped++
				offset++
				continue
			}
			if reprocessDryRun {
				fmt.Fprintf(out, "%s\t%s\t%s\n", f.ID, f.Name, f.ErrorMessage)
				ok++
				offset++
				continue
			}
			if err := uploadSvc.Reprocess(ctx, f); err != nil {
				logger.Warn("reprocess failed", zap.String("file_id", f.ID.String()), zap.Error(err))
				failed++
				offset++
				continue
			}
			ok++
		}
	}

	if reprocessDryRun {
		fmt.Fprintf(out, "%d candidate(s), %d without stored content\n", ok, skipped)
		return nil
	}
	fmt.Fprintf(out, "reprocessed %d, failed %d, skipped %d\n", ok, failed, skipped)
	return nil
}

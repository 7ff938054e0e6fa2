package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dealdossier/internal/analysis"
	"dealdossier/internal/repository/postgres"
)

var analyzePolicy string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <project-id>",
	Short: "Print the analysis of a stored project",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzePolicy, "policy", "", "Policy file (defaults to DOSSIER_ANALYSIS_POLICY_FILE or the built-in policy)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	projectID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid project id: %w", err)
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	path := analyzePolicy
	if path == "" {
		path = cfg.Analysis.PolicyFile
	}
	policy, err := analysis.LoadPolicy(path)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := postgres.NewFileRepo(db).ListCompleted(ctx, projectID)
	if err != nil {
		return err
	}

	files := make([]analysis.File, 0, len(records))
	for i := range records {
		f, err := analysis.FromRecord(records[i])
		if err != nil {
			logger.Warn("skipping file with unreadable insight",
				zap.String("file_id", records[i].ID.String()), zap.Error(err))
			continue
		}
		files = append(files, f)
	}

	result := analysis.NewEngine(policy).Fold(files)
	return printJSON(cmd.OutOrStdout(), result)
}

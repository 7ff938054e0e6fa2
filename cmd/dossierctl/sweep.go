package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dealdossier/internal/repository/postgres"
	"dealdossier/internal/service"
)

var sweepStaleAfter time.Duration

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Mark abandoned uploads as failed",
	Args:  cobra.NoArgs,
	RunE:  runSweep,
}

func init() {
	sweepCmd.Flags().DurationVar(&sweepStaleAfter, "stale-after", 0, "Age after which an upload is abandoned (defaults to DOSSIER_INGEST_STALE_AFTER)")
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	staleAfter := sweepStaleAfter
	if staleAfter <= 0 {
		staleAfter = cfg.Ingest.StaleAfter
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	sweeper := service.NewUploadSweeper(postgres.NewFileRepo(db), service.UploadSweeperConfig{
		Interval:   cfg.Ingest.SweepInterval,
		StaleAfter: staleAfter,
	}, logger)

	n, err := sweeper.SweepOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "marked %d upload(s) as failed\n", n)
	return nil
}

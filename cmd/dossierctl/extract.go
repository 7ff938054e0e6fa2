package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"dealdossier/internal/classify"
	"dealdossier/internal/extract"
)

var extractType string

var extractCmd = &cobra.Command{
	Use:   "extract <path>",
	Short: "Extract the insight of a local file",
	Long: `Classifies the file, runs the matching extractor and prints the
insight as JSON. Nothing is uploaded or stored.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVar(&extractType, "type", "", "Media type (sniffed from content when empty)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	path := args[0]
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	head, err := os.Open(path)
	if err != nil {
		return err
	}
	kind, err := classify.Admit(filepath.Base(path), extractType, info.Size(), cfg.Ingest.MaxFileSizeBytes(), head)
	head.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	ex := extract.New(
		extract.WithMaxBytes(cfg.Ingest.MaxFileSizeBytes()),
		extract.WithLogger(logger),
	)
	insight, err := ex.Extract(ctx, uuid.New(), kind.Strategy, filepath.Base(path), f)
	if err != nil {
		return err
	}

	return printJSON(cmd.OutOrStdout(), map[string]any{
		"media_type": kind.MediaType,
		"strategy":   kind.Strategy,
		"insight":    insight,
	})
}

package main

import (
	"fmt"
	"os"

	"github.com/kenneth/fs2cloud/internal/export"
	"github.com/spf13/cobra"
)

var exportOutPath string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the catalog's files and chunks as JSON",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportOutPath, "out", "", "destination file (default: stdout)")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cat, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	w := os.Stdout
	if exportOutPath != "" {
		f, err := os.Create(exportOutPath)
		if err != nil {
			return fmt.Errorf("create export file %s: %w", exportOutPath, err)
		}
		defer f.Close()
		return export.Export(cat, f)
	}
	return export.Export(cat, w)
}

var importInPath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load files and chunks from a JSON export into the catalog",
	Long:  "Insert every file (and its chunks) from a document written by export whose path is not already in the catalog. Re-importing the same document is a no-op.",
	RunE:  runImport,
}

func init() {
	importCmd.Flags().StringVar(&importInPath, "in", "", "source file (required)")
	importCmd.MarkFlagRequired("in")
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cat, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	f, err := os.Open(importInPath)
	if err != nil {
		return fmt.Errorf("open import file %s: %w", importInPath, err)
	}
	defer f.Close()

	n, err := export.Import(cat, f)
	if err != nil {
		return err
	}
	logger.WithField("imported", n).Info("import complete")
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List every file recorded in the catalog",
	RunE:  runLs,
}

func runLs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cat, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	files, err := cat.Files.ListAll()
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Printf("%s\t%s\t%d\t%s\t%s\n", f.Path, f.Mode, f.Size, f.Status, f.SHA256)
	}
	return nil
}

// Command fs2cloud drives the encrypted backup engine's catalog, push,
// pull and mount operations from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/kenneth/fs2cloud/internal/debug"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgPath   string
	watchFlag bool
	verbose   bool
	logger    = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "fs2cloud",
	Short: "Encrypted, content-addressed backup and restore engine",
	Long:  "fs2cloud mirrors a local directory tree to an opaque object store through content-addressed, PGP-encrypted chunks, and reconstructs it via pull or a read-only FUSE mount.",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to the YAML configuration file (mandatory)")
	rootCmd.PersistentFlags().BoolVar(&watchFlag, "watch-config", false, "log a warning when the configuration file changes; changes apply on restart (crawl/push/mount only)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug-level logging")
	rootCmd.MarkPersistentFlagRequired("config")

	cobra.OnInitialize(func() {
		if verbose {
			debug.SetEnabled(true)
		}
		if debug.Enabled() {
			logger.SetLevel(logrus.DebugLevel)
		}
	})

	rootCmd.AddCommand(
		crawlCmd,
		pushCmd,
		pullCmd,
		mountCmd,
		lsCmd,
		exportCmd,
		importCmd,
		unwrapCmd,
		autocompleteCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

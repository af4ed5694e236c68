package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kenneth/fs2cloud/internal/config"
	"github.com/kenneth/fs2cloud/internal/envelope"
	"github.com/spf13/cobra"
)

var unwrapPath string

var unwrapCmd = &cobra.Command{
	Use:   "unwrap",
	Short: "Decrypt a single stored object and print its envelope for inspection",
	Long:  "Fetch the stored object identified by --path through the decrypt layer (bypassing any cache) and decode its envelope. Fails with a nonzero exit code if the envelope version is not 1.",
	RunE:  runUnwrap,
}

func init() {
	unwrapCmd.Flags().StringVar(&unwrapPath, "path", "", "store object identifier to unwrap (required)")
	unwrapCmd.MarkFlagRequired("path")
}

func runUnwrap(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	encryptor, closeEncryptor, err := buildEncryptor(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeEncryptor(ctx)

	// Build the stack without a cache layer so the object comes from the
	// backend itself.
	storeCfg := *cfg
	storeCfg.Cache = ""
	storeCfg.Store.Redis = config.RedisCacheConfig{}
	st, err := buildStore(&storeCfg, encryptor, nil)
	if err != nil {
		return err
	}

	aud, err := buildAudit(cfg)
	if err != nil {
		return err
	}
	if aud != nil {
		defer aud.Close()
	}

	raw, err := st.Get(ctx, unwrapPath)
	if err != nil {
		if aud != nil {
			aud.Unwrap(unwrapPath, 0, err)
		}
		return err
	}

	clear, err := envelope.Decode(raw)
	if aud != nil {
		aud.Unwrap(unwrapPath, int64(len(raw)), err)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "version=%d file=%s idx=%d total=%d offset=%d payload_bytes=%d\n",
		clear.Version, clear.Metadata.File, clear.Metadata.Idx, clear.Metadata.Total, clear.Metadata.Offset, len(clear.Payload))
	return nil
}

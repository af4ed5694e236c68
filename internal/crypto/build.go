package crypto

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/kenneth/fs2cloud/internal/config"
	"github.com/kenneth/fs2cloud/internal/ferrors"
)

// Build constructs the Encryptor described by cfg. When cfg.KMIP is set,
// cfg.Passphrase is treated as a base64-encoded KeyEnvelope ciphertext that
// a KMIPKeyManager unwraps into the real PGP passphrase before the keyring
// is loaded, so the passphrase never sits on disk in the clear; otherwise
// cfg.Passphrase is used directly. Returns a no-op closer when no KMIP
// connection was opened.
func Build(ctx context.Context, cfg config.PGPConfig) (Encryptor, func(context.Context) error, error) {
	passphrase := cfg.Passphrase
	closer := func(context.Context) error { return nil }

	if cfg.KMIP != nil {
		km, err := NewKMIPKeyManager(ctx, *cfg.KMIP)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: connect kmip: %v", ferrors.ErrConfig, err)
		}
		closer = km.Close

		ciphertext, err := base64.StdEncoding.DecodeString(cfg.Passphrase)
		if err != nil {
			km.Close(ctx)
			return nil, nil, fmt.Errorf("%w: decode wrapped passphrase: %v", ferrors.ErrConfig, err)
		}
		plain, err := km.UnwrapKey(ctx, &KeyEnvelope{KeyID: cfg.KMIP.KeyID, Provider: km.Provider(), Ciphertext: ciphertext}, nil)
		if err != nil {
			km.Close(ctx)
			return nil, nil, fmt.Errorf("%w: unwrap passphrase: %v", ferrors.ErrConfig, err)
		}
		passphrase = string(plain)
	}

	enc, err := NewPGPEncryptor(cfg.Key, cfg.ASCII, passphrase)
	if err != nil {
		closer(ctx)
		return nil, nil, fmt.Errorf("%w: load pgp keyring %s: %v", ferrors.ErrConfig, cfg.Key, err)
	}
	return enc, closer, nil
}

package crypto

import "context"

// Encryptor is the narrow symmetric encrypt/decrypt capability the Store's
// encrypt layer consumes. The pipeline only ever calls Encrypt/Decrypt on
// whole in-memory buffers, never on the key material itself.
type Encryptor interface {
	Encrypt(ctx context.Context, clear []byte) ([]byte, error)
	Decrypt(ctx context.Context, cipher []byte) ([]byte, error)
}

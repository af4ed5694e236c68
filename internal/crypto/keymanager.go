package crypto

import "context"

// KeyManager abstracts an external key-management system that wraps and
// unwraps the PGP passphrase so it never has to sit in the configuration
// file in the clear. All cryptographic operations happen inside the KMS;
// this process only ever sees the wrapped ciphertext and, transiently, the
// unwrapped passphrase it hands to NewPGPEncryptor.
type KeyManager interface {
	// Provider returns a short identifier (e.g. "kmip") used for
	// diagnostics and envelope metadata.
	Provider() string

	// WrapKey encrypts plaintext and returns an envelope suitable for
	// storing alongside the configuration.
	WrapKey(ctx context.Context, plaintext []byte, metadata map[string]string) (*KeyEnvelope, error)

	// UnwrapKey decrypts the ciphertext in envelope back to the plaintext
	// passphrase.
	UnwrapKey(ctx context.Context, envelope *KeyEnvelope, metadata map[string]string) ([]byte, error)

	// ActiveKeyVersion returns the version identifier of the primary
	// wrapping key.
	ActiveKeyVersion(ctx context.Context) (int, error)

	// HealthCheck verifies the KMS is reachable. It must be lightweight:
	// no actual encrypt/decrypt round trip.
	HealthCheck(ctx context.Context) error

	// Close releases any underlying resources.
	Close(ctx context.Context) error
}

// KeyEnvelope captures the information required to unwrap a passphrase.
type KeyEnvelope struct {
	KeyID      string
	KeyVersion int
	Provider   string
	Ciphertext []byte
}

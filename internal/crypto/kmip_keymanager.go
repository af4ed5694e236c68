package crypto

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/kenneth/fs2cloud/internal/config"
	"github.com/kenneth/fs2cloud/internal/ferrors"
	"github.com/ovh/kmip-go/kmipclient"
)

// KMIPKeyManager implements KeyManager against a KMIP 1.4 server. It is
// consumed only through the KeyManager interface, never directly by the
// Store stack.
type KMIPKeyManager struct {
	client *kmipclient.Client
	keyID  string
}

// NewKMIPKeyManager dials a KMIP server per cfg and keeps the connection
// for the lifetime of the process.
func NewKMIPKeyManager(ctx context.Context, cfg config.KMIPConfig) (*KMIPKeyManager, error) {
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.TLSCert != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return nil, fmt.Errorf("%w: load kmip client cert: %v", ferrors.ErrConfig, err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	if cfg.CACert != "" {
		pem, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("%w: read kmip ca cert: %v", ferrors.ErrConfig, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%w: kmip ca cert %s contains no certificates", ferrors.ErrConfig, cfg.CACert)
		}
		tlsCfg.RootCAs = pool
	}

	client, err := kmipclient.Dial(cfg.Endpoint, kmipclient.WithTlsConfig(tlsCfg))
	if err != nil {
		return nil, fmt.Errorf("%w: dial kmip server %s: %v", ferrors.ErrConfig, cfg.Endpoint, err)
	}

	return &KMIPKeyManager{client: client, keyID: cfg.KeyID}, nil
}

// Provider identifies this KeyManager implementation for diagnostics.
func (m *KMIPKeyManager) Provider() string { return "kmip" }

// WrapKey encrypts plaintext (the PGP passphrase) via the KMIP server's
// configured key.
func (m *KMIPKeyManager) WrapKey(ctx context.Context, plaintext []byte, metadata map[string]string) (*KeyEnvelope, error) {
	resp, err := m.client.Encrypt(m.keyID).Data(plaintext).ExecContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: kmip wrap key: %v", ferrors.ErrEncrypt, err)
	}
	return &KeyEnvelope{
		KeyID:      m.keyID,
		KeyVersion: 1,
		Provider:   m.Provider(),
		Ciphertext: resp.Data,
	}, nil
}

// UnwrapKey decrypts a previously wrapped envelope via the KMIP server.
func (m *KMIPKeyManager) UnwrapKey(ctx context.Context, envelope *KeyEnvelope, metadata map[string]string) ([]byte, error) {
	keyID := envelope.KeyID
	if keyID == "" {
		keyID = m.keyID
	}
	resp, err := m.client.Decrypt(keyID).Data(envelope.Ciphertext).ExecContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: kmip unwrap key: %v", ferrors.ErrDecrypt, err)
	}
	return resp.Data, nil
}

// ActiveKeyVersion reports a constant version: KMIP key rotation tracks
// versions server-side, not in this keymanager.
func (m *KMIPKeyManager) ActiveKeyVersion(ctx context.Context) (int, error) {
	return 1, nil
}

// HealthCheck fetches the wrapping key's object to verify the server is
// reachable and the key exists.
func (m *KMIPKeyManager) HealthCheck(ctx context.Context) error {
	if _, err := m.client.Get(m.keyID).ExecContext(ctx); err != nil {
		return fmt.Errorf("%w: kmip health check: %v", ferrors.ErrConfig, err)
	}
	return nil
}

// Close releases the KMIP connection.
func (m *KMIPKeyManager) Close(ctx context.Context) error {
	return m.client.Close()
}

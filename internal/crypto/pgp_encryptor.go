package crypto

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/kenneth/fs2cloud/internal/ferrors"
	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"
	_ "golang.org/x/crypto/ripemd160"
)

// PGPEncryptor implements Encryptor over a loaded PGP keyring. It is
// consumed only through the Encryptor interface, so a future HSM-backed
// implementation can replace it without touching the Store stack.
type PGPEncryptor struct {
	entity *openpgp.Entity
	armor  bool
}

// NewPGPEncryptor loads a keyring from path (armored or binary, detected by
// content) and unlocks its private key with passphrase if the key itself
// is encrypted.
func NewPGPEncryptor(path string, asciiArmor bool, passphrase string) (*PGPEncryptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open pgp key %s: %v", ferrors.ErrConfig, path, err)
	}
	defer f.Close()

	entities, err := readKeyRing(f)
	if err != nil {
		return nil, fmt.Errorf("%w: parse pgp key %s: %v", ferrors.ErrConfig, path, err)
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("%w: pgp key %s contains no entities", ferrors.ErrConfig, path)
	}
	entity := entities[0]

	if entity.PrivateKey != nil && entity.PrivateKey.Encrypted {
		if passphrase == "" {
			return nil, fmt.Errorf("%w: pgp key %s is passphrase-protected but pgp.passphrase is empty", ferrors.ErrConfig, path)
		}
		if err := entity.PrivateKey.Decrypt([]byte(passphrase)); err != nil {
			return nil, fmt.Errorf("%w: unlock pgp private key: %v", ferrors.ErrConfig, err)
		}
		for _, subkey := range entity.Subkeys {
			if subkey.PrivateKey != nil && subkey.PrivateKey.Encrypted {
				if err := subkey.PrivateKey.Decrypt([]byte(passphrase)); err != nil {
					return nil, fmt.Errorf("%w: unlock pgp subkey: %v", ferrors.ErrConfig, err)
				}
			}
		}
	}

	return &PGPEncryptor{entity: entity, armor: asciiArmor}, nil
}

func readKeyRing(r io.Reader) (openpgp.EntityList, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if entities, err := openpgp.ReadKeyRing(bytes.NewReader(data)); err == nil {
		return entities, nil
	}
	block, err := armor.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return openpgp.ReadKeyRing(block.Body)
}

// Encrypt PGP-encrypts clear to the loaded entity's public key.
func (e *PGPEncryptor) Encrypt(_ context.Context, clear []byte) ([]byte, error) {
	var out bytes.Buffer
	var dest io.Writer = &out
	var armorCloser io.WriteCloser

	if e.armor {
		w, err := armor.Encode(&out, "PGP MESSAGE", nil)
		if err != nil {
			return nil, fmt.Errorf("%w: open armor writer: %v", ferrors.ErrEncrypt, err)
		}
		armorCloser = w
		dest = w
	}

	plainWriter, err := openpgp.Encrypt(dest, []*openpgp.Entity{e.entity}, nil, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open pgp writer: %v", ferrors.ErrEncrypt, err)
	}
	if _, err := plainWriter.Write(clear); err != nil {
		return nil, fmt.Errorf("%w: write plaintext: %v", ferrors.ErrEncrypt, err)
	}
	if err := plainWriter.Close(); err != nil {
		return nil, fmt.Errorf("%w: close pgp writer: %v", ferrors.ErrEncrypt, err)
	}
	if armorCloser != nil {
		if err := armorCloser.Close(); err != nil {
			return nil, fmt.Errorf("%w: close armor writer: %v", ferrors.ErrEncrypt, err)
		}
	}

	return out.Bytes(), nil
}

// Decrypt reverses Encrypt using the loaded entity's private key.
func (e *PGPEncryptor) Decrypt(_ context.Context, cipher []byte) ([]byte, error) {
	src := bytes.NewReader(cipher)
	var body io.Reader = src

	if e.armor {
		block, err := armor.Decode(src)
		if err != nil {
			return nil, fmt.Errorf("%w: decode armor: %v", ferrors.ErrDecrypt, err)
		}
		body = block.Body
	}

	keyring := openpgp.EntityList{e.entity}
	msg, err := openpgp.ReadMessage(body, keyring, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: read pgp message: %v", ferrors.ErrDecrypt, err)
	}

	clear, err := io.ReadAll(msg.UnverifiedBody)
	if err != nil {
		return nil, fmt.Errorf("%w: read decrypted body: %v", ferrors.ErrDecrypt, err)
	}
	return clear, nil
}

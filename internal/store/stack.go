// stack.go holds the layers wrapped around a store backend: metering,
// encrypt, cache. Stacked bottom to top, the Store exposed at the API
// boundary holds clear bytes and everything below the encrypt layer holds
// cipher bytes.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/kenneth/fs2cloud/internal/crypto"
	"github.com/kenneth/fs2cloud/internal/ferrors"
	"github.com/kenneth/fs2cloud/internal/metrics"
	"github.com/sirupsen/logrus"
)

// encryptLayer encrypts on Put and decrypts on Get, delegating cipher
// bytes to the wrapped Store.
type encryptLayer struct {
	next      Store
	encryptor crypto.Encryptor
	m         *metrics.Metrics
}

// NewEncryptLayer wraps next with encryptor. m may be nil.
func NewEncryptLayer(next Store, encryptor crypto.Encryptor, m *metrics.Metrics) Store {
	return &encryptLayer{next: next, encryptor: encryptor, m: m}
}

func (e *encryptLayer) Put(ctx context.Context, uuid string, clear []byte) error {
	start := time.Now()
	cipher, err := e.encryptor.Encrypt(ctx, clear)
	if err != nil {
		if e.m != nil {
			e.m.RecordEncryptionError(ctx, "encrypt", "cipher")
		}
		return fmt.Errorf("%w: encrypt %s: %v", ferrors.ErrEncrypt, uuid, err)
	}
	if e.m != nil {
		e.m.RecordEncryptionOperation(ctx, "encrypt", time.Since(start), int64(len(clear)))
	}
	return e.next.Put(ctx, uuid, cipher)
}

func (e *encryptLayer) Get(ctx context.Context, uuid string) ([]byte, error) {
	cipher, err := e.next.Get(ctx, uuid)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	clear, err := e.encryptor.Decrypt(ctx, cipher)
	if err != nil {
		if e.m != nil {
			e.m.RecordEncryptionError(ctx, "decrypt", "cipher")
		}
		return nil, fmt.Errorf("%w: decrypt %s: %v", ferrors.ErrDecrypt, uuid, err)
	}
	if e.m != nil {
		e.m.RecordEncryptionOperation(ctx, "decrypt", time.Since(start), int64(len(clear)))
	}
	return clear, nil
}

// meteredStore records put/get throughput and errors for the wrapped
// backend.
type meteredStore struct {
	next    Store
	backend string
	m       *metrics.Metrics
}

// NewMeteredStore wraps next, labeling its metrics with backend.
func NewMeteredStore(next Store, backend string, m *metrics.Metrics) Store {
	return &meteredStore{next: next, backend: backend, m: m}
}

func (s *meteredStore) Put(ctx context.Context, uuid string, data []byte) error {
	start := time.Now()
	err := s.next.Put(ctx, uuid, data)
	if err != nil {
		s.m.RecordStoreError(ctx, "put", s.backend, "io")
		return err
	}
	s.m.RecordStoreOperation(ctx, "put", s.backend, time.Since(start))
	return nil
}

func (s *meteredStore) Get(ctx context.Context, uuid string) ([]byte, error) {
	start := time.Now()
	data, err := s.next.Get(ctx, uuid)
	if err != nil {
		s.m.RecordStoreError(ctx, "get", s.backend, "io")
		return nil, err
	}
	s.m.RecordStoreOperation(ctx, "get", s.backend, time.Since(start))
	return data, nil
}

// cache is the narrow capability both cache-layer backends (filesystem,
// redis) implement.
type cache interface {
	load(uuid string) ([]byte, bool)
	store(uuid string, data []byte)
}

// cacheLayer returns cached bytes on Get when present, and writes through
// to the cache (best-effort) on both Put and cache-miss Get.
type cacheLayer struct {
	next  Store
	cache cache
	log   *logrus.Entry
}

// NewCacheLayer wraps next with the given cache backend.
func NewCacheLayer(next Store, c cache, log *logrus.Logger) Store {
	return &cacheLayer{next: next, cache: c, log: logrus.NewEntry(log).WithField("component", "store.cache")}
}

func (c *cacheLayer) Put(ctx context.Context, uuid string, data []byte) error {
	c.cache.store(uuid, data)
	return c.next.Put(ctx, uuid, data)
}

func (c *cacheLayer) Get(ctx context.Context, uuid string) ([]byte, error) {
	if data, ok := c.cache.load(uuid); ok {
		return data, nil
	}
	data, err := c.next.Get(ctx, uuid)
	if err != nil {
		return nil, err
	}
	c.cache.store(uuid, data)
	return data, nil
}

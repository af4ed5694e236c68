package store

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/kenneth/fs2cloud/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// xorEncryptor is a stand-in Encryptor: symmetric, deterministic, and
// guaranteed to change the bytes.
type xorEncryptor struct{}

func (xorEncryptor) Encrypt(_ context.Context, clear []byte) ([]byte, error) {
	out := make([]byte, len(clear))
	for i, b := range clear {
		out[i] = b ^ 0xa5
	}
	return out, nil
}

func (xorEncryptor) Decrypt(ctx context.Context, cipher []byte) ([]byte, error) {
	return xorEncryptor{}.Encrypt(ctx, cipher)
}

type failingEncryptor struct{}

func (failingEncryptor) Encrypt(context.Context, []byte) ([]byte, error) {
	return nil, errors.New("no key material")
}

func (failingEncryptor) Decrypt(context.Context, []byte) ([]byte, error) {
	return nil, errors.New("no key material")
}

func TestEncryptLayer_RoundTrip(t *testing.T) {
	backend := NewLogStore(testLogger())
	st := NewEncryptLayer(backend, xorEncryptor{}, nil)

	clear := []byte("chunk payload")
	require.NoError(t, st.Put(context.Background(), "u1", clear))

	// The backend must hold cipher bytes, not clear bytes.
	stored, err := backend.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotEqual(t, clear, stored)

	got, err := st.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, clear, got)
}

func TestEncryptLayer_EncryptError(t *testing.T) {
	st := NewEncryptLayer(NewLogStore(testLogger()), failingEncryptor{}, nil)

	err := st.Put(context.Background(), "u1", []byte("x"))
	require.Error(t, err)
}

func TestCacheLayer_FS(t *testing.T) {
	backend := NewLogStore(testLogger())
	fsCache, err := NewFSCache(t.TempDir(), testLogger())
	require.NoError(t, err)
	st := NewCacheLayer(backend, fsCache, testLogger())

	data := []byte("cached bytes")
	require.NoError(t, st.Put(context.Background(), "u1", data))

	// Put wrote through to the cache.
	cached, ok := fsCache.load("u1")
	require.True(t, ok)
	assert.Equal(t, data, cached)

	got, err := st.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestCacheLayer_MissPopulatesCache(t *testing.T) {
	backend := NewLogStore(testLogger())
	require.NoError(t, backend.Put(context.Background(), "u1", []byte("origin")))

	fsCache, err := NewFSCache(t.TempDir(), testLogger())
	require.NoError(t, err)
	st := NewCacheLayer(backend, fsCache, testLogger())

	got, err := st.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []byte("origin"), got)

	cached, ok := fsCache.load("u1")
	require.True(t, ok)
	assert.Equal(t, []byte("origin"), cached)
}

func TestCacheLayer_HitSkipsBackend(t *testing.T) {
	backend := NewLogStore(testLogger())
	fsCache, err := NewFSCache(t.TempDir(), testLogger())
	require.NoError(t, err)
	st := NewCacheLayer(backend, fsCache, testLogger())

	fsCache.store("u1", []byte("from cache"))

	// The backend has no such object; a hit must never consult it.
	got, err := st.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []byte("from cache"), got)
}

func TestRedisCache(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})

	c := NewRedisCache(client, 0, testLogger())

	_, ok := c.load("u1")
	assert.False(t, ok)

	c.store("u1", []byte("redis bytes"))
	got, ok := c.load("u1")
	require.True(t, ok)
	assert.Equal(t, []byte("redis bytes"), got)
}

func TestLocalStore_RoundTrip(t *testing.T) {
	st, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, st.Put(context.Background(), "u1", []byte("object")))
	got, err := st.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []byte("object"), got)

	_, err = st.Get(context.Background(), "missing")
	require.Error(t, err)
}

func TestLogStore_MissingObject(t *testing.T) {
	st := NewLogStore(testLogger())
	_, err := st.Get(context.Background(), "nope")
	require.Error(t, err)
}

func TestMeteredStore_RecordsOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetricsWithRegistry(reg)

	st := NewMeteredStore(NewLogStore(testLogger()), "log", m)
	require.NoError(t, st.Put(context.Background(), "u1", []byte("x")))

	got, err := st.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)

	_, err = st.Get(context.Background(), "missing")
	require.Error(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "store_operations_total")
	assert.Contains(t, names, "store_operation_errors_total")
}

func TestFullStack_ClearAtBoundary(t *testing.T) {
	backend := NewLogStore(testLogger())
	fsCache, err := NewFSCache(t.TempDir(), testLogger())
	require.NoError(t, err)

	stack := NewCacheLayer(NewEncryptLayer(backend, xorEncryptor{}, nil), fsCache, testLogger())

	clear := []byte("the exposed store holds clear bytes")
	require.NoError(t, stack.Put(context.Background(), "u1", clear))

	// Cache sits above the encrypt layer: it holds clear bytes.
	cached, ok := fsCache.load("u1")
	require.True(t, ok)
	assert.Equal(t, clear, cached)

	// The backend sits below: cipher bytes only.
	stored, err := backend.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotEqual(t, clear, stored)

	got, err := stack.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, clear, got)
}

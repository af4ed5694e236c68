package puller

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kenneth/fs2cloud/internal/catalog"
	"github.com/kenneth/fs2cloud/internal/planner"
	"github.com/kenneth/fs2cloud/internal/pusher"
	"github.com/kenneth/fs2cloud/internal/store"
	"github.com/kenneth/fs2cloud/internal/workerpool"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// pushFixture crawls and pushes root into an in-memory store, returning
// the shared catalog and store.
func pushFixture(t *testing.T, root string, chunkSize, aggMin, aggSize int64) (*catalog.Catalog, store.Store) {
	t.Helper()
	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	p := planner.New(cat, planner.Config{ChunkSize: chunkSize, AggregateMinSize: aggMin, AggregateSize: aggSize}, testLogger())
	require.NoError(t, p.Crawl(root))

	st := store.NewLogStore(testLogger())
	pool := workerpool.New(4, 4, testLogger())
	push := pusher.New(cat, root, st, pool, nil, nil, nil, testLogger())
	require.NoError(t, push.Run(context.Background()))
	pool.Close()

	return cat, st
}

func writeFile(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, data, 0o644))
}

func patternBytes(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i * 13)
	}
	return data
}

func TestPull_ChunkedRoundTrip(t *testing.T) {
	root := t.TempDir()
	data := patternBytes(250)
	writeFile(t, root, "big.bin", data)

	cat, st := pushFixture(t, root, 100, 0, 100)

	dst := filepath.Join(t.TempDir(), "restored", "big.bin")
	pull := New(cat, st, nil, nil, testLogger())
	pool := workerpool.New(4, 4, testLogger())
	require.NoError(t, pull.Pull(context.Background(), pool, "big.bin", dst))

	restored, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, data, restored)
}

func TestPull_AggregatedMember(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", []byte("member a"))
	writeFile(t, root, "nested/b.txt", []byte("member b, nested"))

	cat, st := pushFixture(t, root, 100<<20, 1<<20, 10<<20)

	dst := filepath.Join(t.TempDir(), "b.txt")
	pull := New(cat, st, nil, nil, testLogger())
	pool := workerpool.New(2, 2, testLogger())
	require.NoError(t, pull.Pull(context.Background(), pool, "nested/b.txt", dst))

	restored, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("member b, nested"), restored)
}

func TestPull_AggregateRefused(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", []byte("member"))

	cat, st := pushFixture(t, root, 100<<20, 1<<20, 10<<20)

	aggregates, err := cat.Files.FindByMode([]catalog.FileMode{catalog.ModeAggregate})
	require.NoError(t, err)
	require.Len(t, aggregates, 1)

	pull := New(cat, st, nil, nil, testLogger())
	pool := workerpool.New(1, 0, testLogger())
	err = pull.Pull(context.Background(), pool, aggregates[0].Path, filepath.Join(t.TempDir(), "out"))
	require.Error(t, err)
	pool.Close()
}

func TestPull_UnknownFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "real.bin", patternBytes(10))
	cat, st := pushFixture(t, root, 100, 0, 100)

	pull := New(cat, st, nil, nil, testLogger())
	pool := workerpool.New(1, 0, testLogger())
	err := pull.Pull(context.Background(), pool, "ghost.bin", filepath.Join(t.TempDir(), "out"))
	require.Error(t, err)
	pool.Close()
}

func TestPull_RefusesExistingDestination(t *testing.T) {
	root := t.TempDir()
	data := patternBytes(10)
	writeFile(t, root, "a.bin", data)
	cat, st := pushFixture(t, root, 100, 0, 100)

	dst := filepath.Join(t.TempDir(), "a.bin")
	require.NoError(t, os.WriteFile(dst, []byte("precious"), 0o644))

	pull := New(cat, st, nil, nil, testLogger())
	pool := workerpool.New(1, 0, testLogger())
	err := pull.Pull(context.Background(), pool, "a.bin", dst)
	require.Error(t, err)
	pool.Close()

	// The existing file is untouched.
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("precious"), got)
}

func TestPull_StoreFailureLeavesSparseDestination(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.bin", patternBytes(50))
	cat, _ := pushFixture(t, root, 100, 0, 100)

	dst := filepath.Join(t.TempDir(), "a.bin")
	pull := New(cat, brokenStore{}, nil, nil, testLogger())
	pool := workerpool.New(1, 0, testLogger())

	// Chunk jobs log their own errors; the writer then writes nothing and
	// the destination keeps its sparse size with no bytes written.
	err := pull.Pull(context.Background(), pool, "a.bin", dst)
	require.NoError(t, err)

	info, statErr := os.Stat(dst)
	require.NoError(t, statErr)
	assert.Equal(t, int64(50), info.Size(), "sparse size remains when no chunk arrives")
}

type brokenStore struct{}

func (brokenStore) Put(context.Context, string, []byte) error {
	return assert.AnError
}

func (brokenStore) Get(context.Context, string) ([]byte, error) {
	return nil, assert.AnError
}

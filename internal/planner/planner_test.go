package planner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kenneth/fs2cloud/internal/catalog"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func openTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })
	return cat
}

func writeFile(t *testing.T, root, rel string, size int) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(full, data, 0o644))
}

func TestCrawl_ChunkedLayout(t *testing.T) {
	cat := openTestCatalog(t)
	root := t.TempDir()
	writeFile(t, root, "big.bin", 250)

	p := New(cat, Config{ChunkSize: 100, AggregateMinSize: 0, AggregateSize: 100}, testLogger())
	require.NoError(t, p.Crawl(root))

	f, found, err := cat.Files.FindByPath("big.bin")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, catalog.ModeChunked, f.Mode)
	assert.Equal(t, uint64(3), f.Chunks)
	assert.Equal(t, uint64(250), f.Size)
	assert.Equal(t, catalog.StatusPending, f.Status)
	assert.Empty(t, f.SHA256)

	chunks, err := cat.Chunks.FindByFileUUID(f.UUID)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	var total uint64
	for i, ch := range chunks {
		assert.Equal(t, uint64(i), ch.Idx)
		assert.Equal(t, uint64(i)*100, ch.Offset)
		total += ch.PayloadSize
	}
	assert.Equal(t, uint64(100), chunks[0].PayloadSize)
	assert.Equal(t, uint64(100), chunks[1].PayloadSize)
	assert.Equal(t, uint64(50), chunks[2].PayloadSize)
	assert.Equal(t, f.Size, total)
}

func TestCrawl_Idempotent(t *testing.T) {
	cat := openTestCatalog(t)
	root := t.TempDir()
	writeFile(t, root, "big.bin", 250)
	writeFile(t, root, "small.txt", 4)

	cfg := Config{ChunkSize: 100, AggregateMinSize: 50, AggregateSize: 100}
	require.NoError(t, New(cat, cfg, testLogger()).Crawl(root))

	filesBefore, err := cat.Files.ListAll()
	require.NoError(t, err)
	chunksBefore, err := cat.Chunks.CountByStatus(catalog.StatusPending)
	require.NoError(t, err)

	// A second crawl over the unchanged tree adds nothing.
	require.NoError(t, New(cat, cfg, testLogger()).Crawl(root))

	filesAfter, err := cat.Files.ListAll()
	require.NoError(t, err)
	chunksAfter, err := cat.Chunks.CountByStatus(catalog.StatusPending)
	require.NoError(t, err)

	assert.Equal(t, len(filesBefore), len(filesAfter))
	assert.Equal(t, chunksBefore, chunksAfter)
}

func TestCrawl_AggregateGrouping(t *testing.T) {
	cat := openTestCatalog(t)
	root := t.TempDir()
	writeFile(t, root, "a.txt", 1024)
	writeFile(t, root, "b.txt", 1024)
	writeFile(t, root, "c.txt", 1024)

	p := New(cat, Config{ChunkSize: 100 << 20, AggregateMinSize: 1 << 20, AggregateSize: 10 << 20}, testLogger())
	require.NoError(t, p.Crawl(root))

	// All three members land in one aggregate group.
	aggPathA, found, err := cat.Aggregates.FindByFilePath("a.txt")
	require.NoError(t, err)
	require.True(t, found)
	aggPathB, _, err := cat.Aggregates.FindByFilePath("b.txt")
	require.NoError(t, err)
	assert.Equal(t, aggPathA, aggPathB)

	aggregates, err := cat.Files.FindByMode([]catalog.FileMode{catalog.ModeAggregate})
	require.NoError(t, err)
	require.Len(t, aggregates, 1)
	assert.Equal(t, uint64(1), aggregates[0].Chunks)

	chunks, err := cat.Chunks.FindByFileUUID(aggregates[0].UUID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, uint64(0), chunks[0].Idx)

	members, err := cat.Aggregates.FindByAggregatePath(aggPathA)
	require.NoError(t, err)
	assert.Len(t, members, 3)
}

func TestCrawl_AggregateGroupRollsOver(t *testing.T) {
	cat := openTestCatalog(t)
	root := t.TempDir()
	writeFile(t, root, "a.txt", 600)
	writeFile(t, root, "b.txt", 600)

	// Two 600-byte members cannot share a 1000-byte group.
	p := New(cat, Config{ChunkSize: 100 << 20, AggregateMinSize: 1 << 20, AggregateSize: 1000}, testLogger())
	require.NoError(t, p.Crawl(root))

	aggregates, err := cat.Files.FindByMode([]catalog.FileMode{catalog.ModeAggregate})
	require.NoError(t, err)
	assert.Len(t, aggregates, 2)
}

func TestCrawl_IgnoreGlobs(t *testing.T) {
	cat := openTestCatalog(t)
	root := t.TempDir()
	writeFile(t, root, "keep.bin", 10)
	writeFile(t, root, "skip.tmp", 10)
	writeFile(t, root, "node_modules/dep.js", 10)

	p := New(cat, Config{ChunkSize: 100, AggregateMinSize: 0, AggregateSize: 100, Ignore: []string{"*.tmp", "node_modules*"}}, testLogger())
	require.NoError(t, p.Crawl(root))

	files, err := cat.Files.ListAll()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "keep.bin", files[0].Path)
}

func TestCrawl_SymlinksSkipped(t *testing.T) {
	cat := openTestCatalog(t)
	root := t.TempDir()
	writeFile(t, root, "real.bin", 10)
	require.NoError(t, os.Symlink(filepath.Join(root, "real.bin"), filepath.Join(root, "link.bin")))

	p := New(cat, Config{ChunkSize: 100, AggregateMinSize: 0, AggregateSize: 100}, testLogger())
	require.NoError(t, p.Crawl(root))

	_, found, err := cat.Files.FindByPath("link.bin")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCrawl_InodeChain(t *testing.T) {
	cat := openTestCatalog(t)
	root := t.TempDir()
	writeFile(t, root, "docs/2024/report.pdf", 10)

	p := New(cat, Config{ChunkSize: 100, AggregateMinSize: 0, AggregateSize: 100}, testLogger())
	require.NoError(t, p.Crawl(root))

	docs, found, err := cat.Inodes.FindInodeByNameAndParentID("docs", 0)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, docs.IsDir())

	year, found, err := cat.Inodes.FindInodeByNameAndParentID("2024", docs.ID)
	require.NoError(t, err)
	require.True(t, found)

	leaf, found, err := cat.Inodes.FindInodeByNameAndParentID("report.pdf", year.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, leaf.IsDir())

	f, _, err := cat.Files.FindByPath("docs/2024/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, f.UUID, leaf.FileUUID)
}

func TestCrawl_ZeroByteFileGetsOneChunk(t *testing.T) {
	cat := openTestCatalog(t)
	root := t.TempDir()
	writeFile(t, root, "empty.bin", 0)

	p := New(cat, Config{ChunkSize: 100, AggregateMinSize: 0, AggregateSize: 100}, testLogger())
	require.NoError(t, p.Crawl(root))

	f, found, err := cat.Files.FindByPath("empty.bin")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(1), f.Chunks)

	chunks, err := cat.Chunks.FindByFileUUID(f.UUID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, uint64(0), chunks[0].PayloadSize)
}

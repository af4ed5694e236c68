package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	cat, err := Open(filepath.Join(t.TempDir(), "catalog.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })
	return cat
}

func testFile(path string, mode FileMode, size, chunks uint64) File {
	return File{
		UUID:   uuid.New().String(),
		Path:   path,
		Size:   size,
		Chunks: chunks,
		Mode:   mode,
		Status: StatusPending,
	}
}

func TestFileRepo_InsertAndFind(t *testing.T) {
	cat := openTestCatalog(t)

	f := testFile("docs/report.pdf", ModeChunked, 300, 3)
	require.NoError(t, cat.Files.Insert(f))

	byPath, found, err := cat.Files.FindByPath("docs/report.pdf")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, f.UUID, byPath.UUID)
	assert.Equal(t, StatusPending, byPath.Status)
	assert.Equal(t, ModeChunked, byPath.Mode)

	byUUID, found, err := cat.Files.FindByUUID(f.UUID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, f.Path, byUUID.Path)

	_, found, err = cat.Files.FindByPath("docs/missing.pdf")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFileRepo_DuplicatePathRejected(t *testing.T) {
	cat := openTestCatalog(t)

	require.NoError(t, cat.Files.Insert(testFile("a.bin", ModeChunked, 1, 1)))
	err := cat.Files.Insert(testFile("a.bin", ModeChunked, 1, 1))
	require.Error(t, err)
}

func TestFileRepo_MarkDone(t *testing.T) {
	cat := openTestCatalog(t)

	f := testFile("a.bin", ModeChunked, 10, 1)
	require.NoError(t, cat.Files.Insert(f))
	require.NoError(t, cat.Files.MarkDone(f.UUID, "cafef00d"))

	got, _, err := cat.Files.FindByUUID(f.UUID)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, got.Status)
	assert.Equal(t, "cafef00d", got.SHA256)
}

func TestFileRepo_FindByStatusAndMode(t *testing.T) {
	cat := openTestCatalog(t)

	chunked := testFile("big.bin", ModeChunked, 100, 1)
	agg := testFile("agg.tar", ModeAggregate, 0, 1)
	member := testFile("small.txt", ModeAggregated, 4, 0)
	require.NoError(t, cat.Files.Insert(chunked))
	require.NoError(t, cat.Files.Insert(agg))
	require.NoError(t, cat.Files.Insert(member))
	require.NoError(t, cat.Files.MarkDone(chunked.UUID, "aa"))

	pendingAggregates, err := cat.Files.FindByStatusAndMode(StatusPending, ModeAggregate)
	require.NoError(t, err)
	require.Len(t, pendingAggregates, 1)
	assert.Equal(t, agg.UUID, pendingAggregates[0].UUID)

	pendingChunked, err := cat.Files.FindByStatusAndMode(StatusPending, ModeChunked)
	require.NoError(t, err)
	assert.Empty(t, pendingChunked)

	byMode, err := cat.Files.FindByMode([]FileMode{ModeChunked, ModeAggregated})
	require.NoError(t, err)
	assert.Len(t, byMode, 2)
}

func TestFileRepo_Counts(t *testing.T) {
	cat := openTestCatalog(t)

	require.NoError(t, cat.Files.Insert(testFile("a", ModeChunked, 100, 1)))
	require.NoError(t, cat.Files.Insert(testFile("b", ModeChunked, 250, 3)))

	n, err := cat.Files.CountByStatus(StatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	bytes, err := cat.Files.CountBytesByStatus(StatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(350), bytes)

	n, err = cat.Files.CountByStatus(StatusDone)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func testChunk(fileUUID string, idx, offset, payload uint64) Chunk {
	return Chunk{
		UUID:        uuid.New().String(),
		FileUUID:    fileUUID,
		Idx:         idx,
		Offset:      offset,
		PayloadSize: payload,
		Status:      StatusPending,
	}
}

func TestChunkRepo_InsertAndFind(t *testing.T) {
	cat := openTestCatalog(t)

	f := testFile("a.bin", ModeChunked, 250, 3)
	require.NoError(t, cat.Files.Insert(f))

	c0 := testChunk(f.UUID, 0, 0, 100)
	c1 := testChunk(f.UUID, 1, 100, 100)
	c2 := testChunk(f.UUID, 2, 200, 50)
	for _, c := range []Chunk{c2, c0, c1} { // insertion order must not matter
		require.NoError(t, cat.Chunks.Insert(c))
	}

	all, err := cat.Chunks.FindByFileUUID(f.UUID)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, c := range all {
		assert.Equal(t, uint64(i), c.Idx)
	}

	one, found, err := cat.Chunks.FindByFileUUIDAndIndex(f.UUID, 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, c1.UUID, one.UUID)

	_, found, err = cat.Chunks.FindByFileUUIDAndIndex(f.UUID, 9)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestChunkRepo_DuplicateIndexRejected(t *testing.T) {
	cat := openTestCatalog(t)

	f := testFile("a.bin", ModeChunked, 100, 1)
	require.NoError(t, cat.Files.Insert(f))
	require.NoError(t, cat.Chunks.Insert(testChunk(f.UUID, 0, 0, 100)))
	require.Error(t, cat.Chunks.Insert(testChunk(f.UUID, 0, 0, 100)))
}

func TestChunkRepo_MarkDoneAndSiblings(t *testing.T) {
	cat := openTestCatalog(t)

	f := testFile("a.bin", ModeChunked, 200, 2)
	require.NoError(t, cat.Files.Insert(f))
	c0 := testChunk(f.UUID, 0, 0, 100)
	c1 := testChunk(f.UUID, 1, 100, 100)
	require.NoError(t, cat.Chunks.Insert(c0))
	require.NoError(t, cat.Chunks.Insert(c1))

	require.NoError(t, cat.Chunks.MarkDone(c0.UUID, "00aa", 123))

	siblings, err := cat.Chunks.FindSiblingsByUUID(c0.UUID)
	require.NoError(t, err)
	require.Len(t, siblings, 2)

	var doneCount int
	for _, s := range siblings {
		if s.Status == StatusDone {
			doneCount++
			assert.Equal(t, "00aa", s.SHA256)
			assert.Equal(t, uint64(123), s.Size)
		}
	}
	assert.Equal(t, 1, doneCount)

	pending, err := cat.Chunks.FindByFileUUIDAndStatus(f.UUID, StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, c1.UUID, pending[0].UUID)

	n, err := cat.Chunks.CountByStatus(StatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestChunkRepo_Update(t *testing.T) {
	cat := openTestCatalog(t)

	f := testFile("agg.tar", ModeAggregate, 0, 1)
	require.NoError(t, cat.Files.Insert(f))
	c := testChunk(f.UUID, 0, 0, 0)
	require.NoError(t, cat.Chunks.Insert(c))

	c.PayloadSize = 4096
	require.NoError(t, cat.Chunks.Update(c))

	got, found, err := cat.Chunks.FindByFileUUIDAndIndex(f.UUID, 0)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(4096), got.PayloadSize)
}

func TestAggregateRepo(t *testing.T) {
	cat := openTestCatalog(t)

	require.NoError(t, cat.Aggregates.Insert("group.tar", "a.txt"))
	require.NoError(t, cat.Aggregates.Insert("group.tar", "b.txt"))

	aggPath, found, err := cat.Aggregates.FindByFilePath("a.txt")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "group.tar", aggPath)

	_, found, err = cat.Aggregates.FindByFilePath("c.txt")
	require.NoError(t, err)
	assert.False(t, found)

	members, err := cat.Aggregates.FindByAggregatePath("group.tar")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, members)
}

func TestInodeRepo_GetOrCreateChildIdempotent(t *testing.T) {
	cat := openTestCatalog(t)

	first, err := cat.Inodes.GetOrCreateChild(0, "docs")
	require.NoError(t, err)
	second, err := cat.Inodes.GetOrCreateChild(0, "docs")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.IsDir())

	children, err := cat.Inodes.FindInodesWithParent(0)
	require.NoError(t, err)
	require.Len(t, children, 1)
}

func TestInodeRepo_TreeWalk(t *testing.T) {
	cat := openTestCatalog(t)

	docs, err := cat.Inodes.GetOrCreateChild(0, "docs")
	require.NoError(t, err)

	fileUUID := uuid.New().String()
	leaf, err := cat.Inodes.InsertInode("report.pdf", docs.ID, fileUUID)
	require.NoError(t, err)
	assert.False(t, leaf.IsDir())

	got, found, err := cat.Inodes.FindInodeByNameAndParentID("report.pdf", docs.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, fileUUID, got.FileUUID)

	byID, found, err := cat.Inodes.FindInodeByID(leaf.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, docs.ID, byID.ParentID)

	// Root always exists with id 0.
	root, found, err := cat.Inodes.FindInodeByID(0)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, root.IsDir())
	assert.Empty(t, root.Name)
}

func TestCatalog_Ping(t *testing.T) {
	cat := openTestCatalog(t)
	require.NoError(t, cat.Ping(context.Background()))
}

package export

import (
	"bytes"
	"testing"

	"github.com/kenneth/fs2cloud/internal/catalog"
	"github.com/sirupsen/logrus"
)

func openTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	cat, err := catalog.Open(":memory:", log)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { cat.Close() })
	return cat
}

func seedFile(t *testing.T, cat *catalog.Catalog, uuid, path string) {
	t.Helper()
	f := catalog.File{UUID: uuid, Path: path, SHA256: "deadbeef", Size: 10, Chunks: 1, Mode: catalog.ModeChunked, Status: catalog.StatusDone}
	if err := cat.Files.Insert(f); err != nil {
		t.Fatalf("insert file: %v", err)
	}
	ch := catalog.Chunk{UUID: uuid + "-c0", FileUUID: uuid, Idx: 0, SHA256: "cafebabe", Offset: 0, Size: 12, PayloadSize: 10, Status: catalog.StatusDone}
	if err := cat.Chunks.Insert(ch); err != nil {
		t.Fatalf("insert chunk: %v", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	src := openTestCatalog(t)
	seedFile(t, src, "file-1", "a/b.bin")

	var buf bytes.Buffer
	if err := Export(src, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}

	dst := openTestCatalog(t)
	n, err := Import(dst, &buf)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 1 {
		t.Fatalf("imported = %d, want 1", n)
	}

	f, found, err := dst.Files.FindByPath("a/b.bin")
	if err != nil || !found {
		t.Fatalf("find imported file: found=%v err=%v", found, err)
	}
	if f.SHA256 != "deadbeef" || f.Status != catalog.StatusDone {
		t.Fatalf("unexpected imported file: %+v", f)
	}

	chunks, err := dst.Chunks.FindByFileUUID(f.UUID)
	if err != nil || len(chunks) != 1 {
		t.Fatalf("find imported chunks: chunks=%v err=%v", chunks, err)
	}
}

func TestImportIsIdempotentByPath(t *testing.T) {
	src := openTestCatalog(t)
	seedFile(t, src, "file-1", "a/b.bin")

	var buf bytes.Buffer
	if err := Export(src, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}
	doc := buf.Bytes()

	dst := openTestCatalog(t)
	if _, err := Import(dst, bytes.NewReader(doc)); err != nil {
		t.Fatalf("first import: %v", err)
	}
	n, err := Import(dst, bytes.NewReader(doc))
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if n != 0 {
		t.Fatalf("second import inserted %d new files, want 0", n)
	}

	files, err := dst.Files.ListAll()
	if err != nil {
		t.Fatalf("list files: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("files = %d, want 1", len(files))
	}
}

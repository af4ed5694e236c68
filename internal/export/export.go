// Package export implements the JSON catalog export/import: a flat array
// of files, each carrying its chunks, for offline inspection or migrating
// a catalog between databases.
package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/kenneth/fs2cloud/internal/catalog"
	"github.com/kenneth/fs2cloud/internal/ferrors"
)

// ChunkRecord is one chunk entry in the export schema.
type ChunkRecord struct {
	UUID        string `json:"uuid"`
	Idx         uint64 `json:"idx"`
	SHA256      string `json:"sha256"`
	Offset      uint64 `json:"offset"`
	Size        uint64 `json:"size"`
	PayloadSize uint64 `json:"payload_size"`
}

// FileRecord is one file entry in the export schema, carrying its chunks.
type FileRecord struct {
	UUID   string        `json:"uuid"`
	Path   string        `json:"path"`
	Size   uint64        `json:"size"`
	SHA256 string        `json:"sha256"`
	Mode   string        `json:"mode"`
	Chunks []ChunkRecord `json:"chunks"`
}

// Export writes every File (and its Chunks) in cat to w as a JSON array.
func Export(cat *catalog.Catalog, w io.Writer) error {
	files, err := cat.Files.ListAll()
	if err != nil {
		return err
	}

	records := make([]FileRecord, 0, len(files))
	for _, f := range files {
		chunks, err := cat.Chunks.FindByFileUUID(f.UUID)
		if err != nil {
			return err
		}
		rec := FileRecord{
			UUID:   f.UUID,
			Path:   f.Path,
			Size:   f.Size,
			SHA256: f.SHA256,
			Mode:   string(f.Mode),
			Chunks: make([]ChunkRecord, 0, len(chunks)),
		}
		for _, ch := range chunks {
			rec.Chunks = append(rec.Chunks, ChunkRecord{
				UUID:        ch.UUID,
				Idx:         ch.Idx,
				SHA256:      ch.SHA256,
				Offset:      ch.Offset,
				Size:        ch.Size,
				PayloadSize: ch.PayloadSize,
			})
		}
		records = append(records, rec)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("%w: encode export: %v", ferrors.ErrCatalog, err)
	}
	return nil
}

// Import reads a JSON array produced by Export from r and inserts any file
// (and its chunks) whose path is not already present in cat. Import is
// idempotent by path: re-importing the same document is a no-op.
func Import(cat *catalog.Catalog, r io.Reader) (int, error) {
	var records []FileRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return 0, fmt.Errorf("%w: decode import document: %v", ferrors.ErrCatalog, err)
	}

	imported := 0
	for _, rec := range records {
		_, found, err := cat.Files.FindByPath(rec.Path)
		if err != nil {
			return imported, err
		}
		if found {
			continue
		}

		f := catalog.File{
			UUID:   rec.UUID,
			Path:   rec.Path,
			SHA256: rec.SHA256,
			Size:   rec.Size,
			Chunks: uint64(len(rec.Chunks)),
			Mode:   catalog.FileMode(rec.Mode),
			Status: catalog.StatusDone,
		}
		if err := cat.Files.Insert(f); err != nil {
			return imported, err
		}
		for _, chRec := range rec.Chunks {
			ch := catalog.Chunk{
				UUID:        chRec.UUID,
				FileUUID:    rec.UUID,
				Idx:         chRec.Idx,
				SHA256:      chRec.SHA256,
				Offset:      chRec.Offset,
				Size:        chRec.Size,
				PayloadSize: chRec.PayloadSize,
				Status:      catalog.StatusDone,
			}
			if err := cat.Chunks.Insert(ch); err != nil {
				return imported, err
			}
		}
		imported++
	}
	return imported, nil
}

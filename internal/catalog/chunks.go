package catalog

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/kenneth/fs2cloud/internal/ferrors"
)

// ChunkRepo is the Chunk entity's repository.
type ChunkRepo struct{ c *Catalog }

const chunkColumns = `uuid, file_uuid, idx, sha256, offset, size, payload_size, status`

func scanChunk(row interface{ Scan(...any) error }) (Chunk, error) {
	var ch Chunk
	var status string
	if err := row.Scan(&ch.UUID, &ch.FileUUID, &ch.Idx, &ch.SHA256, &ch.Offset, &ch.Size, &ch.PayloadSize, &status); err != nil {
		return Chunk{}, err
	}
	ch.Status = Status(status)
	return ch, nil
}

func scanChunks(rows *sql.Rows) ([]Chunk, error) {
	var out []Chunk
	for rows.Next() {
		ch, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan chunk row: %v", ferrors.ErrCatalog, err)
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// Insert inserts a new Chunk row.
func (r *ChunkRepo) Insert(ch Chunk) error {
	_, err := r.c.db.Exec(
		`INSERT INTO chunks (`+chunkColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ch.UUID, ch.FileUUID, ch.Idx, ch.SHA256, ch.Offset, ch.Size, ch.PayloadSize, string(ch.Status),
	)
	if err != nil {
		return fmt.Errorf("%w: insert chunk %s: %v", ferrors.ErrCatalog, ch.UUID, err)
	}
	return nil
}

// Update overwrites every mutable field of a Chunk row (used by the
// Aggregate pass to set payload_size once the archive length is known).
func (r *ChunkRepo) Update(ch Chunk) error {
	_, err := r.c.db.Exec(
		`UPDATE chunks SET sha256 = ?, offset = ?, size = ?, payload_size = ?, status = ? WHERE uuid = ?`,
		ch.SHA256, ch.Offset, ch.Size, ch.PayloadSize, string(ch.Status), ch.UUID,
	)
	if err != nil {
		return fmt.Errorf("%w: update chunk %s: %v", ferrors.ErrCatalog, ch.UUID, err)
	}
	return nil
}

// MarkDone transitions a Chunk Pending->Done, recording the clear-payload
// sha256 and the cipher size.
func (r *ChunkRepo) MarkDone(uuid, sha256 string, cipherSize uint64) error {
	res, err := r.c.db.Exec(`UPDATE chunks SET status = ?, sha256 = ?, size = ? WHERE uuid = ? AND status = ?`,
		string(StatusDone), sha256, cipherSize, uuid, string(StatusPending))
	if err != nil {
		return fmt.Errorf("%w: mark chunk done %s: %v", ferrors.ErrCatalog, uuid, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: chunk %s already done or missing", ferrors.ErrCatalog, uuid)
	}
	return nil
}

// FindByFileUUID returns every chunk of a file, ordered by idx.
func (r *ChunkRepo) FindByFileUUID(fileUUID string) ([]Chunk, error) {
	rows, err := r.c.db.Query(`SELECT `+chunkColumns+` FROM chunks WHERE file_uuid = ? ORDER BY idx`, fileUUID)
	if err != nil {
		return nil, fmt.Errorf("%w: find chunks by file %s: %v", ferrors.ErrCatalog, fileUUID, err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// FindByFileUUIDAndIndex returns the single chunk at idx, if present.
func (r *ChunkRepo) FindByFileUUIDAndIndex(fileUUID string, idx uint64) (Chunk, bool, error) {
	row := r.c.db.QueryRow(`SELECT `+chunkColumns+` FROM chunks WHERE file_uuid = ? AND idx = ?`, fileUUID, idx)
	ch, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Chunk{}, false, nil
	}
	if err != nil {
		return Chunk{}, false, fmt.Errorf("%w: find chunk %s[%d]: %v", ferrors.ErrCatalog, fileUUID, idx, err)
	}
	return ch, true, nil
}

// FindByFileUUIDAndStatus returns every chunk of a file in the given status.
func (r *ChunkRepo) FindByFileUUIDAndStatus(fileUUID string, status Status) ([]Chunk, error) {
	rows, err := r.c.db.Query(`SELECT `+chunkColumns+` FROM chunks WHERE file_uuid = ? AND status = ? ORDER BY idx`, fileUUID, string(status))
	if err != nil {
		return nil, fmt.Errorf("%w: find chunks by file/status: %v", ferrors.ErrCatalog, err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// FindSiblingsByUUID returns the chunk with this uuid plus every other
// chunk of the same file, used by Pusher.finalize's "last sibling" check.
func (r *ChunkRepo) FindSiblingsByUUID(uuid string) ([]Chunk, error) {
	row := r.c.db.QueryRow(`SELECT file_uuid FROM chunks WHERE uuid = ?`, uuid)
	var fileUUID string
	if err := row.Scan(&fileUUID); err != nil {
		return nil, fmt.Errorf("%w: find siblings of %s: %v", ferrors.ErrCatalog, uuid, err)
	}
	return r.FindByFileUUID(fileUUID)
}

// CountByStatus returns the number of Chunk rows in the given status.
func (r *ChunkRepo) CountByStatus(status Status) (int64, error) {
	var n int64
	if err := r.c.db.QueryRow(`SELECT COUNT(*) FROM chunks WHERE status = ?`, string(status)).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count chunks by status: %v", ferrors.ErrCatalog, err)
	}
	return n, nil
}

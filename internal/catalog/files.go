package catalog

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/kenneth/fs2cloud/internal/ferrors"
)

// FileRepo is the File entity's repository.
type FileRepo struct{ c *Catalog }

// Insert inserts a new File row. Status and Mode must already be set.
func (r *FileRepo) Insert(f File) error {
	_, err := r.c.db.Exec(
		`INSERT INTO files (uuid, path, sha256, size, chunks, mode, status) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.UUID, f.Path, f.SHA256, f.Size, f.Chunks, string(f.Mode), string(f.Status),
	)
	if err != nil {
		return fmt.Errorf("%w: insert file %s: %v", ferrors.ErrCatalog, f.Path, err)
	}
	return nil
}

func scanFile(row interface{ Scan(...any) error }) (File, error) {
	var f File
	var mode, status string
	if err := row.Scan(&f.UUID, &f.Path, &f.SHA256, &f.Size, &f.Chunks, &mode, &status); err != nil {
		return File{}, err
	}
	f.Mode = FileMode(mode)
	f.Status = Status(status)
	return f, nil
}

const fileColumns = `uuid, path, sha256, size, chunks, mode, status`

// FindByPath returns the File at path, or (File{}, false, nil) if absent.
func (r *FileRepo) FindByPath(path string) (File, bool, error) {
	row := r.c.db.QueryRow(`SELECT `+fileColumns+` FROM files WHERE path = ?`, path)
	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return File{}, false, nil
	}
	if err != nil {
		return File{}, false, fmt.Errorf("%w: find file by path %s: %v", ferrors.ErrCatalog, path, err)
	}
	return f, true, nil
}

// FindByUUID returns the File with the given uuid.
func (r *FileRepo) FindByUUID(uuid string) (File, bool, error) {
	row := r.c.db.QueryRow(`SELECT `+fileColumns+` FROM files WHERE uuid = ?`, uuid)
	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return File{}, false, nil
	}
	if err != nil {
		return File{}, false, fmt.Errorf("%w: find file by uuid %s: %v", ferrors.ErrCatalog, uuid, err)
	}
	return f, true, nil
}

// FindByStatusAndMode returns every File with the given status and mode,
// e.g. the Pusher's Pending/Chunked pass.
func (r *FileRepo) FindByStatusAndMode(status Status, mode FileMode) ([]File, error) {
	rows, err := r.c.db.Query(`SELECT `+fileColumns+` FROM files WHERE status = ? AND mode = ?`, string(status), string(mode))
	if err != nil {
		return nil, fmt.Errorf("%w: find files by status/mode: %v", ferrors.ErrCatalog, err)
	}
	defer rows.Close()
	return scanFiles(rows)
}

// FindByMode returns every File whose mode is in modes.
func (r *FileRepo) FindByMode(modes []FileMode) ([]File, error) {
	if len(modes) == 0 {
		return nil, nil
	}
	query := `SELECT ` + fileColumns + ` FROM files WHERE mode IN (` + placeholders(len(modes)) + `)`
	args := make([]any, len(modes))
	for i, m := range modes {
		args[i] = string(m)
	}
	rows, err := r.c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: find files by mode: %v", ferrors.ErrCatalog, err)
	}
	defer rows.Close()
	return scanFiles(rows)
}

func scanFiles(rows *sql.Rows) ([]File, error) {
	var out []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan file row: %v", ferrors.ErrCatalog, err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// MarkDone transitions a File Pending->Done, recording its final sha256.
// Invariant: this is called exactly once, when every chunk of the file is
// Done (enforced by the caller, Pusher.finalize).
func (r *FileRepo) MarkDone(uuid, sha256 string) error {
	res, err := r.c.db.Exec(`UPDATE files SET status = ?, sha256 = ? WHERE uuid = ? AND status = ?`,
		string(StatusDone), sha256, uuid, string(StatusPending))
	if err != nil {
		return fmt.Errorf("%w: mark file done %s: %v", ferrors.ErrCatalog, uuid, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: file %s already done or missing", ferrors.ErrCatalog, uuid)
	}
	return nil
}

// SetSize updates the size column after the Aggregate archive is
// serialized (size is unknown at plan time for Aggregate files).
func (r *FileRepo) SetSize(uuid string, size uint64) error {
	if _, err := r.c.db.Exec(`UPDATE files SET size = ? WHERE uuid = ?`, size, uuid); err != nil {
		return fmt.Errorf("%w: set file size %s: %v", ferrors.ErrCatalog, uuid, err)
	}
	return nil
}

// CountByStatus returns the number of File rows in the given status.
func (r *FileRepo) CountByStatus(status Status) (int64, error) {
	var n int64
	if err := r.c.db.QueryRow(`SELECT COUNT(*) FROM files WHERE status = ?`, string(status)).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count files by status: %v", ferrors.ErrCatalog, err)
	}
	return n, nil
}

// CountBytesByStatus sums the size of every File in the given status.
func (r *FileRepo) CountBytesByStatus(status Status) (int64, error) {
	var n sql.NullInt64
	if err := r.c.db.QueryRow(`SELECT SUM(size) FROM files WHERE status = ?`, string(status)).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count bytes by status: %v", ferrors.ErrCatalog, err)
	}
	return n.Int64, nil
}

// ListAll returns every File row, ordered by path.
func (r *FileRepo) ListAll() ([]File, error) {
	rows, err := r.c.db.Query(`SELECT ` + fileColumns + ` FROM files ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("%w: list files: %v", ferrors.ErrCatalog, err)
	}
	defer rows.Close()
	return scanFiles(rows)
}

func placeholders(n int) string {
	s := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		if i > 0 {
			s = append(s, ',')
		}
		s = append(s, '?')
	}
	return string(s)
}

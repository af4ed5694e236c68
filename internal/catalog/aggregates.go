package catalog

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/kenneth/fs2cloud/internal/ferrors"
)

// AggregateRepo is the Aggregate link table's repository: a many-to-one
// mapping from member-file path to the path of the enclosing Aggregate
// File.
type AggregateRepo struct{ c *Catalog }

// Insert records that filePath is a member of the archive at aggregatePath.
func (r *AggregateRepo) Insert(aggregatePath, filePath string) error {
	_, err := r.c.db.Exec(`INSERT INTO aggregates (aggregate_path, file_path) VALUES (?, ?)`, aggregatePath, filePath)
	if err != nil {
		return fmt.Errorf("%w: insert aggregate link %s<-%s: %v", ferrors.ErrCatalog, aggregatePath, filePath, err)
	}
	return nil
}

// FindByFilePath returns the aggregate path that filePath belongs to.
func (r *AggregateRepo) FindByFilePath(filePath string) (string, bool, error) {
	var aggPath string
	err := r.c.db.QueryRow(`SELECT aggregate_path FROM aggregates WHERE file_path = ?`, filePath).Scan(&aggPath)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: find aggregate by file path %s: %v", ferrors.ErrCatalog, filePath, err)
	}
	return aggPath, true, nil
}

// FindByAggregatePath returns every member file path of the archive at
// aggregatePath, in insertion order.
func (r *AggregateRepo) FindByAggregatePath(aggregatePath string) ([]string, error) {
	rows, err := r.c.db.Query(`SELECT file_path FROM aggregates WHERE aggregate_path = ? ORDER BY rowid`, aggregatePath)
	if err != nil {
		return nil, fmt.Errorf("%w: find aggregate members %s: %v", ferrors.ErrCatalog, aggregatePath, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("%w: scan aggregate member: %v", ferrors.ErrCatalog, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

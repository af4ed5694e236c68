package catalog

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/kenneth/fs2cloud/internal/ferrors"
)

// InodeRepo is the Inode tree's repository. Directories are inferred
// (FileUUID empty); there is no separate directory table.
type InodeRepo struct{ c *Catalog }

// GetOrCreateChild returns the child directory inode named name under
// parentID, creating it if absent. Idempotent.
func (r *InodeRepo) GetOrCreateChild(parentID uint64, name string) (Inode, error) {
	ino, ok, err := r.FindInodeByNameAndParentID(name, parentID)
	if err != nil {
		return Inode{}, err
	}
	if ok {
		return ino, nil
	}

	res, err := r.c.db.Exec(`INSERT INTO inodes (parent_id, file_uuid, name) VALUES (?, '', ?)`, parentID, name)
	if err != nil {
		// Lost the race with another planner goroutine; re-read.
		if existing, ok2, err2 := r.FindInodeByNameAndParentID(name, parentID); err2 == nil && ok2 {
			return existing, nil
		}
		return Inode{}, fmt.Errorf("%w: create child inode %s under %d: %v", ferrors.ErrCatalog, name, parentID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Inode{}, fmt.Errorf("%w: read new inode id: %v", ferrors.ErrCatalog, err)
	}
	return Inode{ID: uint64(id), ParentID: parentID, Name: name}, nil
}

// InsertInode creates the leaf inode for a regular file, carrying its
// file_uuid.
func (r *InodeRepo) InsertInode(name string, parentID uint64, fileUUID string) (Inode, error) {
	res, err := r.c.db.Exec(`INSERT INTO inodes (parent_id, file_uuid, name) VALUES (?, ?, ?)`, parentID, fileUUID, name)
	if err != nil {
		return Inode{}, fmt.Errorf("%w: insert file inode %s: %v", ferrors.ErrCatalog, name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Inode{}, fmt.Errorf("%w: read new inode id: %v", ferrors.ErrCatalog, err)
	}
	return Inode{ID: uint64(id), ParentID: parentID, Name: name, FileUUID: fileUUID}, nil
}

func scanInode(row interface{ Scan(...any) error }) (Inode, error) {
	var i Inode
	if err := row.Scan(&i.ID, &i.ParentID, &i.FileUUID, &i.Name); err != nil {
		return Inode{}, err
	}
	return i, nil
}

const inodeColumns = `id, parent_id, file_uuid, name`

// FindInodeByID returns the inode with the given id.
func (r *InodeRepo) FindInodeByID(id uint64) (Inode, bool, error) {
	row := r.c.db.QueryRow(`SELECT `+inodeColumns+` FROM inodes WHERE id = ?`, id)
	ino, err := scanInode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Inode{}, false, nil
	}
	if err != nil {
		return Inode{}, false, fmt.Errorf("%w: find inode %d: %v", ferrors.ErrCatalog, id, err)
	}
	return ino, true, nil
}

// FindInodeByNameAndParentID returns the inode named name under parentID.
func (r *InodeRepo) FindInodeByNameAndParentID(name string, parentID uint64) (Inode, bool, error) {
	row := r.c.db.QueryRow(`SELECT `+inodeColumns+` FROM inodes WHERE parent_id = ? AND name = ?`, parentID, name)
	ino, err := scanInode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Inode{}, false, nil
	}
	if err != nil {
		return Inode{}, false, fmt.Errorf("%w: find inode %s/%d: %v", ferrors.ErrCatalog, name, parentID, err)
	}
	return ino, true, nil
}

// FindInodesWithParent returns every direct child of parentID, ordered by
// name.
func (r *InodeRepo) FindInodesWithParent(parentID uint64) ([]Inode, error) {
	rows, err := r.c.db.Query(`SELECT `+inodeColumns+` FROM inodes WHERE parent_id = ? AND id != ? ORDER BY name`, parentID, parentID)
	if err != nil {
		return nil, fmt.Errorf("%w: find children of %d: %v", ferrors.ErrCatalog, parentID, err)
	}
	defer rows.Close()

	var out []Inode
	for rows.Next() {
		ino, err := scanInode(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan inode row: %v", ferrors.ErrCatalog, err)
		}
		out = append(out, ino)
	}
	return out, rows.Err()
}

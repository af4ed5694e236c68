// Package catalog is the transactional key-value layer over a relational
// store recording every file, chunk, aggregate and inode the backup engine
// knows about. It exposes one narrow repository per entity over
// database/sql + mattn/go-sqlite3, serialized through *sql.DB's own
// connection pool so concurrent writers never interleave partial updates.
package catalog

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

const schema = `
CREATE TABLE IF NOT EXISTS files (
	uuid TEXT PRIMARY KEY,
	path TEXT NOT NULL UNIQUE,
	sha256 TEXT NOT NULL DEFAULT '',
	size INTEGER NOT NULL DEFAULT 0,
	chunks INTEGER NOT NULL DEFAULT 0,
	mode TEXT NOT NULL,
	status TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	uuid TEXT PRIMARY KEY,
	file_uuid TEXT NOT NULL,
	idx INTEGER NOT NULL,
	sha256 TEXT NOT NULL DEFAULT '',
	offset INTEGER NOT NULL DEFAULT 0,
	size INTEGER NOT NULL DEFAULT 0,
	payload_size INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	UNIQUE(file_uuid, idx)
);
CREATE INDEX IF NOT EXISTS idx_chunks_file_uuid ON chunks(file_uuid);
CREATE INDEX IF NOT EXISTS idx_chunks_status ON chunks(status);

CREATE TABLE IF NOT EXISTS aggregates (
	aggregate_path TEXT NOT NULL,
	file_path TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS inodes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	parent_id INTEGER NOT NULL,
	file_uuid TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL DEFAULT '',
	UNIQUE(parent_id, name)
);
`

// Catalog owns the connection pool and exposes one repository per entity.
type Catalog struct {
	db  *sql.DB
	log *logrus.Entry

	Files      *FileRepo
	Chunks     *ChunkRepo
	Aggregates *AggregateRepo
	Inodes     *InodeRepo
}

// Open creates (if needed) and migrates the sqlite-backed catalog at path.
func Open(path string, log *logrus.Logger) (*Catalog, error) {
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000&_fk=1")
	if err != nil {
		return nil, fmt.Errorf("catalog error: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // sqlite3 allows a single writer; the pool serializes

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog error: migrate schema: %w", err)
	}

	// The root inode (id 0) always exists and is never created lazily.
	if _, err := db.Exec(`INSERT OR IGNORE INTO inodes (id, parent_id, file_uuid, name) VALUES (0, 0, '', '')`); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog error: seed root inode: %w", err)
	}

	entry := logrus.NewEntry(log).WithField("component", "catalog")

	c := &Catalog{db: db, log: entry}
	c.Files = &FileRepo{c: c}
	c.Chunks = &ChunkRepo{c: c}
	c.Aggregates = &AggregateRepo{c: c}
	c.Inodes = &InodeRepo{c: c}
	return c, nil
}

// Close releases the underlying connection pool.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Ping verifies the database is reachable; the admin server's readiness
// probe calls it.
func (c *Catalog) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

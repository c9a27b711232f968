package nvram

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver.
)

// SQLiteCell keeps the byte cells in a SQLite database, one row per written
// address.
type SQLiteCell struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteCell, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create nvram dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open nvram %s: %w", path, err)
	}
	// One writer; keeps SQLite from returning SQLITE_BUSY to ourselves.
	db.SetMaxOpenConns(1)

	c := &SQLiteCell{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate nvram: %w", err)
	}
	return c, nil
}

func (c *SQLiteCell) migrate() error {
	_, err := c.db.Exec(`CREATE TABLE IF NOT EXISTS cells (
		address INTEGER PRIMARY KEY,
		value INTEGER NOT NULL CHECK (value BETWEEN 0 AND 255)
	);`)
	return err
}

// Read returns the byte at addr, or Erased if it was never written.
func (c *SQLiteCell) Read(addr int) (byte, error) {
	if err := checkAddr(addr); err != nil {
		return 0, err
	}
	var v int
	err := c.db.QueryRow(`SELECT value FROM cells WHERE address = ?`, addr).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return Erased, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read nvram address %d: %w", addr, err)
	}
	return byte(v), nil
}

// Write stores b at addr.
func (c *SQLiteCell) Write(addr int, b byte) error {
	if err := checkAddr(addr); err != nil {
		return err
	}
	_, err := c.db.Exec(
		`INSERT INTO cells (address, value) VALUES (?, ?)
		 ON CONFLICT(address) DO UPDATE SET value = excluded.value`,
		addr, int(b),
	)
	if err != nil {
		return fmt.Errorf("write nvram address %d: %w", addr, err)
	}
	return nil
}

// Close closes the underlying database.
func (c *SQLiteCell) Close() error {
	return c.db.Close()
}

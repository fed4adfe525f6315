// Package noncedb provides a sqlite-backed consumed-nonce store, so a
// gateway restart cannot forget which authorizations were already used.
package noncedb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	_ "modernc.org/sqlite"

	"github.com/etherforge/mintgate/gate"
)

type Store struct {
	db *sql.DB
}

var _ gate.NonceStore = (*Store)(nil)

// Open opens (creating if needed) a nonce database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening nonce database: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing nonce schema: %w", err)
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS used_nonces (
            authorizer TEXT NOT NULL,
            nonce      TEXT NOT NULL,
            cancelled  INTEGER NOT NULL,
            created_at INTEGER NOT NULL,
            PRIMARY KEY (authorizer, nonce)
        )
    `)
	return err
}

// Consume records (authorizer, nonce) in a single INSERT OR IGNORE, so
// concurrent consumers of the same pair resolve to exactly one writer.
func (s *Store) Consume(ctx context.Context, authorizer common.Address, nonce common.Hash, cancelled bool) (bool, error) {
	flag := 0
	if cancelled {
		flag = 1
	}
	res, err := s.db.ExecContext(ctx, `
        INSERT OR IGNORE INTO used_nonces (authorizer, nonce, cancelled, created_at)
        VALUES (?, ?, ?, ?)
    `, addrKey(authorizer), nonce.Hex(), flag, time.Now().Unix())
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 0, nil
}

func (s *Store) Used(ctx context.Context, authorizer common.Address, nonce common.Hash) (bool, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT 1 FROM used_nonces WHERE authorizer = ? AND nonce = ?
    `, addrKey(authorizer), nonce.Hex())
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Cancelled reports whether a consumed pair was burned by cancellation
// rather than by use. Returns false for unknown pairs.
func (s *Store) Cancelled(ctx context.Context, authorizer common.Address, nonce common.Hash) (bool, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT cancelled FROM used_nonces WHERE authorizer = ? AND nonce = ?
    `, addrKey(authorizer), nonce.Hex())
	var flag int
	if err := row.Scan(&flag); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return flag == 1, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Hex addresses are checksummed; lowercase them so lookups are
// case-insensitive across writers.
func addrKey(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

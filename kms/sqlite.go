package kms

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	. "github.com/alexdcox/cardano-connector"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

var log = Log()

type SqliteStore struct {
	db *sql.DB
	mu sync.Mutex
}

var _ Store = &SqliteStore{}

func NewSqliteStore(path string) (store *SqliteStore, err error) {
	log.Info().Msgf("opening kms sqlite db at: '%s'", path)

	sqldb, err := sql.Open("sqlite3", path)
	if err != nil {
		err = errors.Wrap(err, "failed to open database")
		return
	}

	if err = sqldb.Ping(); err != nil {
		_ = sqldb.Close()
		err = errors.Wrap(err, "failed to ping database")
		return
	}

	store = &SqliteStore{db: sqldb}
	if err = store.initTables(); err != nil {
		_ = sqldb.Close()
		err = errors.Wrap(err, "failed to init tables")
		return
	}

	return
}

func (s *SqliteStore) initTables() (err error) {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS pending_tx (
			id TEXT PRIMARY KEY,
			chain TEXT NOT NULL,
			serialized TEXT NOT NULL,
			signature_ids TEXT NOT NULL,
			tx_id TEXT NOT NULL DEFAULT '',
			created INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_tx_chain ON pending_tx(chain, tx_id)`,
	}

	for i, query := range queries {
		_, err = s.db.Exec(query)
		if err != nil {
			err = errors.Wrapf(err, "failed to execute query: %d", i)
			return
		}
	}

	return
}

func (s *SqliteStore) StoreTransaction(ctx context.Context, payload string, chain Chain, signatureIDs []string) (id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id = uuid.NewString()

	ids, err := json.Marshal(signatureIDs)
	if err != nil {
		return "", errors.WithStack(err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pending_tx (id, chain, serialized, signature_ids, created)
		VALUES (?, ?, ?, ?, ?)`,
		id,
		string(chain),
		payload,
		string(ids),
		time.Now().Unix())
	if err != nil {
		return "", errors.WithStack(err)
	}

	return
}

func (s *SqliteStore) CompleteTransaction(ctx context.Context, id string, txHash string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, "UPDATE pending_tx SET tx_id = ? WHERE id = ?", txHash, id)
	if err != nil {
		return errors.WithStack(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.WithStack(err)
	}

	if affected == 0 {
		return errors.Wrapf(ErrSignatureNotFound, "'%s'", id)
	}

	return
}

func (s *SqliteStore) Get(ctx context.Context, id string) (pending PendingTransaction, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, chain, serialized, signature_ids, tx_id, created
		FROM pending_tx
		WHERE id = ?`,
		id)

	pending, err = scanPending(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = errors.Wrapf(ErrSignatureNotFound, "'%s'", id)
	}

	return
}

func (s *SqliteStore) GetPending(ctx context.Context, chain Chain) (pending []PendingTransaction, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chain, serialized, signature_ids, tx_id, created
		FROM pending_tx
		WHERE chain = ? AND tx_id = ''
		ORDER BY created ASC, rowid ASC`,
		string(chain))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	pending = []PendingTransaction{}

	for rows.Next() {
		p, scanErr := scanPending(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		pending = append(pending, p)
	}

	err = errors.WithStack(rows.Err())
	return
}

func (s *SqliteStore) Delete(ctx context.Context, id string) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, "DELETE FROM pending_tx WHERE id = ?", id)
	if err != nil {
		return errors.WithStack(err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		return errors.Wrapf(ErrSignatureNotFound, "'%s'", id)
	}

	return
}

func (s *SqliteStore) Close() error {
	return errors.WithStack(s.db.Close())
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPending(row scanner) (p PendingTransaction, err error) {
	var chain, signatureIDs string
	var created int64

	err = row.Scan(&p.ID, &chain, &p.SerializedTransaction, &signatureIDs, &p.TxID, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, errors.WithStack(err)
	}

	p.Chain = Chain(chain)
	p.Created = time.Unix(created, 0).UTC()
	if err = json.Unmarshal([]byte(signatureIDs), &p.SignatureIDs); err != nil {
		return p, errors.Wrapf(err, "signature ids of %s", p.ID)
	}

	return
}

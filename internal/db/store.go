package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rajivgeraev/scentswap-api/internal/store"
)

// Коды PostgreSQL, при которых транзакцию нужно повторить
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

// Store – хранилище обменов поверх PostgreSQL.
// Транзакции открываются с уровнем SERIALIZABLE: конкурентные подтверждения
// одного обмена сериализуются самой базой, проигравшая транзакция повторяется.
type Store struct {
	pool  *pgxpool.Pool
	retry store.RetryConfig
}

// NewStore создаёт хранилище на готовом пуле
func NewStore(pool *pgxpool.Pool, retry store.RetryConfig) *Store {
	return &Store{pool: pool, retry: retry}
}

// RunInTx выполняет fn в сериализуемой транзакции с повтором при конфликте
func (s *Store) RunInTx(ctx context.Context, fn store.TxFunc) error {
	return store.Retry(ctx, s.retry, func() error {
		return classify(s.runOnce(ctx, fn))
	})
}

func (s *Store) runOnce(ctx context.Context, fn store.TxFunc) error {
	// Начинаем транзакцию
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}

	// Фиксируем транзакцию
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

// Close закрывает пул
func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}

// classify превращает ошибки сериализации в store.ErrConflict
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("%w: %v", store.ErrConflict, err)
		}
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// pgTx реализует store.Tx поверх pgx.Tx
type pgTx struct {
	tx pgx.Tx
}

func scanDoc(row pgx.Row, dst any) error {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("ошибка разбора документа: %w", err)
	}
	return nil
}

func collectDocs[T any](rows pgx.Rows) ([]*T, error) {
	defer rows.Close()

	var out []*T
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("ошибка разбора документа: %w", err)
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

var (
	_ store.Store = (*Store)(nil)
	_ store.Tx    = (*pgTx)(nil)
)

package repository

import (
	"context"
	"database/sql"

	"github.com/brightears/bmasia-music-brief/internal/domain"
	errs "github.com/brightears/bmasia-music-brief/pkg/errors"
)

// txUnitOfWork is a domain.UnitOfWork backed by one *sql.Tx, embedding a
// store bound to that transaction so every repository method participates in
// the same two-phase commit. The approval POST handler is the sole caller:
// per spec §9, on any failure before Commit the token must remain redeemable
// and no half-state should persist, which plain tx.Rollback() already gives
// us as long as callers defer Rollback() before ever returning.
type txUnitOfWork struct {
	store
	tx *sql.Tx
}

func (u *txUnitOfWork) Commit() error {
	if err := u.tx.Commit(); err != nil {
		return errs.NewDB("txUnitOfWork.Commit", "failed to commit transaction", err)
	}
	return nil
}

// Rollback is safe to call after a successful Commit: sql.Tx returns
// ErrTxDone, which callers ignore via the defer uow.Rollback() idiom.
func (u *txUnitOfWork) Rollback() error {
	err := u.tx.Rollback()
	if err != nil && err != sql.ErrTxDone {
		return errs.NewDB("txUnitOfWork.Rollback", "failed to roll back transaction", err)
	}
	return nil
}

var _ domain.UnitOfWork = (*txUnitOfWork)(nil)

// Begin starts a new transaction-scoped UnitOfWork.
func (db *DB) Begin(ctx context.Context) (domain.UnitOfWork, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, errs.NewDB("DB.Begin", "failed to begin transaction", err)
	}
	return &txUnitOfWork{
		store: store{q: tx, readTimeout: db.readTimeout, writeTimeout: db.writeTimeout},
		tx:    tx,
	}, nil
}

var _ domain.UnitOfWorkFactory = (*DB)(nil)

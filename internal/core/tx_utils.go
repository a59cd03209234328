package core

import (
	"context"

	"github.com/olyamironova/cryptodesk/internal/port"
)

// withTx runs fn inside one repository transaction. Any error, from fn or
// from Commit itself, leaves the transaction rolled back; no exit path keeps
// it open.
func withTx(ctx context.Context, repo port.Repository, fn func(port.Tx) error) (err error) {
	tx, err := repo.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	err = tx.Commit(ctx)
	return err
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// RunTx runs fn with queries bound to a single transaction. The transaction commits when fn
// returns nil and is rolled back otherwise.
func RunTx(ctx context.Context, dbtx *sql.DB, fn func(tx *Queries) error) error {
	sqltx, err := dbtx.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	err = fn(New(sqltx))
	if err != nil {
		rollbackErr := sqltx.Rollback()
		if rollbackErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rollbackErr))
		}
		return err
	}
	return sqltx.Commit()
}

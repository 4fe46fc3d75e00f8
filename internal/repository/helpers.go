package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// requireRow maps a zero-row UPDATE/DELETE to sql.ErrNoRows so services can
// translate it to a not-found error.
func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

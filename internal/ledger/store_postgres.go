package ledger

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// NewPostgresStore wraps a lib/pq handle. Several service instances may share
// the table; the unique sequence constraint arbitrates between them.
func NewPostgresStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, dialect: dialectPostgres, isConflict: isPostgresConflict}
}

func isPostgresConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	// unique_violation, serialization_failure
	return pqErr.Code == "23505" || pqErr.Code == "40001"
}

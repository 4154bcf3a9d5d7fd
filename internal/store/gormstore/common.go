// Package gormstore persists the credit ledger and plant records through
// GORM, against sqlite for development and tests and PostgreSQL in
// production.
package gormstore

import (
	"context"
	"database/sql"
	"errors"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/solarshare/solarshare/pkg/ledger"
)

const (
	pgUniqueViolationCode      = "23505"
	pgSerializationFailureCode = "40001"
	pgDeadlockDetectedCode     = "40P01"
	sqliteConstraintCode       = 19
	serializationRetryAttempts = 3
	postgresDialectName        = "postgres"

	defaultMetadataJSON = "{}"

	errorOperationStore    = "store"
	errorSubjectEntry      = "entry"
	errorSubjectBalance    = "balance"
	errorSubjectProject    = "project"
	errorSubjectAllocation = "allocation"
	errorSubjectReading    = "reading"
	errorCodeInsert        = "insert"
	errorCodeGet           = "get"
	errorCodeFind          = "find"
	errorCodeList          = "list"
	errorCodeSum           = "sum"
	errorCodeUpdate        = "update"
	errorCodeUpsert        = "upsert"
	errorCodeDuplicate     = "duplicate"
	errorCodeInvalid       = "invalid"
)

type sqlSum struct {
	Total int64
}

func wrapStoreError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgError *pgconn.PgError
	if errors.As(err, &pgError) {
		return pgError.Code == pgUniqueViolationCode
	}
	var sqliteError *gosqlite.Error
	if errors.As(err, &sqliteError) {
		return sqliteError.Code()&0xFF == sqliteConstraintCode
	}
	return false
}

// runInTx executes fn in a transaction. The balance and capacity guards
// re-read aggregates and then insert based on what they saw, so on postgres
// the transaction must be SERIALIZABLE: under the default READ COMMITTED two
// concurrent transactions both read the same committed sums and both insert,
// overdrawing the invariant. Serialization aborts are retried a bounded
// number of times. sqlite serializes writers on its own, and its driver
// rejects explicit isolation levels, so it runs with default options.
func runInTx(ctx context.Context, db *gorm.DB, fn func(transaction *gorm.DB) error) error {
	var options []*sql.TxOptions
	if db.Dialector.Name() == postgresDialectName {
		options = append(options, &sql.TxOptions{Isolation: sql.LevelSerializable})
	}
	var err error
	for attempt := 0; attempt <= serializationRetryAttempts; attempt++ {
		err = db.WithContext(ctx).Transaction(fn, options...)
		if !isSerializationFailure(err) {
			return err
		}
	}
	return err
}

func isSerializationFailure(err error) bool {
	var pgError *pgconn.PgError
	if !errors.As(err, &pgError) {
		return false
	}
	return pgError.Code == pgSerializationFailureCode || pgError.Code == pgDeadlockDetectedCode
}

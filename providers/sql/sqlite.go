package sql

import (
	"database/sql"
	"strings"

	"github.com/alecthomas/errors"
	"modernc.org/sqlite"
)

func init() {
	Register("sqlite", SQLiteDriver{})
}

type SQLiteDriver struct{}

var _ Driver = (*SQLiteDriver)(nil)

func (SQLiteDriver) Name() string { return "sqlite" }

func (SQLiteDriver) Open(dsn string) (*sql.DB, error) {
	return errors.WithStack2(sql.Open("sqlite", strings.TrimPrefix(dsn, "sqlite://")))
}

func (SQLiteDriver) TranslateError(err error) error {
	var sqliteError *sqlite.Error
	if errors.As(err, &sqliteError) && (sqliteError.Code() == 19 || sqliteError.Code() == 1555 || sqliteError.Code() == 1556) { // SQLITE_CONSTRAINT / SQLITE_CONSTRAINT_FOREIGNKEY / SQLITE_CONSTRAINT_PRIMARYKEY
		return errors.Errorf("%w: %w", ErrConstraint, err)
	}
	return err
}

package sql

import (
	"database/sql"
	"strings"

	"github.com/alecthomas/errors"
	"github.com/go-sql-driver/mysql"
)

func init() {
	Register("mysql", MySQLDriver{})
}

type MySQLDriver struct{}

var _ Driver = (*MySQLDriver)(nil)

func (MySQLDriver) Name() string { return "mysql" }

func (MySQLDriver) Open(dsn string) (*sql.DB, error) {
	dsn = strings.TrimPrefix(dsn, "mysql://")
	return errors.WithStack2(sql.Open("mysql", dsn))
}

func (MySQLDriver) TranslateError(err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1062, 1216, 1217, 1451, 1452: // ER_DUP_ENTRY and foreign key violations
			return errors.Errorf("%w: %w", ErrConstraint, err)
		}
	}
	return err
}

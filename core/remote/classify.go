package remote

import (
	"errors"
	"fmt"

	"leobook/core/syncerr"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers that indicate the remote table is missing or
// has drifted from the registry schema.
const (
	errNoSuchTable   = 1146
	errUnknownColumn = 1054
)

// classify maps a driver error onto the sync taxonomy: schema drift
// triggers EnsureSchema and possible suspension, everything else is a soft
// per-table failure retried next cycle.
func (c *SQL) classify(table string, err error) error {
	if err == nil {
		return nil
	}

	var myerr *mysql.MySQLError
	if errors.As(err, &myerr) {
		switch myerr.Number {
		case errNoSuchTable, errUnknownColumn:
			return fmt.Errorf("%w: table %s: %v", syncerr.ErrSchemaMismatch, table, err)
		}
	}

	return fmt.Errorf("%w: table %s: %v", syncerr.ErrRemoteUnavailable, table, err)
}

// Package postgres is the sqlx-backed result store. The same schema and
// queries run on postgres (lib/pq) and embedded sqlite (modernc).
package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	// sqlx does not know the modernc driver name.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Open connects to the result database and applies sqlite pragmas.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, eris.Errorf("store: unsupported driver %q", driver)
	}
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, eris.Wrapf(err, "store: connect %s", driver)
	}
	if driver == DriverSQLite {
		// One writer; ":memory:" databases are per connection.
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{
			"PRAGMA busy_timeout=5000",
			"PRAGMA foreign_keys=ON",
		} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, eris.Wrap(err, fmt.Sprintf("store: exec %s", pragma))
			}
		}
	}
	return db, nil
}

package db

import (
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
)

// OpenMigrator opens dataSourceName without migrating it and returns a
// migrator over the embedded migrations. Closing the migrator closes the
// connection.
func OpenMigrator(dataSourceName string) (*migrate.Migrate, error) {
	sqlDB, err := sql.Open(driverName, ensureSQLiteDSN(dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	m, err := newMigrator(sqlDB)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	return m, nil
}

package config

import (
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
)

// OpenDB opens the configured driver against DatabaseURL. "pgx" selects the
// jackc/pgx/v5 stdlib adapter (native Postgres protocol, better connection
// pooling under load); anything else falls back to lib/pq, the teacher's
// default driver.
func (c *Config) OpenDB() (*sql.DB, error) {
	driver := "postgres"
	if c.DBDriver == "pgx" {
		driver = "pgx"
	}
	return sql.Open(driver, c.DatabaseURL)
}

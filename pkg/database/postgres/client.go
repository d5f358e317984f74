package pg

import (
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	_ "github.com/newrelic/go-agent/v3/integrations/nrpgx"
)

// Config describes a postgres connection pool.
type Config struct {
	User               string
	Password           string
	Host               string
	Port               int
	DbName             string
	MaxOpenConnections int
	MaxIdleConnections int
}

// DSN returns the pgx connection string for the config.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.DbName,
	)
}

// NewWithUsernameAndPassword opens and pings a connection pool using
// username/password credentials. Queries are traced through the New Relic
// pgx driver.
func NewWithUsernameAndPassword(c *Config) (*sql.DB, error) {
	return Open(c.DSN(), c.MaxOpenConnections, c.MaxIdleConnections)
}

// Open opens and pings a connection pool for the pgx connection string dsn.
func Open(dsn string, maxOpen, maxIdle int) (*sql.DB, error) {
	db, err := sql.Open("nrpgx", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open db")
	}

	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping db")
	}

	return db, nil
}

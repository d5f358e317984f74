// Package test runs throwaway postgres containers for integration tests.
package test

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	pg "github.com/code-payments/square-program/pkg/database/postgres"
	"github.com/code-payments/square-program/pkg/retry"
	"github.com/code-payments/square-program/pkg/retry/backoff"
)

const (
	image        = "postgres"
	imageTag     = "13"
	containerTTL = 120 * time.Second

	readyAttempts = 50
	readyInterval = 500 * time.Millisecond
)

var defaultConfig = pg.Config{
	User:     "localtest",
	Password: "localpassword",
	DbName:   "testdb",
	Port:     5432,
}

// Container is a running postgres instance with an open connection pool.
type Container struct {
	DB  *sql.DB
	DSN string

	pool     *dockertest.Pool
	resource *dockertest.Resource
}

// Close closes the pool and removes the container.
func (c *Container) Close() {
	if c.DB != nil {
		_ = c.DB.Close()
	}
	_ = c.pool.Purge(c.resource)
}

// Exec runs each statement in order, stopping at the first failure.
func (c *Container) Exec(statements ...string) error {
	for _, stmt := range statements {
		if _, err := c.DB.Exec(stmt); err != nil {
			return errors.Wrapf(err, "failed to execute %q", stmt)
		}
	}
	return nil
}

// StartPostgres starts a postgres container and waits until it accepts
// connections. The container removes itself once stopped, and is killed
// after containerTTL regardless.
func StartPostgres(pool *dockertest.Pool) (*Container, error) {
	log := logrus.StandardLogger().WithField("type", "database/postgres/test")

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: image,
		Tag:        imageTag,
		Env: []string{
			"listen_addresses = '*'",
			"POSTGRES_USER=" + defaultConfig.User,
			"POSTGRES_PASSWORD=" + defaultConfig.Password,
			"POSTGRES_DB=" + defaultConfig.DbName,
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to start container")
	}

	c := &Container{pool: pool, resource: resource}

	// Expire never fails.
	_ = resource.Expire(uint(containerTTL.Seconds()))

	c.DSN = fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		defaultConfig.User,
		defaultConfig.Password,
		resource.GetHostPort(fmt.Sprintf("%d/tcp", defaultConfig.Port)),
		defaultConfig.DbName,
	)

	attempts, err := retry.Retry(
		func() error {
			db, err := pg.Open(c.DSN, 0, 0)
			if err != nil {
				return err
			}
			c.DB = db
			return nil
		},
		retry.Limit(readyAttempts),
		retry.Backoff(backoff.Constant(readyInterval), readyInterval),
	)
	if err != nil {
		c.Close()
		return nil, errors.Wrap(err, "postgres container never became available")
	}

	log.WithField("attempts", attempts).Debug("postgres container ready")
	return c, nil
}

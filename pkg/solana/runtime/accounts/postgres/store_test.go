//go:build integration

package postgres

import (
	"os"
	"testing"

	"github.com/ory/dockertest/v3"
	"github.com/sirupsen/logrus"

	postgrestest "github.com/code-payments/square-program/pkg/database/postgres/test"
	"github.com/code-payments/square-program/pkg/solana/runtime/accounts"
	"github.com/code-payments/square-program/pkg/solana/runtime/accounts/tests"

	_ "github.com/jackc/pgx/v4/stdlib"
)

const (
	// Used for testing ONLY, the table and migrations are external to this repository
	tableCreate = `
		CREATE TABLE square__core_account (
			id SERIAL NOT NULL PRIMARY KEY,

			address TEXT NOT NULL UNIQUE,
			owner TEXT NOT NULL,
			lamports BIGINT NOT NULL CHECK (lamports > 0),
			executable BOOL NOT NULL,
			data BYTEA NOT NULL,
			slot BIGINT NOT NULL
		);
	`

	// Used for testing ONLY, the table and migrations are external to this repository
	tableDestroy = `
		DROP TABLE square__core_account;
	`
)

var (
	testStore accounts.Store
	teardown  func()
)

func TestMain(m *testing.M) {
	log := logrus.StandardLogger()

	pool, err := dockertest.NewPool("")
	if err != nil {
		log.WithError(err).Error("Error creating docker pool")
		os.Exit(1)
	}

	container, err := postgrestest.StartPostgres(pool)
	if err != nil {
		log.WithError(err).Error("Error starting postgres image")
		os.Exit(1)
	}

	if err := container.Exec(tableCreate); err != nil {
		log.WithError(err).Error("Error creating test tables")
		container.Close()
		os.Exit(1)
	}

	testStore = New(container.DB)
	teardown = func() {
		if pc := recover(); pc != nil {
			container.Close()
			panic(pc)
		}

		if err := container.Exec(tableDestroy, tableCreate); err != nil {
			log.WithError(err).Error("Error resetting test tables")
			container.Close()
			os.Exit(1)
		}
	}

	code := m.Run()
	container.Close()
	os.Exit(code)
}

func TestAccountPostgresStore(t *testing.T) {
	tests.RunTests(t, testStore, teardown)
}

package integration

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/smsflow/smsflow/config"
	"github.com/smsflow/smsflow/pkg/migration"

	// for integration test, must not be imported in any main.go
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Tables lists every table, children before parents
var Tables = []string{
	"failed_retry",
	"webhook_event",
	"campaign_membership",
	"campaign",
	"activity",
	"conversation",
	"contact",
}

// TestCase holds the shared database of an integration test run
type TestCase struct {
	DB   *sqlx.DB
	Conf config.Config
}

var (
	setupOnce sync.Once
	shared    TestCase
)

// NewTestCase migrates a fresh schema on first use and returns the shared connection
func NewTestCase() *TestCase {
	setupOnce.Do(func() {
		rootDir := moduleRoot()

		conf := config.LoadTestConfig(rootDir)
		migration.MigrateUpForTesting(rootDir, conf.MySQL.DSN())

		shared = TestCase{
			DB:   conf.MySQL.MustConnect(),
			Conf: conf,
		}
	})

	tc := shared
	return &tc
}

// Truncate deletes all rows of the given tables, in order
func (tc *TestCase) Truncate(tables ...string) {
	for _, table := range tables {
		tc.DB.MustExec(fmt.Sprintf("DELETE FROM `%s`", table))
	}
}

// Reset empties every table
func (tc *TestCase) Reset() {
	tc.Truncate(Tables...)
}

func moduleRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		panic(err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			panic("integration: go.mod not found above working directory")
		}
		dir = parent
	}
}

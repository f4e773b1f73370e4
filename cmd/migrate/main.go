package main

import (
	"fmt"
	"os"

	"github.com/smsflow/smsflow/config"
	"github.com/smsflow/smsflow/pkg/migration"

	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	var dir string

	cmd := migration.MigrateCommand(func() string {
		return config.Load().MySQL.DSN()
	}, &dir)
	cmd.PersistentFlags().StringVar(&dir, "dir", "migrations", "directory holding the *.sql migrations")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

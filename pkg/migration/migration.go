package migration

import (
	"errors"
	"fmt"
	"path"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"
)

const migrationsDir = "migrations"

func open(dir string, dsn string) (*migrate.Migrate, error) {
	m, err := migrate.New("file://"+dir, "mysql://"+dsn)
	if err != nil {
		return nil, fmt.Errorf("open migrations in %s: %w", dir, err)
	}
	return m, nil
}

// run opens the migrations, applies fn and closes both source and database
func run(dir string, dsn string, fn func(m *migrate.Migrate) error) error {
	m, err := open(dir, dsn)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	err = fn(m)
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

// MigrateCommand returns the cobra command with up, down, force and version.
// dsn is resolved lazily so --help works without a config file.
func MigrateCommand(dsn func() string, dir *string) *cobra.Command {
	root := &cobra.Command{
		Use:          "migrate",
		Short:        "manage the smsflow database schema",
		SilenceUsage: true,
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(*dir, dsn(), func(m *migrate.Migrate) error {
				return m.Up()
			})
		},
	}

	down := &cobra.Command{
		Use:   "down [steps]",
		Short: "roll back migrations, one step by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) > 0 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return fmt.Errorf("invalid steps %q", args[0])
				}
				steps = n
			}
			return run(*dir, dsn(), func(m *migrate.Migrate) error {
				return m.Steps(-steps)
			})
		},
	}

	force := &cobra.Command{
		Use:   "force <version>",
		Short: "mark a version as applied and clear the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return run(*dir, dsn(), func(m *migrate.Migrate) error {
				return m.Force(version)
			})
		},
	}

	version := &cobra.Command{
		Use:   "version",
		Short: "print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(*dir, dsn(), func(m *migrate.Migrate) error {
				v, dirty, err := m.Version()
				if errors.Is(err, migrate.ErrNilVersion) {
					fmt.Fprintln(cmd.OutOrStdout(), "no migration applied")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d dirty=%v\n", v, dirty)
				return nil
			})
		},
	}

	root.AddCommand(up, down, force, version)
	return root
}

// MigrateUpForTesting drops every table then applies all migrations
func MigrateUpForTesting(rootDir string, dsn string) {
	dir := path.Join(rootDir, migrationsDir)

	err := run(dir, dsn, func(m *migrate.Migrate) error {
		return m.Drop()
	})
	if err != nil {
		panic(err)
	}

	err = run(dir, dsn, func(m *migrate.Migrate) error {
		return m.Up()
	})
	if err != nil {
		panic(err)
	}
}

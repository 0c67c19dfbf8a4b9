package cli

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"sort"

	"github.com/atriumhq/atrium/pkg/roles"
)

func newMigrateRolesCommand() *Command {
	cmd := &Command{
		Name:        "migrate-roles",
		Description: "Rename legacy system role values to the current names",
		Flags:       flag.NewFlagSet("migrate-roles", flag.ExitOnError),
	}

	postgresURL := cmd.Flags.String("postgres-url", defaultPostgresURL(), "PostgreSQL connection URL")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		db, err := openDB(*postgresURL)
		if err != nil {
			return err
		}
		defer db.Close()

		migrated, err := MigrateLegacyRoles(context.Background(), db)
		if err != nil {
			return err
		}
		fmt.Printf("Migrated %d account(s) to current role names\n", migrated)
		return nil
	}

	return cmd
}

// MigrateLegacyRoles rewrites stored legacy role names to their current
// values using the same renaming table as the live resolve path. All
// renames run in one transaction; the command is safe to rerun.
func MigrateLegacyRoles(ctx context.Context, db *sql.DB) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	table := roles.LegacyNames()
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)

	var total int64
	for _, legacy := range names {
		result, err := tx.ExecContext(ctx, `
			UPDATE accounts SET system_role = $1 WHERE system_role = $2`,
			string(table[legacy]), legacy)
		if err != nil {
			return 0, fmt.Errorf("failed to migrate role %q: %w", legacy, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to check migration result: %w", err)
		}
		total += affected
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return total, nil
}

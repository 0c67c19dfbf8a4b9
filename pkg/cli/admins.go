package cli

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/atriumhq/atrium/pkg/roles"
)

var (
	// ErrAccountNotFound means no account matched the given email
	ErrAccountNotFound = errors.New("no account with that email")

	// ErrNotAdmin means the target account is not a system admin
	ErrNotAdmin = errors.New("account is not a system admin")

	// ErrLastAdmin refuses to demote the only remaining system admin. The
	// system must never lose its last top-tier account.
	ErrLastAdmin = errors.New("refusing to demote the last system admin")
)

func newPromoteCommand() *Command {
	cmd := &Command{
		Name:        "promote",
		Description: "Promote an account to system admin by email",
		Flags:       flag.NewFlagSet("promote", flag.ExitOnError),
	}

	email := cmd.Flags.String("email", "", "Email of the account to promote")
	postgresURL := cmd.Flags.String("postgres-url", defaultPostgresURL(), "PostgreSQL connection URL")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *email == "" {
			return fmt.Errorf("--email is required")
		}

		db, err := openDB(*postgresURL)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := PromoteAccount(context.Background(), db, *email); err != nil {
			return err
		}
		fmt.Printf("Promoted %s to %s\n", *email, roles.RoleSystemAdmin)
		return nil
	}

	return cmd
}

func newDemoteCommand() *Command {
	cmd := &Command{
		Name:        "demote",
		Description: "Demote a system admin to a regular user by email",
		Flags:       flag.NewFlagSet("demote", flag.ExitOnError),
	}

	email := cmd.Flags.String("email", "", "Email of the account to demote")
	confirm := cmd.Flags.Bool("confirm", false, "Confirm the demotion")
	postgresURL := cmd.Flags.String("postgres-url", defaultPostgresURL(), "PostgreSQL connection URL")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if *email == "" {
			return fmt.Errorf("--email is required")
		}
		if !*confirm {
			return fmt.Errorf("demoting a system admin requires --confirm")
		}

		db, err := openDB(*postgresURL)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := DemoteAccount(context.Background(), db, *email); err != nil {
			return err
		}
		fmt.Printf("Demoted %s to %s\n", *email, roles.RoleUser)
		return nil
	}

	return cmd
}

func newListAdminsCommand() *Command {
	cmd := &Command{
		Name:        "list-admins",
		Description: "List all system admin accounts",
		Flags:       flag.NewFlagSet("list-admins", flag.ExitOnError),
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

		return ListAdmins(context.Background(), db, os.Stdout)
	}

	return cmd
}

// PromoteAccount sets an account's system role to system_admin
func PromoteAccount(ctx context.Context, db *sql.DB, email string) error {
	result, err := db.ExecContext(ctx, `
		UPDATE accounts SET system_role = $1 WHERE LOWER(email) = LOWER($2)`,
		string(roles.RoleSystemAdmin), email)
	if err != nil {
		return fmt.Errorf("failed to promote account: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, email)
	}
	return nil
}

// DemoteAccount sets a system admin's role back to user. It refuses when
// the target is the only remaining system admin; the count check and the
// update run in one transaction so two concurrent demotions cannot both
// pass the check.
func DemoteAccount(ctx context.Context, db *sql.DB, email string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var accountID int64
	var role sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT id, system_role FROM accounts WHERE LOWER(email) = LOWER($1) FOR UPDATE`,
		email).Scan(&accountID, &role)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, email)
	} else if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}

	if !role.Valid || role.String != string(roles.RoleSystemAdmin) {
		return fmt.Errorf("%w: %s", ErrNotAdmin, email)
	}

	var adminCount int64
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM accounts WHERE system_role = $1`,
		string(roles.RoleSystemAdmin)).Scan(&adminCount)
	if err != nil {
		return fmt.Errorf("failed to count system admins: %w", err)
	}
	if adminCount <= 1 {
		return ErrLastAdmin
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE accounts SET system_role = $1 WHERE id = $2`,
		string(roles.RoleUser), accountID)
	if err != nil {
		return fmt.Errorf("failed to demote account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListAdmins writes a table of system admin accounts to w
func ListAdmins(ctx context.Context, db *sql.DB, w io.Writer) error {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, email, status FROM accounts
		WHERE system_role = $1
		ORDER BY created_at ASC`,
		string(roles.RoleSystemAdmin))
	if err != nil {
		return fmt.Errorf("failed to list admins: %w", err)
	}
	defer rows.Close()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tSTATUS")
	for rows.Next() {
		var id int64
		var name, email, status string
		if err := rows.Scan(&id, &name, &email, &status); err != nil {
			return fmt.Errorf("failed to scan admin row: %w", err)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", id, name, email, status)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate admin rows: %w", err)
	}
	return tw.Flush()
}

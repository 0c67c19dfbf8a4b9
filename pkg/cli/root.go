// Package cli implements the atrium-admin command line tool: out-of-band
// administrative operations that are deliberately unreachable through the
// HTTP API, such as demoting a system administrator.
package cli

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "github.com/lib/pq"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// NewRootCommand creates the root command
func NewRootCommand() *Command {
	root := &Command{
		Name:        "atrium-admin",
		Description: "Atrium - administrative maintenance CLI",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("atrium-admin", flag.ExitOnError),
	}

	root.Subcommands["promote"] = newPromoteCommand()
	root.Subcommands["demote"] = newDemoteCommand()
	root.Subcommands["list-admins"] = newListAdminsCommand()
	root.Subcommands["migrate-roles"] = newMigrateRolesCommand()

	return root
}

// Execute runs the command
func (c *Command) Execute() error {
	args := os.Args[1:]
	if len(args) == 0 {
		return c.usage()
	}

	if args[0] == "-h" || args[0] == "--help" {
		return c.usage()
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage() error {
	fmt.Printf("Usage: %s <command> [args]\n\n", c.Name)
	fmt.Printf("Commands:\n")
	for name, cmd := range c.Subcommands {
		fmt.Printf("  %-15s %s\n", name, cmd.Description)
	}
	return nil
}

// defaultPostgresURL reads the connection string from the environment so
// commands work without repeating --postgres-url.
func defaultPostgresURL() string {
	return os.Getenv("ATRIUM_POSTGRES_URL")
}

func openDB(url string) (*sql.DB, error) {
	if url == "" {
		return nil, fmt.Errorf("postgres URL required (set ATRIUM_POSTGRES_URL or pass --postgres-url)")
	}
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

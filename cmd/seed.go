package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsdesk/opsdesk/internal/config"
	"github.com/opsdesk/opsdesk/internal/database"
	"github.com/opsdesk/opsdesk/internal/seed"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create initial accounts and inventory",
	Long: `Seeds the database with accounts (and optionally inventory) from a
YAML file, or with the built-in defaults when no file is given:

  admin / admin   (role: admin)
  it / it         (role: it)
  user / user     (role: user)

Change the default passwords after first login. Seeding is idempotent:
existing usernames are updated in place.

Seed file format:

  users:
    - username: alice
      email: alice@example.com
      role: it
      password: change-me
  inventory:
    - name: "Laptop 042"
      type: laptop
      status: working`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "",
		"YAML seed file (default: built-in accounts)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	var doc *seed.File
	if seedFile != "" {
		doc, err = seed.Load(seedFile)
		if err != nil {
			return err
		}
	} else {
		doc = seed.Defaults()
		fmt.Println("No seed file given; creating default accounts (admin/it/user).")
	}

	if err := seed.Apply(ctx, db, doc); err != nil {
		return err
	}

	fmt.Printf("Seeded %d user(s) and %d inventory item(s).\n", len(doc.Users), len(doc.Inventory))
	return nil
}

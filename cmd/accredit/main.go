package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/regworks/accredit-sdk/pkg/configuration"
	"github.com/regworks/accredit-sdk/pkg/schema"
)

func main() {
	root := &cobra.Command{
		Use:          "accredit",
		Short:        "Warehouse accreditation backend tooling",
		SilenceUsage: true,
	}
	root.AddCommand(migrateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := schema.Open(configuration.Use().Database)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			n, err := schema.Up(db)
			if err != nil {
				return err
			}
			fmt.Printf("applied %d migration(s)\n", n)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := schema.Open(configuration.Use().Database)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			n, err := schema.Down(db)
			if err != nil {
				return err
			}
			fmt.Printf("rolled back %d migration(s)\n", n)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := schema.Open(configuration.Use().Database)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			records, err := schema.Records(db)
			if err != nil {
				return err
			}
			for _, r := range records {
				fmt.Printf("%s\t%s\n", r.Id, r.AppliedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	})

	return cmd
}

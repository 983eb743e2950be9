package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/equiplens/internal/apikey"
	"github.com/kiranshivaraju/equiplens/internal/store"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys",
	}
	cmd.AddCommand(newKeysCreateCmd())
	return cmd
}

func newKeysCreateCmd() *cobra.Command {
	var (
		name        string
		scopes      []string
		databaseURL string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for the default owner and print it once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("--name is required")
			}
			db, err := databaseConfig(databaseURL)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := store.Connect(ctx, db)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer pool.Close()

			return createKey(ctx, store.NewPostgresStore(pool), cmd.OutOrStdout(), name, scopes)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key name, unique per owner")
	cmd.Flags().StringSliceVar(&scopes, "scopes", []string{"read", "write"}, "comma-separated scopes: read,write,admin")
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL URL (default $DATABASE_URL)")
	return cmd
}

// createKey mints a key for the default owner and prints the raw value.
func createKey(ctx context.Context, st store.Store, out io.Writer, name string, scopes []string) error {
	for _, s := range scopes {
		switch s {
		case "read", "write", "admin":
		default:
			return fmt.Errorf("unsupported scope %q (use read|write|admin)", s)
		}
	}

	owner, err := st.GetDefaultOwner(ctx)
	if err != nil {
		return fmt.Errorf("load default owner: %w", err)
	}
	raw, key, err := apikey.Generate(owner.ID, strings.TrimSpace(name), scopes, 0)
	if err != nil {
		return err
	}
	if err := st.CreateAPIKey(ctx, key); err != nil {
		return fmt.Errorf("create key: %w", err)
	}

	fmt.Fprintf(out, "✓ Created key %q (%s) with scopes %s\n", key.Name, key.ID, strings.Join(key.Scopes, ","))
	fmt.Fprintln(out, raw)
	fmt.Fprintln(out, "Store this key now; it cannot be shown again.")
	return nil
}

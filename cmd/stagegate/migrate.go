package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/stagegate/internal/store/pg"
	migrations "github.com/dropDatabas3/stagegate/migrations/postgres"
)

func newMigrateCmd(o *rootOpts) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:       "migrate up|down [steps]",
		Short:     "Aplica o revierte las migraciones de PostgreSQL",
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := pg.Direction(args[0])
			if dir != pg.Up && dir != pg.Down {
				return fmt.Errorf("dirección inválida %q (up|down)", args[0])
			}
			steps := 0
			if len(args) == 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil || n < 0 {
					return fmt.Errorf("steps inválido: %q", args[1])
				}
				steps = n
			}

			if dryRun {
				files, err := pg.ListMigrations(migrations.FS, migrations.Dir, dir, steps)
				if err != nil {
					return err
				}
				for _, f := range files {
					fmt.Fprintln(cmd.OutOrStdout(), f)
				}
				return nil
			}

			cfg, err := o.load()
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != "postgres" {
				return fmt.Errorf("storage.driver=%s: las migraciones sólo aplican a postgres", cfg.Storage.Driver)
			}
			st, err := pg.New(cmd.Context(), cfg.Storage.DSN, cfg.Storage.MaxConns)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := st.Migrate(cmd.Context(), migrations.FS, migrations.Dir, dir, steps)
			if err != nil {
				return fmt.Errorf("migrate %s: %d aplicadas antes del error: %w", dir, n, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d migración(es) %s aplicadas\n", n, dir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "sólo listar los archivos que se aplicarían")
	return cmd
}

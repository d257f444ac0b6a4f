// Command stagegate sirve la API de autenticación por etapas y expone
// utilidades operativas (migraciones, claves, inspección de tokens).
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/stagegate/internal/config"
	"github.com/dropDatabas3/stagegate/internal/observability/logger"
)

// version se inyecta con -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOpts struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	o := &rootOpts{configPath: os.Getenv("STAGEGATE_CONFIG")}

	root := &cobra.Command{
		Use:           "stagegate",
		Short:         "API de signup, login y recovery con tokens efímeros",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env es opcional; el entorno real siempre gana.
			if o.envFile != "" {
				_ = godotenv.Load(o.envFile)
			}
		},
	}
	root.PersistentFlags().StringVar(&o.configPath, "config", o.configPath, "ruta al YAML de config (env STAGEGATE_CONFIG)")
	root.PersistentFlags().StringVar(&o.envFile, "env-file", ".env", "archivo .env a cargar antes de leer config")

	root.AddCommand(
		newServeCmd(o),
		newMigrateCmd(o),
		newKeygenCmd(),
		newTokenCmd(o),
	)
	return root
}

// load lee y valida la config e inicializa el logger con ella.
func (o *rootOpts) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: cfg.App.Name,
		Version:     version,
	})
	return cfg, nil
}

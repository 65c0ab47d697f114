package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	sec "github.com/dropDatabas3/fedbroker/internal/security/secretbox"
)

var (
	cfgPath string
	envFile string
)

func main() {
	root := &cobra.Command{
		Use:           "fedbroker",
		Short:         "OAuth2 federation broker (authorization-code client + token exchange)",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "ruta del archivo de configuración")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "archivo .env a cargar (opcional)")

	root.AddCommand(serveCmd(), providersCmd(), secretCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadEnv() {
	// .env opcional; el entorno del sistema siempre gana
	_ = godotenv.Load(envFile)
}

func secretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Herramientas de secretos",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "encrypt <value>",
		Short: "Cifra un secreto con la master key (SECRETBOX_MASTER_KEY)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			loadEnv()
			enc, err := sec.Encrypt(args[0])
			if err != nil {
				return err
			}
			fmt.Println(enc)
			return nil
		},
	})
	return cmd
}

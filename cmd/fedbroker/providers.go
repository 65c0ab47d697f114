package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/fedbroker/internal/config"
)

func providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "Lista los identity providers configurados",
		RunE: func(*cobra.Command, []string) error {
			loadEnv()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "REALM\tALIAS\tAUTH METHOD\tSTORE TOKEN\tEXTERNAL EXCHANGE")
			for _, p := range cfg.Providers {
				method := "client_secret_post"
				switch {
				case p.JWTAuthentication && p.ClientAuthMethod != "":
					method = p.ClientAuthMethod
				case p.JWTAuthentication:
					method = "jwt"
				case p.BasicAuthentication:
					method = "client_secret_basic"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%v\n",
					p.Realm, p.Alias, method, p.StoreToken, p.ExternalExchangeSupported)
			}
			return w.Flush()
		},
	}
}

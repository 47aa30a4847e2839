package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aussiebroadwan/gabinete/pkg/gabinetesdk"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "gabinetectl",
	Short: "Administer a gabinete tenancy service",
	Long: `gabinetectl talks to the tenancy service API with an identity token.

Every flag can also be set through the environment with the GABINETECTL_
prefix, e.g. GABINETECTL_URL and GABINETECTL_TOKEN.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	viper.SetEnvPrefix("GABINETECTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().String("url", "http://localhost:8080", "tenancy service base URL")
	rootCmd.PersistentFlags().String("token", "", "identity token used as the session")

	_ = viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))

	rootCmd.AddCommand(tenantsCmd, invitesCmd, devCmd)
}

// session builds an authenticated SDK session from --url and --token.
func session() (*gabinetesdk.Session, error) {
	token := viper.GetString("token")
	if token == "" {
		return nil, errors.New("no session: pass --token or set GABINETECTL_TOKEN")
	}
	return gabinetesdk.NewClient(viper.GetString("url")).NewSession(token), nil
}

// printJSON writes v as indented JSON to stdout.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

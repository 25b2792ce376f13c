package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	Server string
	Token  string
	Output string
}

func main() {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "zonectl",
		Short: "Inspect and control zone health checks",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return flags.complete()
		},
	}

	cmd.PersistentFlags().StringVar(&flags.Server, "server", "", "zone-health API location (env ZONEHEALTH_API_URL)")
	cmd.PersistentFlags().StringVar(&flags.Token, "token", "", "bearer token (env ZONEHEALTH_API_TOKEN)")
	cmd.PersistentFlags().StringVarP(&flags.Output, "output", "o", "table", "Output format (table|json)")

	addStatusCommand(cmd, flags)
	addListCommand(cmd, flags)
	addGetCommand(cmd, flags)
	addRunCommand(cmd, flags)
	addToggleCommands(cmd, flags)
	addIntervalCommand(cmd, flags)
	addDeploymentCommand(cmd, flags)

	if err := cmd.Execute(); err != nil {
		if _, writeErr := os.Stderr.WriteString(err.Error() + "\n"); writeErr != nil {
			os.Exit(1)
		}
		os.Exit(1)
	}
}

func (f *globalFlags) complete() error {
	v := viper.New()
	v.SetEnvPrefix("ZONEHEALTH")
	v.SetDefault("api_url", "http://localhost:8080")
	_ = v.BindEnv("api_url")
	_ = v.BindEnv("api_token")

	if f.Server == "" {
		f.Server = v.GetString("api_url")
	}
	if f.Token == "" {
		f.Token = v.GetString("api_token")
	}
	return nil
}

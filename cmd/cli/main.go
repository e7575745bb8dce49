package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/agrifed/agrifed/cli"
	"github.com/agrifed/agrifed/pkg/sdk"
)

const defCoordinatorURL = "http://localhost:7070"

func main() {
	var coordinatorURL string

	rootCmd := &cobra.Command{
		Use:   "agrifed-cli",
		Short: "AgriFed CLI",
		Long:  `AgriFed CLI is a command line interface for interacting with the federated learning coordinator.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			s := sdk.NewSDK(sdk.Config{
				CoordinatorURL: coordinatorURL,
			})
			cli.SetSDK(s)
		},
	}

	rootCmd.PersistentFlags().StringVarP(
		&coordinatorURL,
		"coordinator-url",
		"c",
		defCoordinatorURL,
		"Coordinator HTTP API URL",
	)

	rootCmd.AddCommand(cli.NewClientsCmd())
	rootCmd.AddCommand(cli.NewRoundsCmd())
	rootCmd.AddCommand(cli.NewModelCmd())
	rootCmd.AddCommand(cli.NewStatusCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

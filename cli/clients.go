package cli

import (
	"strconv"

	"github.com/0x6flab/namegenerator"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agrifed/agrifed/pkg/sdk"
)

var (
	defOffset uint64 = 0
	defLimit  uint64 = 10

	namegen = namegenerator.NewGenerator()
)

var asdk sdk.SDK

// SetSDK sets the coordinator SDK instance shared by all commands.
func SetSDK(s sdk.SDK) {
	asdk = s
}

func NewClientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clients [register|view|list|provision]",
		Short: "Clients manager",
		Long:  `Register, view and list federated training clients.`,
	}

	registerCmd := &cobra.Command{
		Use:   "register <client_id> <dataset_size>",
		Short: "Register client",
		Long:  `Register a training client with its local dataset size.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 2 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			size, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			c, err := asdk.Register(sdk.Registration{
				ClientID:    args[0],
				Name:        namegen.Generate(),
				DatasetSize: size,
			})
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, c)
		},
	}

	viewCmd := &cobra.Command{
		Use:   "view <client_id>",
		Short: "View client",
		Long:  `View a registered client.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			c, err := asdk.GetClient(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, c)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List clients",
		Long:  `List registered clients.`,
		Run: func(cmd *cobra.Command, args []string) {
			page, err := asdk.ListClients(defOffset, defLimit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	provisionCmd := &cobra.Command{
		Use:   "provision <count> <dataset_size>",
		Short: "Provision clients",
		Long:  `Register a batch of named demo clients in one go.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 2 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			count, err := strconv.Atoi(args[0])
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			size, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			for range count {
				c, err := asdk.Register(sdk.Registration{
					ClientID:    uuid.NewString(),
					Name:        namegen.Generate(),
					DatasetSize: size,
				})
				if err != nil {
					logErrorCmd(*cmd, err)

					return
				}
				logJSONCmd(*cmd, c)
			}
			logSuccessCmd(*cmd, "Successfully provisioned clients")
		},
	}

	cmd.AddCommand(registerCmd)
	cmd.AddCommand(viewCmd)
	cmd.AddCommand(listCmd)
	cmd.AddCommand(provisionCmd)

	return cmd
}

package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

func NewModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model [view|version]",
		Short: "Global model",
		Long:  `View the current global model or one of its historical versions.`,
	}

	viewCmd := &cobra.Command{
		Use:   "view",
		Short: "View current model",
		Long:  `View the current published global model.`,
		Run: func(cmd *cobra.Command, args []string) {
			model, err := asdk.GlobalModel()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, model)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version <version>",
		Short: "View model version",
		Long:  `View one historical global model version.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			v, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			model, err := asdk.ModelVersion(v)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, model)
		},
	}

	cmd.AddCommand(viewCmd)
	cmd.AddCommand(versionCmd)

	return cmd
}

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Coordinator status",
		Long:  `View the coordinator's client, round and model counters.`,
		Run: func(cmd *cobra.Command, args []string) {
			summary, err := asdk.Status()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, summary)
		},
	}
}

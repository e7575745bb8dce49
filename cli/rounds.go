package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

func NewRoundsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rounds [open|view|list]",
		Short: "Rounds manager",
		Long:  `Open, view and list training rounds.`,
	}

	openCmd := &cobra.Command{
		Use:   "open",
		Short: "Open round",
		Long:  `Open a training round now instead of waiting for the scheduler.`,
		Run: func(cmd *cobra.Command, args []string) {
			r, err := asdk.OpenRound()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, r)
		},
	}

	viewCmd := &cobra.Command{
		Use:   "view <round_id>",
		Short: "View round",
		Long:  `View a training round.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			r, err := asdk.GetRound(id)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, r)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List rounds",
		Long:  `List training rounds.`,
		Run: func(cmd *cobra.Command, args []string) {
			page, err := asdk.ListRounds(defOffset, defLimit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	cmd.AddCommand(openCmd)
	cmd.AddCommand(viewCmd)
	cmd.AddCommand(listCmd)

	return cmd
}

package cancelcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"stagewatch/cmd/stagewatch/cmdutil"
	"stagewatch/cmd/stagewatch/ui"
)

// Cmd returns the "stagewatch cancel" command. The cancellation goes to
// the platform; whichever supervisor follows the rollout observes it on
// its next poll and records the terminal state.
func Cmd(configFlag *string) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "cancel <rollout-id>",
		Short: "Cancel a rollout on the platform",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cmdutil.Build(*configFlag)
			if err != nil {
				return err
			}
			s, err := app.Supervisor("")
			if err != nil {
				return err
			}

			if reason == "" && ui.IsInteractive() {
				reason, err = ui.Prompt("Cancellation reason", "operator decision", "use --reason")
				if err != nil {
					return err
				}
			}
			if reason == "" {
				reason = "cancelled by operator"
			}

			if err := s.Cancel(cmd.Context(), args[0], reason); err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("cancellation requested for rollout %s", args[0]))
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded with the cancellation")
	return cmd
}

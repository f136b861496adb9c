package statuscmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"stagewatch/cmd/stagewatch/cmdutil"
	"stagewatch/internal/state"
)

// Cmd returns the "stagewatch status" command. It reads the persisted
// state document only and never contacts the platform, so it works
// while another instance holds the rollout's lock.
func Cmd(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status <rollout-id>",
		Short: "Show the persisted state of a rollout",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			app, err := cmdutil.Build(*configFlag)
			if err != nil {
				return err
			}

			st, err := app.Store.Read(args[0])
			if errors.Is(err, state.ErrNotFound) {
				return fmt.Errorf("no state for rollout %s under %s (completed rollouts are archived)", args[0], app.Store.Dir)
			}
			if err != nil {
				return err
			}

			cmdutil.PrintState(st)
			return nil
		},
	}
}

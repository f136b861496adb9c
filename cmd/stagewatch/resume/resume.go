package resumecmd

import (
	"github.com/spf13/cobra"

	"stagewatch/cmd/stagewatch/cmdutil"
)

// Cmd returns the "stagewatch resume" command.
func Cmd(configFlag *string) *cobra.Command {
	var onFailure string

	cmd := &cobra.Command{
		Use:   "resume <rollout-id>",
		Short: "Resume supervising a known rollout",
		Long: `Resume picks up supervision of a rollout from its persisted state.
The rollout is never re-triggered and already-sent notifications are
never repeated. An id without local state starts fresh monitoring of an
externally triggered rollout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cmdutil.Build(*configFlag)
			if err != nil {
				return err
			}
			s, err := app.Supervisor(onFailure)
			if err != nil {
				return err
			}

			st, err := s.Resume(cmd.Context(), args[0])
			return cmdutil.Report(st, err)
		},
	}

	cmd.Flags().StringVar(&onFailure, "on-failure", "", "Reaction to failed stage validation: halt, cancel, or continue")
	return cmd
}

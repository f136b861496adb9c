package approvecmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"stagewatch/cmd/stagewatch/cmdutil"
	"stagewatch/cmd/stagewatch/ui"
	"stagewatch/internal/retry"
)

// Cmd returns the "stagewatch approve" command: out-of-band resolution
// of an approval checkpoint, for operators not attached to the
// supervising terminal.
func Cmd(configFlag *string) *cobra.Command {
	var reject bool

	cmd := &cobra.Command{
		Use:   "approve <checkpoint-id>",
		Short: "Approve or reject an open approval checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := cmdutil.Build(*configFlag)
			if err != nil {
				return err
			}
			if err := app.RequirePlatform(); err != nil {
				return err
			}

			checkpointID := args[0]
			err = retry.Do(cmd.Context(), retry.Policy{}, func(ctx context.Context) error {
				return app.Platform.ResolveApproval(ctx, checkpointID, !reject)
			})
			if err != nil {
				return fmt.Errorf("resolve checkpoint %s: %w", checkpointID, err)
			}

			if reject {
				fmt.Println(ui.WarnMsg("checkpoint %s rejected", checkpointID))
			} else {
				fmt.Println(ui.SuccessMsg("checkpoint %s approved", checkpointID))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&reject, "reject", false, "Reject the checkpoint instead of approving it")
	return cmd
}

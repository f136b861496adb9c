package followcmd

import (
	"github.com/spf13/cobra"

	"stagewatch/cmd/stagewatch/cmdutil"
	"stagewatch/internal/platform"
)

// Cmd returns the "stagewatch follow" command. configFlag points at the
// root persistent flag value.
func Cmd(configFlag *string) *cobra.Command {
	var (
		serviceGroup    string
		environment     string
		artifactVersion string
		stageMapVersion string
		branch          string
		onFailure       string
	)

	cmd := &cobra.Command{
		Use:   "follow",
		Short: "Trigger a rollout and supervise it to completion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := cmdutil.Build(*configFlag)
			if err != nil {
				return err
			}
			s, err := app.Supervisor(onFailure)
			if err != nil {
				return err
			}

			st, err := s.Follow(cmd.Context(), platform.RolloutSpec{
				ServiceGroupID:  serviceGroup,
				Environment:     environment,
				ArtifactVersion: artifactVersion,
				StageMapVersion: stageMapVersion,
				BranchName:      branch,
			})
			return cmdutil.Report(st, err)
		},
	}

	cmd.Flags().StringVar(&serviceGroup, "service-group", "", "Service group to roll out")
	cmd.Flags().StringVar(&environment, "environment", "", "Target environment")
	cmd.Flags().StringVar(&artifactVersion, "artifact-version", "", "Artifact version to deploy")
	cmd.Flags().StringVar(&stageMapVersion, "stage-map-version", "", "Stage map version")
	cmd.Flags().StringVar(&branch, "branch", "", "Source branch name")
	cmd.Flags().StringVar(&onFailure, "on-failure", "", "Reaction to failed stage validation: halt, cancel, or continue")
	_ = cmd.MarkFlagRequired("service-group")
	_ = cmd.MarkFlagRequired("environment")

	return cmd
}

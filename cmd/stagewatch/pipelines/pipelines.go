package pipelinescmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"stagewatch/cmd/stagewatch/cmdutil"
	"stagewatch/cmd/stagewatch/ui"
)

// Cmd returns the "stagewatch pipelines" command. It lists the pipelines
// the configured project exposes and cross-checks the configured
// pre/post-stage hook ids against them.
func Cmd(configFlag *string) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "pipelines",
		Short: "List the project's pipelines available for stage hooks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := cmdutil.Build(*configFlag)
			if err != nil {
				return err
			}
			client, err := app.PipelineClient()
			if err != nil {
				return err
			}
			if project == "" {
				project = app.Config.Pipeline.Project
			}

			pipelines, err := client.List(cmd.Context(), project)
			if err != nil {
				return err
			}
			if len(pipelines) == 0 {
				fmt.Println(ui.Muted("no pipelines for project " + project))
				return nil
			}

			known := map[string]bool{}
			for _, p := range pipelines {
				known[p.ID] = true
				line := "  " + ui.Bold(p.ID) + "  " + p.Name
				switch p.ID {
				case app.Config.Pipeline.PreStageID:
					line += "  " + ui.Accent("pre-stage hook")
				case app.Config.Pipeline.PostStageID:
					line += "  " + ui.Accent("post-stage hook")
				}
				fmt.Println(line)
			}

			for _, hook := range []struct{ key, id string }{
				{"pre_stage_id", app.Config.Pipeline.PreStageID},
				{"post_stage_id", app.Config.Pipeline.PostStageID},
			} {
				if hook.id != "" && !known[hook.id] {
					fmt.Println(ui.WarnMsg("configured %s %q is not among the project's pipelines", hook.key, hook.id))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "Project to list (default pipeline.project from config)")
	return cmd
}

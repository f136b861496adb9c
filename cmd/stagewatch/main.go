package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	approvecmd "stagewatch/cmd/stagewatch/approve"
	cancelcmd "stagewatch/cmd/stagewatch/cancel"
	followcmd "stagewatch/cmd/stagewatch/follow"
	pipelinescmd "stagewatch/cmd/stagewatch/pipelines"
	resumecmd "stagewatch/cmd/stagewatch/resume"
	statuscmd "stagewatch/cmd/stagewatch/status"
	stresscmd "stagewatch/cmd/stagewatch/stress"
	"stagewatch/cmd/stagewatch/ui"
	"stagewatch/internal/buildinfo"
	"stagewatch/internal/logging"
)

func main() {
	var (
		debug         bool
		noInteraction bool
		configPath    string
	)
	if err := logging.Configure(logging.LevelWarn); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "stagewatch",
		Short:         "Follow and supervise multi-stage rollouts",
		Version:       buildinfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelWarn
			if debug {
				level = logging.LevelDebug
			}
			if err := logging.Configure(level); err != nil {
				return err
			}
			ui.ConfigureInteraction(noInteraction)
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&noInteraction, "no-interaction", false, "Never prompt; fail or follow configured policies instead")
	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default $XDG_CONFIG_HOME/stagewatch/config.yaml)")

	root.AddCommand(followcmd.Cmd(&configPath))
	root.AddCommand(resumecmd.Cmd(&configPath))
	root.AddCommand(statuscmd.Cmd(&configPath))
	root.AddCommand(cancelcmd.Cmd(&configPath))
	root.AddCommand(approvecmd.Cmd(&configPath))
	root.AddCommand(stresscmd.Cmd(&configPath))
	root.AddCommand(pipelinescmd.Cmd(&configPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebben/riool/settings"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "riool",
		Short:         "Sewer inspection surveys: upload, lost capacity, side profiles and map layers",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := settings.InitializeConfig(); err != nil {
				log.Errorf("Failed to load configuration: %v", err)
				return err
			}
			return nil
		},
	}

	root.AddCommand(
		newServeCommand(),
		newCreateCommand(),
		newLoadCommand(),
		newCheckCommand(),
		newExportCommand(),
		newReportCommand(),
	)
	return root
}

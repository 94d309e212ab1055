package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/virtcam/virtcam/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			info := version.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "virtcam %s (%s, built %s, %s)\n",
				info.Version, info.GitCommit, info.BuildDate, info.Platform)
		},
	}
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"olmcore"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the library version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			major, minor, patch := olmcore.GetLibraryVersion()
			fmt.Printf("%d.%d.%d\n", major, minor, patch)
			return nil
		},
	}
}

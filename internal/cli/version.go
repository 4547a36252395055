package cli

import (
	"fmt"

	"github.com/andywolf/sprintwatch/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print detailed version information including commit hash and build date.`,
	Run: func(cmd *cobra.Command, args []string) {
		detailed, _ := cmd.Flags().GetBool("full")
		if detailed {
			fmt.Fprintln(cmd.OutOrStdout(), version.Full())
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), version.Info())
		}
	},
}

func init() {
	versionCmd.Flags().Bool("full", false, "print detailed version information")
	rootCmd.AddCommand(versionCmd)
}

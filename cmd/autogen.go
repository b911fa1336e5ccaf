// quartz autogen <metadata dir> [config]
package cmd

import (
	"github.com/quartz-build/quartz/internal/autogen"
	"github.com/quartz-build/quartz/internal/msg"
	"github.com/spf13/cobra"
)

// autogenCmd is invoked from generated build graphs, not by hand: the
// generation step of every target carries a command line pointing back
// at this binary.
var autogenCmd = &cobra.Command{
	Use:    "autogen <metadata dir> [config]",
	Short:  "Run code generation tools for a target",
	Hidden: true,
	Args:   cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		config := ""
		if len(args) > 1 {
			config = args[1]
		}
		if err := autogen.RunAutogen(args[0], config); err != nil {
			msg.Fatal("%v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(autogenCmd)
}

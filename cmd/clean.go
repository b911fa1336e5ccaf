// quartz clean [path]
package cmd

import (
	"os"
	"path/filepath"

	"github.com/quartz-build/quartz/internal/msg"
	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [target path]",
	Short: "Remove the build directory and generated files",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		target := "."
		if len(args) > 0 {
			target = args[0]
		}
		buildDir := filepath.Join(target, "build")
		if _, err := os.Stat(buildDir); os.IsNotExist(err) {
			msg.Info("nothing to clean")
			return
		}
		if err := os.RemoveAll(buildDir); err != nil {
			msg.Fatal("failed to remove %s: %v", buildDir, err)
		}
		msg.Info("removed %s", buildDir)
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}

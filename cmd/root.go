// quartz [path], quartz build [path]
package cmd

import (
	"fmt"
	"os"

	"github.com/quartz-build/quartz/internal/builder"
	"github.com/quartz-build/quartz/internal/msg"
	"github.com/spf13/cobra"
)

var (
	flagProfile   string
	flagConfigure bool
	flagGenerator EnumValue = NewEnumValue("native", map[string]string{
		"native": "Use Quartz's builder (default)",
		"ninja":  "Generates build.ninja files",
		"vs2022": "Generates Visual Studio 2022 project files",
	})
)

func doBuild(cmd *cobra.Command, args []string) {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	b, err := builder.NewBuilderInDirectory(target)
	if err != nil {
		msg.Fatal("%v", err)
	}
	if err := b.Build(flagProfile, flagGenerator.Value(), flagConfigure); err != nil {
		msg.Fatal("%v", err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "quartz [target path]",
	Short: "Quartz build system",
	Long:  `Quartz build system`,
	Args:  cobra.MinimumNArgs(1),
	Run:   doBuild,
}

var buildCmd = &cobra.Command{
	Use:   "build [target path]",
	Short: "Build the package",
	Long:  `Build the package. If no target path is given, uses "."`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doBuild,
}

func init() {
	addBuildFlags(rootCmd)

	// quartz build subcommand
	rootCmd.AddCommand(buildCmd)
	addBuildFlags(buildCmd)
}

func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagProfile, "profile", "p", "debug", "Build with the given profile")
	cmd.Flags().VarP(&flagGenerator, "gen", "g", "Generator to build with, one of "+flagGenerator.HelpString())
	cmd.Flags().BoolVar(&flagConfigure, "configure-only", false, "Generate build files without building")
	cmd.RegisterFlagCompletionFunc("gen", flagGenerator.CompletionFunc())
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/logwarden/logwarden/pkg/config"
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Show the version number, git commit, and build timestamp baked into this binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		switch {
		case versionShort:
			fmt.Println(config.Version)
		case GetOutput() == "json":
			data, _ := json.MarshalIndent(config.GetBuildInfo(), "", "  ")
			fmt.Println(string(data))
		default:
			fmt.Println(config.VersionString())
		}
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "print the bare version number")
	rootCmd.AddCommand(versionCmd)
}

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is the stride version, overridden at build time via
// -ldflags "-X github.com/stride-dev/stride/cmd.Version=v1.2.3".
var Version = "dev"

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the stride version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("stride %s (%s, %s/%s)\n", GetVersion(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

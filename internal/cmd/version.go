package cmd

import (
	"fmt"
	"io"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
)

var extended bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information. Use --extended for commit, build date, Go, Gofulmen and Crucible versions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		writeVersion(cmd.OutOrStdout(), binaryName(), extended)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&extended, "extended", "e", false, "show extended version information")
}

func writeVersion(w io.Writer, name string, full bool) {
	_, _ = fmt.Fprintf(w, "%s %s\n", name, displayVersion())
	if !full {
		return
	}

	_, _ = fmt.Fprintf(w, "Commit: %s\n", versionInfo.Commit)
	_, _ = fmt.Fprintf(w, "Built: %s\n", versionInfo.BuildDate)
	_, _ = fmt.Fprintf(w, "Go: %s\n\n", runtime.Version())

	version := crucible.GetVersion()
	_, _ = fmt.Fprintf(w, "Gofulmen: %s\n", version.Gofulmen)
	_, _ = fmt.Fprintf(w, "Crucible: %s\n", version.Crucible)
}

func displayVersion() string {
	if versionInfo.Version == "" {
		return "dev"
	}
	return versionInfo.Version
}

// binaryName falls back to the root command name when identity is missing.
func binaryName() string {
	if identity := GetAppIdentity(); identity != nil && identity.BinaryName != "" {
		return identity.BinaryName
	}
	return rootCmd.Name()
}

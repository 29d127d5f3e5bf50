package version

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// AddVersionCommand adds the version command to cmd.
func AddVersionCommand(cmd *cobra.Command, binaryName string) {
	cmd.AddCommand(CommandVersion(binaryName))
}

// CommandVersion prints cmd version
func CommandVersion(binaryName string) *cobra.Command {
	var cmd = &cobra.Command{
		Use:     "version",
		Short:   "Prints version of this binary.",
		Aliases: []string{"v"},
		Example: fmt.Sprintf("%s version", binaryName),
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Print(versionString(binaryName))
		},
	}

	return cmd
}

func versionString(binaryName string) string {
	v := Version()
	commit, ts := CommitInfo()

	if v == "" {
		v = "main"
	}

	var sb strings.Builder
	_, _ = sb.WriteString(binaryName + "\n")
	_, _ = sb.WriteString("Version:       " + v + "\n")
	_, _ = sb.WriteString("Git Commit:    " + commit + "\n")
	_, _ = sb.WriteString("Git Timestamp: " + ts + "\n")

	return sb.String()
}

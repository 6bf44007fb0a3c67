package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/veracity/internal/registry"
)

// shiCmd prints the Source Hash Identifier for a URI
var shiCmd = &cobra.Command{
	Use:   "shi <uri> [version]",
	Short: "Compute the Source Hash Identifier of a source",
	Long: `Print the SHA-256 Source Hash Identifier for a canonical URI and an
optional version string, as used in the SOURCES registry and in the hash
prefix of claim markers.

Example:
  veracity shi https://example.org/report
  veracity shi https://example.org/report 2024-05-01`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		version := ""
		if len(args) == 2 {
			version = args[1]
		}
		fmt.Fprintln(cmd.OutOrStdout(), registry.SourceHash(args[0], version))
	},
}

func init() {
	rootCmd.AddCommand(shiCmd)
}

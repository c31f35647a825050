package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/axondata/go-devreload"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			info := devreload.GetVersion()
			fmt.Fprintf(cmd.OutOrStdout(), "devreload %s (manifests: %s)\n",
				info.Version, strings.Join(info.ManifestFormats, ", "))
		},
	}
}

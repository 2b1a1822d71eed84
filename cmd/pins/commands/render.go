package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *CLI) newRenderVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "render-version <version>",
		Short: "Print the version file reporting <version>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), c.table.RenderVersionFile(args[0]))
			return err
		},
	}
}

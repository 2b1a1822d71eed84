package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (c *CLI) newListCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every pinned version, oldest release first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(output); err != nil {
				return err
			}
			descriptors := c.table.ListVersions()
			if output != formatTable {
				return encode(cmd.OutOrStdout(), output, descriptors)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "LABEL\tVERSION\tSOURCE\tEXTRAS\tPATCH")
			for _, d := range descriptors {
				patch := "-"
				if d.Args.PostFetchPatch != nil {
					patch = d.Args.PostFetchPatch.Path
				}
				extras := "-"
				if len(d.Args.ExtraRequirements) > 0 {
					extras = strings.Join(d.Args.ExtraRequirements, ",")
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.Label, d.Args.Version, d.Args.Source.Kind, extras, patch)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "output format: table, yaml or json")
	return cmd
}

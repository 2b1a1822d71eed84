package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/git-pkgs/pins/audit"
)

func (c *CLI) newCheckCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compare pinned digests with the ones published upstream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(output); err != nil {
				return err
			}
			report, err := audit.Check(cmd.Context(), c.table, c.upstream())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if output != formatTable {
				if err := encode(out, output, report); err != nil {
					return err
				}
			} else {
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "LABEL\tVERSION\tSTATUS")
				for _, f := range report.Findings {
					_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Label, f.Version, f.Status)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}

			for _, f := range report.Findings {
				if f.Status == audit.StatusMismatch {
					c.logger.Error("digest mismatch", "label", f.Label, "pinned", f.Pinned, "upstream", f.Upstream)
				}
			}
			if !report.OK() {
				return ErrAuditFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatTable, "output format: table, yaml or json")
	return cmd
}

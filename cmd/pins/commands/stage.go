package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func (c *CLI) newStageCmd() *cobra.Command {
	var dest string

	cmd := &cobra.Command{
		Use:   "stage <label>",
		Short: "Write the patched source tree of a pinned version into --dest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dest == "" {
				return errors.New("--dest is required")
			}
			d, err := c.lookup(args[0])
			if err != nil {
				return err
			}

			s, closeFn, err := c.stager()
			if err != nil {
				return err
			}
			defer closeFn()

			root, err := s.Prepare(cmd.Context(), *d, dest)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), root)
			return err
		},
	}

	cmd.Flags().StringVar(&dest, "dest", "", "directory to write the source tree into (must be empty)")
	return cmd
}

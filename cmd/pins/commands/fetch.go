package commands

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.trai.ch/zerr"

	"github.com/git-pkgs/pins/fetch"
)

func (c *CLI) newFetchCmd() *cobra.Command {
	var (
		all         bool
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "fetch [label]",
		Short: "Download and verify a pinned archive, printing its local path",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("give exactly one of <label> or --all")
			}

			a, closeFn, err := c.archiver()
			if err != nil {
				return err
			}
			defer closeFn()

			out := cmd.OutOrStdout()
			if !all {
				d, err := c.lookup(args[0])
				if err != nil {
					return err
				}
				if !d.IsRelease() {
					return zerr.With(zerr.New("entry has no archive to fetch"), "label", d.Label)
				}
				path, err := a.FetchDescriptor(cmd.Context(), *d)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, path)
				return err
			}

			results := fetch.FetchAll(cmd.Context(), a, c.table.ListVersions(), concurrency)
			labels := make([]string, 0, len(results))
			for label := range results {
				labels = append(labels, label)
			}
			sort.Strings(labels)

			var errs []error
			for _, label := range labels {
				r := results[label]
				if r.Err != nil {
					c.logger.Error("fetch failed", "label", label, "error", r.Err)
					errs = append(errs, fmt.Errorf("%s: %w", label, r.Err))
					continue
				}
				_, _ = fmt.Fprintf(out, "%s\t%s\n", label, r.Path)
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "fetch every release")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "parallel downloads with --all")
	return cmd
}

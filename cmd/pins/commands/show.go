package commands

import (
	"github.com/spf13/cobra"

	"github.com/git-pkgs/pins/internal/core"
)

type showOutput struct {
	core.Descriptor `yaml:",inline"`
	PURL            string            `json:"purl,omitempty" yaml:"purl,omitempty"`
	URLs            map[string]string `json:"urls,omitempty" yaml:"urls,omitempty"`
	PatchScript     string            `json:"patch_script,omitempty" yaml:"patch_script,omitempty"`
}

func (c *CLI) newShowCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show <label>",
		Short: "Show one pinned version with its PURL and patch script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == formatTable {
				output = formatYAML
			}
			if err := checkFormat(output); err != nil {
				return err
			}
			d, err := c.lookup(args[0])
			if err != nil {
				return err
			}

			out := showOutput{
				Descriptor:  *d,
				PatchScript: d.Args.PostFetchPatch.Script(),
			}
			if d.IsRelease() {
				src := d.Args.Source
				out.PURL = core.DescriptorPURL(core.Ecosystem(c.table), *d)
				out.URLs = core.BuildURLs(c.table.URLs(), src.Package, src.Version)
			}
			return encode(cmd.OutOrStdout(), output, out)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", formatYAML, "output format: yaml or json")
	return cmd
}

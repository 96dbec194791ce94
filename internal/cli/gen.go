package cli

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ceyewan/flake/idgen"
	"github.com/ceyewan/flake/xerrors"
)

var genFormats = []string{"decimal", "base62", "json"}

func newGenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate IDs locally without a server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			worker, _ := cmd.Flags().GetInt64("worker")
			dc, _ := cmd.Flags().GetInt64("datacenter")
			epoch, _ := cmd.Flags().GetInt64("epoch")
			count, _ := cmd.Flags().GetInt("count")
			format, _ := cmd.Flags().GetString("format")
			if !slices.Contains(genFormats, format) {
				return xerrors.Wrapf(xerrors.ErrInvalidInput, "format %q, want one of %v", format, genFormats)
			}

			cfg := idgen.DefaultConfig(worker, dc)
			cfg.Epoch = epoch

			gen, err := idgen.New(cfg)
			if err != nil {
				return err
			}
			ids, err := gen.NextBatch(count)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, id := range ids {
				switch format {
				case "base62":
					fmt.Fprintln(out, id.Base62())
				case "json":
					b, err := json.Marshal(gen.Decode(id))
					if err != nil {
						return err
					}
					fmt.Fprintln(out, string(b))
				case "decimal":
					fmt.Fprintln(out, id.String())
				}
			}
			return nil
		},
	}
	cmd.Flags().Int64P("worker", "w", 0, "Worker ID [0, 31]")
	cmd.Flags().Int64P("datacenter", "d", 0, "Datacenter ID [0, 31]")
	cmd.Flags().Int64("epoch", idgen.DefaultEpoch, "Epoch in Unix milliseconds")
	cmd.Flags().IntP("count", "n", 1, "Number of IDs")
	cmd.Flags().StringP("format", "f", "decimal", "Output format: decimal|base62|json")
	return cmd
}

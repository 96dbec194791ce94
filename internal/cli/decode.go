package cli

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ceyewan/flake/idgen"
)

type decoded struct {
	idgen.Decoded
	Base62 string `json:"base62"`
}

func newDecodeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode <id>",
		Short: "Decode an ID into timestamp, datacenter, worker and sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			epoch, _ := cmd.Flags().GetInt64("epoch")
			base62, _ := cmd.Flags().GetBool("base62")

			id, err := parseID(args[0], base62)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(decoded{
				Decoded: idgen.Decoded{ID: id, Parts: id.Decompose(), Time: id.Time(epoch)},
				Base62:  id.Base62(),
			})
		},
	}
	cmd.Flags().Int64("epoch", idgen.DefaultEpoch, "Epoch in Unix milliseconds used when the ID was generated")
	cmd.Flags().Bool("base62", false, "Treat the argument as Base62 even if it is all digits")
	return cmd
}

func parseID(s string, base62 bool) (idgen.ID, error) {
	if !base62 && strings.Trim(s, "0123456789") == "" {
		return idgen.ParseString(s)
	}
	return idgen.ParseBase62(s)
}

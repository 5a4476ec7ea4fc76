package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"commentgen/internal/config"
	"commentgen/internal/models"
)

func (a *app) stylesCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "styles",
		Short: "List comment styles, creativity levels and presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			builder, err := loadBuilder(config.LoadEnv())
			if err != nil {
				return err
			}

			info := models.StyleInfo{
				Styles:       models.CommentStyles,
				Creativities: []models.Creativity{models.CreativityLow, models.CreativityHigh},
				Presets:      builder.Presets(),
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			styles := make([]string, len(info.Styles))
			for i, s := range info.Styles {
				styles[i] = string(s)
			}
			fmt.Fprintf(out, "Styles:      %s\n", strings.Join(styles, ", "))
			fmt.Fprintf(out, "Creativity:  low, high\n")
			if len(info.Presets) == 0 {
				fmt.Fprintln(out, "Presets:     none")
				return nil
			}
			fmt.Fprintln(out, "Presets:")
			for _, p := range info.Presets {
				if p.Description != "" {
					fmt.Fprintf(out, "  %s - %s\n", p.Name, p.Description)
				} else {
					fmt.Fprintf(out, "  %s\n", p.Name)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

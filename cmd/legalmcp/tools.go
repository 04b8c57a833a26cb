package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"text/tabwriter"

	"github.com/mohammad-safakhou/legalmcp/internal/dispatch"
	"github.com/spf13/cobra"
)

func toolsCMD(cfgPath *string) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Print the tool catalogue available with the configured credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			reg, err := dispatch.NewRegistry(dispatch.Registrations(), buildDeps(cfg), dispatch.WithLogger(log.New(io.Discard, "", 0)))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"checksum": reg.Catalogue().Checksum(), "tools": reg.Tools()})
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, t := range reg.Tools() {
				fmt.Fprintf(tw, "%s\t%s\n", t.Name, t.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the catalogue with input schemas as JSON")
	return cmd
}

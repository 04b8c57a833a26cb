package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mohammad-safakhou/legalmcp/internal/dispatch"
	"github.com/mohammad-safakhou/legalmcp/internal/sources/openstates"
	"github.com/mohammad-safakhou/legalmcp/internal/sweep"
	"github.com/spf13/cobra"
)

func sweepCMD(cfgPath *string) *cobra.Command {
	var statesFlag string
	cmd := &cobra.Command{
		Use:   "sweep <keyword>",
		Short: "Search Open States across all fifty states and print the report as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			deps := buildDeps(cfg)
			src, err := openstates.New(deps.Credentials[dispatch.CredOpenStates], deps.Browser, deps.Transport...)
			if err != nil {
				return err
			}

			var states []string
			if statesFlag != "" {
				for _, s := range strings.Split(statesFlag, ",") {
					if s = strings.TrimSpace(s); s != "" {
						states = append(states, s)
					}
				}
			}
			rep, err := sweep.New(src, deps.Sweep).Run(ctx, strings.Join(args, " "), states)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(rep); err != nil {
				return fmt.Errorf("encode report: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&statesFlag, "states", "", "comma-separated state codes (default: all fifty)")
	return cmd
}

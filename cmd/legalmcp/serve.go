package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/mohammad-safakhou/legalmcp/internal/server"
	"github.com/mohammad-safakhou/legalmcp/mcp"
	"github.com/spf13/cobra"
)

func serveCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP tool server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, *cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			srv := mcp.NewServer(a.registry, a.cfg.General.ServiceName, version)
			return srv.Serve(ctx, os.Stdin, os.Stdout)
		},
	}
}

func httpCMD(cfgPath *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "http",
		Short: "Run the HTTP tool server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, *cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			if addr == "" {
				addr = a.cfg.Server.Address
			}
			e := server.New(a.registry, a.tel.Handler())
			return server.Run(ctx, e, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.address)")
	return cmd
}

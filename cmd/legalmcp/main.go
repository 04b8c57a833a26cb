package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	// stdout is reserved for protocol frames and command output.
	log.SetOutput(os.Stderr)

	var cfgPath string
	root := &cobra.Command{
		Use:           "legalmcp",
		Short:         "Legal document research tools over MCP and HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default ./config/config.json if present)")

	root.AddCommand(serveCMD(&cfgPath), httpCMD(&cfgPath), sweepCMD(&cfgPath), toolsCMD(&cfgPath))
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "legalmcp: %v\n", err)
		os.Exit(1)
	}
}

// Command gateway runs the SMPP HLR gateway: the default invocation starts
// the server, and the healthcheck subcommand probes the gateway's durable
// dependencies for use as a container liveness probe.
package main

import (
	"fmt"
	"os"

	cc "github.com/ivanpirog/coloredcobra"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gateway",
		Short: "SMPP HLR gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "healthcheck",
		Short: "Probe the cache and (if enabled) the store, exit 0 iff both reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealthcheck()
		},
	})

	cc.Init(&cc.Config{
		RootCmd:       rootCmd,
		Headings:      cc.HiCyan + cc.Bold + cc.Underline,
		Commands:      cc.HiYellow + cc.Bold,
		CmdShortDescr: cc.White,
		Example:       cc.Italic,
		ExecName:      cc.Bold,
		Flags:         cc.Bold,
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Copyright (c) 2026 dotandev
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dotandev/abcmerge/internal/daemon"
)

var (
	daemonPort      string
	daemonAuthToken string
	daemonTracing   bool
	daemonOTLPURL   string
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "utility",
	Short:   "Start JSON-RPC server for build tools",
	Long: `Start a JSON-RPC 2.0 server that exposes the transcoders to build orchestrators.
Paths in requests are read and written on the daemon's host.

Methods:
  - Transcode.Filter:  keep fragments matching include/exclude globs
  - Transcode.Merge:   merge several inputs into one movie or .abc block
  - Transcode.Inject:  splice a payload in front of an anchor class
  - Transcode.Extract: cut an exported symbol into its own movie
  - Transcode.Dump:    disassemble every fragment of an input

Example:
  abcmerge daemon --port 8080
  abcmerge daemon --port 8080 --auth-token secret123`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("tracing") {
			cfg.Tracing = daemonTracing
		}
		if cmd.Flags().Changed("otlp-url") {
			cfg.OTLPURL = daemonOTLPURL
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		tr, release, err := newTranscoder(cmd.Context(), "abcmerge-daemon")
		if err != nil {
			return err
		}
		defer release()

		server := daemon.NewServer(daemon.Config{
			Port:      daemonPort,
			AuthToken: daemonAuthToken,
		}, tr)

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Starting abcmerge daemon on port %s\n", daemonPort)
		if daemonAuthToken != "" {
			fmt.Fprintln(w, "Authentication: enabled")
		}
		if cfg.Tracing {
			fmt.Fprintf(w, "Tracing: %s\n", cfg.OTLPURL)
		}

		// Execute cancels the command context on SIGINT/SIGTERM.
		return server.Start(cmd.Context(), daemonPort)
	},
}

func init() {
	daemonCmd.Flags().StringVarP(&daemonPort, "port", "p", "8080", "Port to listen on")
	daemonCmd.Flags().StringVar(&daemonAuthToken, "auth-token", "", "Authentication token for API access")
	daemonCmd.Flags().BoolVar(&daemonTracing, "tracing", false, "Enable OpenTelemetry tracing")
	daemonCmd.Flags().StringVar(&daemonOTLPURL, "otlp-url", "http://localhost:4318", "OTLP exporter URL")

	rootCmd.AddCommand(daemonCmd)
}

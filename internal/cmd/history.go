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
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dotandev/abcmerge/internal/cache"
	"github.com/dotandev/abcmerge/internal/db"
)

var (
	historyOpFlag     string
	historyStatusFlag string
	historyErrorFlag  string
	historyInputFlag  string
	historyLimitFlag  int
)

var historyCmd = &cobra.Command{
	Use:     "history",
	GroupID: "utility",
	Short:   "Search the log of past transcode runs",
	Long: `Search the history of transcode runs recorded in ~/.abcmerge/history.db
(configurable via ABCMERGE_HISTORY_PATH). Supports regex patterns for flexible
matching.

You can search by:
  • Operation (exact match)
  • Status: ok or failed
  • Error message patterns (regex)
  • Input path patterns (regex)

Results are ordered by timestamp (most recent first) and limited by --limit flag.`,
	Example: `  # Last ten runs
  abcmerge history

  # Failed merges
  abcmerge history --op merge --status failed

  # Runs that read a given library
  abcmerge history --input 'lib\.swc$' --limit 5`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := db.Open(cfg.HistoryPath)
		if err != nil {
			return fmt.Errorf("failed to open run history: %w", err)
		}
		defer store.Close()

		runs, err := store.SearchRuns(db.SearchParams{
			Op:         historyOpFlag,
			Status:     historyStatusFlag,
			ErrorRegex: historyErrorFlag,
			InputRegex: historyInputFlag,
			Limit:      historyLimitFlag,
		})
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		w := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(w, "No matching runs found.")
			return nil
		}

		fmt.Fprintf(w, "Found %d matching runs:\n", len(runs))
		for _, r := range runs {
			fmt.Fprintln(w, "--------------------------------------------------")
			status := okColor(r.Status)
			if r.Status != db.StatusOK {
				status = dropColor(r.Status)
			}
			fmt.Fprintf(w, "#%d %s %s (%s)\n", r.ID, r.Op, status, r.Duration.Round(time.Millisecond))
			fmt.Fprintf(w, "Time: %s\n", r.Timestamp.Format("2006-01-02 15:04:05"))
			if len(r.Inputs) > 0 {
				fmt.Fprintf(w, "Inputs: %s\n", strings.Join(r.Inputs, ", "))
			}
			if r.Output != "" {
				fmt.Fprintf(w, "Output: %s (%s)", r.Output, cache.FormatBytes(r.OutputBytes))
				if r.CacheHit {
					fmt.Fprint(w, " "+faintColor("cached"))
				}
				fmt.Fprintln(w)
			}
			if r.ErrorMsg != "" {
				fmt.Fprintf(w, "Error: %s\n", r.ErrorMsg)
			}
		}
		fmt.Fprintln(w, "--------------------------------------------------")

		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyOpFlag, "op", "", "Operation to match (filter, merge, inject, extract, classpool)")
	historyCmd.Flags().StringVar(&historyStatusFlag, "status", "", "Status to match (ok, failed)")
	historyCmd.Flags().StringVar(&historyErrorFlag, "error", "", "Regex pattern to match error messages")
	historyCmd.Flags().StringVar(&historyInputFlag, "input", "", "Regex pattern to match input paths")
	historyCmd.Flags().IntVar(&historyLimitFlag, "limit", 10, "Maximum number of results to return")
	_ = historyCmd.RegisterFlagCompletionFunc("op", completeOpFlag)
	_ = historyCmd.RegisterFlagCompletionFunc("status", completeStatusFlag)

	rootCmd.AddCommand(historyCmd)
}

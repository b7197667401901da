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
	"os"

	"github.com/spf13/cobra"

	"github.com/dotandev/abcmerge/internal/cache"
)

var (
	cacheForceFlag bool
)

func cacheManager() *cache.Manager {
	return cache.NewManager(cfg.CachePath, cache.Config{MaxSizeBytes: cfg.CacheMaxBytes})
}

var cacheCmd = &cobra.Command{
	Use:     "cache",
	GroupID: "utility",
	Short:   "Manage the transcode output cache",
	Long: `Manage the local cache of transcoder outputs. Entries are keyed by a hash of
the operation, codec options, name filter and input bytes, so repeating a
transcode on unchanged inputs copies the stored result.

Cache location: ~/.abcmerge/cache (configurable via ABCMERGE_CACHE_PATH)

Available subcommands:
  status  - View cache size and usage statistics
  clean   - Remove old files using LRU strategy
  clear   - Delete all cached data`,
	Example: `  # Check cache status
  abcmerge cache status

  # Clean old cache entries
  abcmerge cache clean

  # Force clean without confirmation
  abcmerge cache clean --force

  # Clear all cache
  abcmerge cache clear --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display cache statistics",
	Long:  `Display the current cache size, number of cached files, and disk usage statistics.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager := cacheManager()

		size, err := manager.GetCacheSize()
		if err != nil {
			return fmt.Errorf("failed to calculate cache size: %w", err)
		}

		files, err := manager.ListCachedFiles()
		if err != nil {
			return fmt.Errorf("failed to list cache files: %w", err)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Cache directory: %s\n", cfg.CachePath)
		fmt.Fprintf(w, "Cache enabled: %t\n", cfg.CacheEnabled)
		fmt.Fprintf(w, "Cache size: %s\n", cache.FormatBytes(size))
		fmt.Fprintf(w, "Files cached: %d\n", len(files))
		fmt.Fprintf(w, "Maximum size: %s\n", cache.FormatBytes(cfg.CacheMaxBytes))

		if size > cfg.CacheMaxBytes {
			fmt.Fprintf(w, "\n%s Cache size exceeds maximum limit. Run 'abcmerge cache clean' to free space.\n", dropColor("!"))
		}

		return nil
	},
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove old cached files using LRU strategy",
	Long: `Remove old cached files using LRU (Least Recently Used) strategy.

This command will:
  1. Identify the least recently used entries
  2. Prompt for confirmation before deletion
  3. Delete entries until cache size is reduced to 50% of maximum

Use --force to skip the confirmation prompt.`,
	Example: `  # Clean cache with confirmation
  abcmerge cache clean

  # Force clean without prompt
  abcmerge cache clean --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := cacheManager().Clean(cacheForceFlag, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
			return fmt.Errorf("cache cleanup failed: %w", err)
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all cached files",
	Long: `Remove every cached entry from the cache directory.

This action cannot be undone. Use --force to skip confirmation.`,
	Example: `  # Clear cache with confirmation
  abcmerge cache clear

  # Force clear without prompt
  abcmerge cache clear --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()

		// Check if cache exists
		if _, err := os.Stat(cfg.CachePath); os.IsNotExist(err) {
			fmt.Fprintln(w, "Cache directory does not exist")
			return nil
		}

		// Get confirmation unless force flag is set
		if !cacheForceFlag {
			fmt.Fprintf(w, "This will delete ALL cached files in %s\n", cfg.CachePath)
			fmt.Fprint(w, "Are you sure? (yes/no): ")
			var response string
			if _, err := fmt.Fscanln(cmd.InOrStdin(), &response); err != nil {
				return fmt.Errorf("failed to read confirmation input: %w", err)
			}
			if response != "yes" && response != "y" {
				fmt.Fprintln(w, "Cache clear cancelled")
				return nil
			}
		}

		status, err := cacheManager().Clear()
		if err != nil {
			return fmt.Errorf("failed to clear cache directory: %w", err)
		}

		fmt.Fprintf(w, "Cache cleared: %d files, %s freed\n", status.FilesDeleted, cache.FormatBytes(status.SpaceFreed))
		return nil
	},
}

func init() {
	// Add subcommands to cache command
	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cacheCleanCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	// Add flags
	cacheCleanCmd.Flags().BoolVarP(&cacheForceFlag, "force", "f", false, "Skip confirmation prompt")
	cacheClearCmd.Flags().BoolVarP(&cacheForceFlag, "force", "f", false, "Skip confirmation prompt")

	// Add cache command to root
	rootCmd.AddCommand(cacheCmd)
}

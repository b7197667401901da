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

package cache

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/dotandev/abcmerge/internal/logger"
)

// entrySuffix marks files written by Put; anything else in the directory is
// left alone by Get and Clear.
const entrySuffix = ".out"

// Config holds cache configuration
type Config struct {
	// MaxSizeBytes is the maximum cache size in bytes (default 1GB)
	MaxSizeBytes int64
}

// DefaultConfig returns the default cache configuration
func DefaultConfig() Config {
	return Config{
		MaxSizeBytes: 1024 * 1024 * 1024, // 1GB
	}
}

// Manager is a content-addressed store of transcoder outputs. Entries are
// plain files named by their key; reading an entry refreshes its
// modification time, which CleanLRU treats as the last access.
type Manager struct {
	cacheDir string
	config   Config
}

// NewManager creates a new cache manager
func NewManager(cacheDir string, config Config) *Manager {
	return &Manager{
		cacheDir: cacheDir,
		config:   config,
	}
}

// Key hashes the parts of a request into an entry name. Parts are length
// prefixed, so ("ab", "c") and ("a", "bc") get different keys.
func Key(parts ...[]byte) string {
	h := xxhash.New()
	var n [8]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint64(n[:], uint64(len(p)))
		_, _ = h.Write(n[:])
		_, _ = h.Write(p)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

func (m *Manager) entryPath(key string) string {
	return filepath.Join(m.cacheDir, key+entrySuffix)
}

// Get returns the entry stored under key. A missing entry is not an error.
func (m *Manager) Get(key string) ([]byte, bool, error) {
	path := m.entryPath(key)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		logger.Logger.Debug("Failed to touch cache entry", "path", path, "error", err)
	}
	return data, true, nil
}

// Put stores data under key, then trims the cache if it grew past its limit.
func (m *Manager) Put(key string, data []byte) error {
	dir, err := m.GetCacheDir()
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, key+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create cache entry: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.entryPath(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	size, err := m.GetCacheSize()
	if err != nil {
		return err
	}
	if size > m.config.MaxSizeBytes {
		if _, err := m.CleanLRU(); err != nil {
			return err
		}
	}
	return nil
}

// FileInfo contains information about a cached file
type FileInfo struct {
	Path       string
	Size       int64
	LastAccess time.Time
	ModTime    time.Time
}

// GetCacheDir returns the cache directory path (creates if not exists)
func (m *Manager) GetCacheDir() (string, error) {
	if err := os.MkdirAll(m.cacheDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}
	return m.cacheDir, nil
}

// GetCacheSize returns the current size of the cache in bytes
func (m *Manager) GetCacheSize() (int64, error) {
	files, err := m.ListCachedFiles()
	if err != nil {
		return 0, err
	}
	var totalSize int64
	for _, f := range files {
		totalSize += f.Size
	}
	return totalSize, nil
}

// ListCachedFiles returns a list of all cached entries
func (m *Manager) ListCachedFiles() ([]FileInfo, error) {
	var files []FileInfo

	err := filepath.Walk(m.cacheDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, entrySuffix) {
			files = append(files, FileInfo{
				Path:       path,
				Size:       info.Size(),
				LastAccess: info.ModTime(),
				ModTime:    info.ModTime(),
			})
		}
		return nil
	})

	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to list cache files: %w", err)
	}

	return files, nil
}

// SortFilesByAccessTime sorts files by access time (oldest first)
func SortFilesByAccessTime(files []FileInfo) {
	sort.Slice(files, func(i, j int) bool {
		return files[i].LastAccess.Before(files[j].LastAccess)
	})
}

// CleanupStatus contains information about a cleanup operation
type CleanupStatus struct {
	FilesDeleted int
	SpaceFreed   int64
	OriginalSize int64
	FinalSize    int64
	DeletedFiles []string
}

// evict deletes the oldest entries until the cache is at or below target.
func (m *Manager) evict(status *CleanupStatus, target int64) error {
	files, err := m.ListCachedFiles()
	if err != nil {
		return err
	}
	SortFilesByAccessTime(files)

	currentSize := status.OriginalSize
	for _, file := range files {
		if currentSize <= target {
			break
		}

		if err := os.Remove(file.Path); err != nil {
			logger.Logger.Warn("Failed to delete cache file", "path", file.Path, "error", err)
			continue
		}

		status.FilesDeleted++
		status.SpaceFreed += file.Size
		status.DeletedFiles = append(status.DeletedFiles, filepath.Base(file.Path))
		currentSize -= file.Size

		logger.Logger.Debug("Deleted cache file", "path", file.Path, "size", file.Size)
	}
	status.FinalSize = currentSize
	return nil
}

// CleanLRU performs LRU (Least Recently Used) cleanup to ensure cache size is within limit
// Returns the cleanup status and any errors
func (m *Manager) CleanLRU() (*CleanupStatus, error) {
	originalSize, err := m.GetCacheSize()
	if err != nil {
		return nil, err
	}

	status := &CleanupStatus{
		OriginalSize: originalSize,
		DeletedFiles: []string{},
	}

	if originalSize <= m.config.MaxSizeBytes {
		status.FinalSize = originalSize
		logger.Logger.Debug("Cache size within limit", "current", originalSize, "limit", m.config.MaxSizeBytes)
		return status, nil
	}

	// Target 50% of max size after cleanup
	if err := m.evict(status, m.config.MaxSizeBytes/2); err != nil {
		return nil, err
	}

	logger.Logger.Info("Cache cleanup completed",
		"files_deleted", status.FilesDeleted,
		"space_freed", status.SpaceFreed,
		"original_size", status.OriginalSize,
		"final_size", status.FinalSize)

	return status, nil
}

// Clean trims the cache to half its limit, oldest entries first. Unless
// force is set it asks for confirmation on in, writing prompts to out.
func (m *Manager) Clean(force bool, in io.Reader, out io.Writer) (*CleanupStatus, error) {
	originalSize, err := m.GetCacheSize()
	if err != nil {
		return nil, err
	}

	status := &CleanupStatus{
		OriginalSize: originalSize,
		DeletedFiles: []string{},
	}

	if originalSize == 0 {
		fmt.Fprintf(out, "Cache is empty (0 B)\n")
		return status, nil
	}

	fmt.Fprintf(out, "Cache size: %s\n", FormatBytes(originalSize))
	fmt.Fprintf(out, "Maximum size: %s\n", FormatBytes(m.config.MaxSizeBytes))

	if !force {
		fmt.Fprint(out, "\nThis will delete the oldest cached files. Continue? (yes/no): ")
		var response string
		if _, err := fmt.Fscanln(in, &response); err != nil {
			return status, fmt.Errorf("failed to read input: %w", err)
		}
		if response != "yes" && response != "y" {
			fmt.Fprintln(out, "Cache cleanup cancelled")
			status.FinalSize = originalSize
			return status, nil
		}
	}

	if err := m.evict(status, m.config.MaxSizeBytes/2); err != nil {
		return nil, err
	}

	fmt.Fprintf(out, "\nCleanup complete!\n")
	fmt.Fprintf(out, "Files deleted: %d\n", status.FilesDeleted)
	fmt.Fprintf(out, "Space freed: %s\n", FormatBytes(status.SpaceFreed))
	fmt.Fprintf(out, "Final cache size: %s\n", FormatBytes(status.FinalSize))

	return status, nil
}

// Clear deletes every entry.
func (m *Manager) Clear() (*CleanupStatus, error) {
	size, err := m.GetCacheSize()
	if err != nil {
		return nil, err
	}
	status := &CleanupStatus{OriginalSize: size, DeletedFiles: []string{}}
	if err := m.evict(status, 0); err != nil {
		return nil, err
	}
	return status, nil
}

// FormatBytes converts bytes to human-readable format
func FormatBytes(bytes int64) string {
	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(bytes)
	unitIndex := 0

	for size >= 1024 && unitIndex < len(units)-1 {
		size /= 1024
		unitIndex++
	}

	if unitIndex == 0 {
		return fmt.Sprintf("%.0f %s", size, units[unitIndex])
	}
	return fmt.Sprintf("%.2f %s", size, units[unitIndex])
}

// Package paths resolves where the assistant keeps its on-disk state:
// the config file and the data directory whose layout the rest of the
// system assumes (search/ for the embedded index, audio_cache/ for
// synthesized audio).
package paths

import (
	"os"
	"path/filepath"
)

// DataDir returns the default root for persistent state, ~/.ttrpg-core.
// If the home directory cannot be determined it falls back to a
// directory under the system temporary directory; this is best-effort
// and not a security boundary.
func DataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Clean(filepath.Join(os.TempDir(), ".ttrpg-core"))
	}
	return filepath.Clean(filepath.Join(homeDir, ".ttrpg-core"))
}

// DefaultConfigFile returns the default location of the YAML config,
// ~/.config/ttrpg-core/config.yaml, with the same temp-dir fallback as
// DataDir.
func DefaultConfigFile() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Clean(filepath.Join(os.TempDir(), ".ttrpg-core-config", "config.yaml"))
	}
	return filepath.Clean(filepath.Join(homeDir, ".config", "ttrpg-core", "config.yaml"))
}

// SearchDir is where the embedded search engine keeps its indexes.
func SearchDir(dataDir string) string {
	return filepath.Join(dataDir, "search")
}

// AudioCacheDir is where the audio cache keeps its metadata database
// and blobs.
func AudioCacheDir(dataDir string) string {
	return filepath.Join(dataDir, "audio_cache")
}

// Package statefile persists the single timestamp the update-check
// collaborator needs.
package statefile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/cargorun/cargorun/internal/fs"
)

// State is the on-disk shape.
type State struct {
	LastUpdateCheck int64 `json:"last_update_check"`
}

// Path resolves the state file location via xdg.CacheFile, creating any
// missing parent directories as a side effect.
func Path(toolName string) (string, error) {
	return xdg.CacheFile(filepath.Join(toolName, "update-check.json"))
}

// Read loads the statefile at path, returning a zero-value State (never an
// error) when the file does not yet exist.
func Read(path string) (*State, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}
		return nil, err
	}
	var s State
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Write persists s to path as JSON, creating missing parent directories.
func Write(path string, s *State) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := fs.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// ShouldCheck reports whether an update check is due: the core never
// performs the network check itself (out of scope), it only exposes this
// predicate and RecordCheck so an external updater collaborator has a place
// to read/write state.
func ShouldCheck(path string, now time.Time, interval time.Duration) (bool, error) {
	s, err := Read(path)
	if err != nil {
		return false, err
	}
	if s.LastUpdateCheck == 0 {
		return true, nil
	}
	last := time.Unix(s.LastUpdateCheck, 0)
	return now.Sub(last) >= interval, nil
}

// RecordCheck stamps path with now as the most recent update check time.
func RecordCheck(path string, now time.Time) error {
	return Write(path, &State{LastUpdateCheck: now.Unix()})
}

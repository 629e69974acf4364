package backfill

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"
)

// DefaultStatePath is where backfill progress is kept unless overridden.
const DefaultStatePath = "~/.chattxt/backfill-state.json"

// BackfillState tracks progress for resumable backfill runs.
type BackfillState struct {
	StartedAt        time.Time         `json:"started_at"`
	LastProcessedAt  time.Time         `json:"last_processed_at"`
	ExportsProcessed []string          `json:"exports_processed"`
	ExportsRemaining int               `json:"exports_remaining"`
	LinesWritten     int               `json:"lines_written"`
	Fingerprints     map[string]string `json:"fingerprints"` // fingerprint -> export dir
	Errors           []string          `json:"errors"`

	path string // not serialized
}

// LoadState loads the backfill state from path, or creates a new one.
func LoadState(path string) (*BackfillState, error) {
	if path == "" {
		path = DefaultStatePath
	}
	p := expandHome(path)

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return &BackfillState{
				StartedAt:    time.Now().UTC(),
				Fingerprints: map[string]string{},
				path:         p,
			}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var s BackfillState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	if s.Fingerprints == nil {
		s.Fingerprints = map[string]string{}
	}
	s.path = p
	return &s, nil
}

// Path is the resolved state file location.
func (s *BackfillState) Path() string {
	return s.path
}

// Save persists the state to disk.
func (s *BackfillState) Save() error {
	s.LastProcessedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	return os.WriteFile(s.path, data, 0o644)
}

// IsProcessed returns true if the given export directory has already been converted.
func (s *BackfillState) IsProcessed(dir string) bool {
	return slices.Contains(s.ExportsProcessed, dir)
}

// MarkProcessed records an export directory as converted.
func (s *BackfillState) MarkProcessed(dir string) {
	s.ExportsProcessed = append(s.ExportsProcessed, dir)
}

// AddError records a processing error.
func (s *BackfillState) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

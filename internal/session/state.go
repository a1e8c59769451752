package session

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"portalctl/internal/model"
)

// State is the durable client-side state. It keeps the user logged in
// between runs without a network call.
type State struct {
	UpdatedAt time.Time      `yaml:"updated_at"`
	User      *model.Session `yaml:"user,omitempty"`
	ReturnURL string         `yaml:"return_url,omitempty"`
	Language  string         `yaml:"language,omitempty"`
}

// LoadState loads the state file. A missing file yields an empty state.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}
		return nil, err
	}

	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// SaveState writes the state file. It contains the session record, so the
// file is not group or world readable.
func SaveState(path string, st *State) error {
	if st == nil {
		return nil
	}
	st.UpdatedAt = time.Now().UTC()
	data, err := yaml.Marshal(st)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

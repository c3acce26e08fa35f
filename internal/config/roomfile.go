package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// RoomFile is the persisted service state: the monitored room list and the
// active content filter. It is rewritten on every mutation and read back at
// startup so the room list survives restarts.
type RoomFile struct {
	Filter string     `yaml:"filter,omitempty" json:"filter,omitempty"`
	Rooms  []RoomInfo `yaml:"rooms" json:"rooms"`
}

// RoomInfo is one persisted room entry.
type RoomInfo struct {
	RoomID string `yaml:"room_id" json:"room_id"`
	WebRID string `yaml:"web_rid" json:"web_rid"`
	Title  string `yaml:"title,omitempty" json:"title,omitempty"`
	Owner  string `yaml:"owner,omitempty" json:"owner,omitempty"`
}

// LoadRoomFile reads the persisted state. A missing file is not an error;
// it yields an empty state.
func LoadRoomFile(path string) (*RoomFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &RoomFile{}, nil
		}
		return nil, fmt.Errorf("read room file: %w", err)
	}

	var rf RoomFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse room file: %w", err)
	}
	return &rf, nil
}

// SaveRoomFile writes the state atomically via a rename.
func SaveRoomFile(path string, rf *RoomFile) error {
	data, err := yaml.Marshal(rf)
	if err != nil {
		return fmt.Errorf("encode room file: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write room file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace room file: %w", err)
	}
	return nil
}

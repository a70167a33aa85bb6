package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"rigveda-go/internal/config"
)

// AppState is the reader position restored on the next start.
type AppState struct {
	Mandala      int    `json:"mandala"`
	Sukta        int    `json:"sukta"`
	Selected     int    `json:"selected"`
	ScrollOffset int    `json:"scrollOffset"`
	ZenMode      bool   `json:"zenMode"`
	Field        string `json:"field,omitempty"`
}

const stateFile = "state.json"

// stateDir is replaced in tests.
var stateDir = config.EnsureDir

func getFilePath(filename string) (string, error) {
	dir, err := stateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filename), nil
}

func saveJSON(filename string, data interface{}) error {
	path, err := getFilePath(filename)
	if err != nil {
		return err
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, jsonData, 0o644)
}

func loadJSON(filename string, target interface{}) error {
	path, err := getFilePath(filename)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, target)
}

func saveState(state AppState) error {
	return saveJSON(stateFile, state)
}

func loadState() AppState {
	var state AppState
	if err := loadJSON(stateFile, &state); err != nil || state.Mandala < 1 || state.Sukta < 1 {
		return getDefaultAppState()
	}
	if state.Selected < 0 || state.ScrollOffset < 0 {
		state.Selected, state.ScrollOffset = 0, 0
	}
	return state
}

func getDefaultAppState() AppState {
	return AppState{Mandala: 1, Sukta: 1}
}

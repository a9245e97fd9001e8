package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/veilworld/internal/types"
)

// SnapshotStorage handles persistence of the full ledger state.
type SnapshotStorage struct {
	savePath  string
	stateLock sync.RWMutex
}

// NewSnapshotStorage creates a new ledger snapshot storage.
func NewSnapshotStorage(savePath string) *SnapshotStorage {
	if savePath == "" {
		savePath = "./data/ledger_state.json"
	}

	// Create data directory if it doesn't exist
	dir := filepath.Dir(savePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		// If we can't create the directory, we'll just use the default path
		savePath = "./data/ledger_state.json"
	}

	return &SnapshotStorage{
		savePath: savePath,
	}
}

// SaveLedgerState saves the ledger state to disk.
func (ss *SnapshotStorage) SaveLedgerState(state *types.LedgerState) error {
	ss.stateLock.Lock()
	defer ss.stateLock.Unlock()

	dir := filepath.Dir(ss.savePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger state: %w", err)
	}

	if err := os.WriteFile(ss.savePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write ledger state: %w", err)
	}

	return nil
}

// LoadLedgerState loads the ledger state from disk.
func (ss *SnapshotStorage) LoadLedgerState() (*types.LedgerState, error) {
	ss.stateLock.Lock()
	defer ss.stateLock.Unlock()

	// Return empty state if file doesn't exist
	if _, err := os.Stat(ss.savePath); os.IsNotExist(err) {
		return newLedgerState(), nil
	}

	data, err := os.ReadFile(ss.savePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger state file: %w", err)
	}

	var state types.LedgerState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse ledger state: %w", err)
	}

	// Ensure all maps are initialized
	if state.Players == nil {
		state.Players = make(map[uint64]*types.PlayerRecord)
	}
	if state.OwnerTokens == nil {
		state.OwnerTokens = make(map[uint64]string)
	}
	if state.PendingActions == nil {
		state.PendingActions = make(map[uint64]*types.PendingAction)
	}
	if state.Outcomes == nil {
		state.Outcomes = make(map[uint64]*types.Outcome)
	}
	if state.Zones == nil {
		state.Zones = make(map[string]*types.ZoneCounter)
	}
	if state.ZoneHashByName == nil {
		state.ZoneHashByName = make(map[string]string)
	}
	if state.Bindings == nil {
		state.Bindings = make(map[string]*types.RequestBinding)
	}

	return &state, nil
}

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// Database configuration
	Database DatabaseConfig `json:"database"`

	// Oracle configuration
	Oracle OracleConfig `json:"oracle"`

	// Game configuration
	Game GameConfig `json:"game"`
}

// ServerConfig holds server specific configuration
type ServerConfig struct {
	// Server port
	Port string `json:"port"`

	// Log level (debug, info, warn, error)
	LogLevel string `json:"log_level"`
}

// DatabaseConfig holds database specific configuration
type DatabaseConfig struct {
	// Database driver (sqlite3)
	Driver string `json:"driver"`

	// Journal database connection string
	DSN string `json:"dsn"`

	// Path to the ledger state snapshot
	SnapshotPath string `json:"snapshot_path"`
}

// OracleConfig holds decryption oracle specific configuration
type OracleConfig struct {
	// Hex-encoded cipher key; generated at startup when empty
	CipherKey string `json:"cipher_key"`

	// Seconds between callback delivery sweeps
	PumpIntervalSeconds int `json:"pump_interval_seconds"`
}

// GameConfig holds game specific configuration
type GameConfig struct {
	// Zone assigned when registration omits one
	DefaultZone string `json:"default_zone"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:     "8080",
			LogLevel: "info",
		},
		Database: DatabaseConfig{
			Driver:       "sqlite3",
			DSN:          "./veilworld.db",
			SnapshotPath: "./data/ledger_state.json",
		},
		Oracle: OracleConfig{
			CipherKey:           "",
			PumpIntervalSeconds: 2,
		},
		Game: GameConfig{
			DefaultZone: "wilds",
		},
	}
}

// LoadConfig loads configuration from a file
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return config, err
	}

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Create default config file
		file, err := os.Create(path)
		if err != nil {
			return config, err
		}
		defer file.Close()

		encoder := json.NewEncoder(file)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(config); err != nil {
			return config, err
		}

		return config, nil
	}

	// Read config file
	file, err := os.Open(path)
	if err != nil {
		return config, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&config); err != nil {
		return config, err
	}

	return config, nil
}

// SaveConfig saves configuration to a file
func SaveConfig(config Config, path string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// Create or truncate file
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	// Write config to file
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(config); err != nil {
		return err
	}

	return nil
}

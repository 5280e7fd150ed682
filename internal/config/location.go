package config

import (
	"os"
	"path/filepath"
)

// GetConfigPath returns the configuration file path. WRT_CONFIG overrides
// the default location, ~/.wrt/config.
func GetConfigPath() (string, error) {
	if configPath := os.Getenv("WRT_CONFIG"); configPath != "" {
		return configPath, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".wrt", "config"), nil
}

// StateDir returns the directory device state is persisted in: state.dir
// when set, otherwise "state" beside the config file.
func StateDir(c *Config) (string, error) {
	if dir := DefaultSchema().Resolve(c, "state.dir"); dir != "" {
		return dir, nil
	}
	configPath, err := GetConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(configPath), "state"), nil
}

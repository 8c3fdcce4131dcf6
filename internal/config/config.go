package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PathServer holds all configuration for the path server.
type PathServer struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Security: bcrypt hash of the admin token guarding /admin endpoints.
	// Empty disables the admin surface.
	AdminTokenHash string `yaml:"admin_token_hash"`

	// Database
	Database DatabaseConfig `yaml:"database"`

	// Search defaults applied to requests that leave an option unset.
	Search SearchDefaults `yaml:"search"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// SearchDefaults are the per-request search option fallbacks.
type SearchDefaults struct {
	PlainCost       int     `yaml:"plain_cost"`
	SwampCost       int     `yaml:"swamp_cost"`
	MaxRooms        int     `yaml:"max_rooms"`
	MaxOps          int     `yaml:"max_ops"`
	HeuristicWeight float64 `yaml:"heuristic_weight"`
}

// DefaultPathServer returns PathServer config with sensible defaults.
func DefaultPathServer() PathServer {
	return PathServer{
		BindAddress: "0.0.0.0",
		Port:        8420,
		LogLevel:    "info",
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "wayfinder",
			Password: "wayfinder",
			DBName:   "wayfinder",
			SSLMode:  "disable",
		},
		Search: SearchDefaults{
			PlainCost:       1,
			SwampCost:       5,
			MaxRooms:        16,
			MaxOps:          20000,
			HeuristicWeight: 1.2,
		},
	}
}

// LoadPathServer loads path server config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadPathServer(path string) (PathServer, error) {
	cfg := DefaultPathServer()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// Package pathutil provides centralized path management for the park ledger data files.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultDatabaseName is the database file created under the data root.
const DefaultDatabaseName = "park.db"

// PathResolver manages paths derived from the data root.
type PathResolver struct {
	dataRoot     string
	databasePath string
	rulesPath    string
}

// Config represents the configuration for PathResolver.
type Config struct {
	// DataRoot is the root directory for ledger data (e.g., /var/lib/park-ledger)
	DataRoot string
	// DatabasePath is the SQLite database holding the ledger and operational tables
	DatabasePath string
	// RulesPath is an optional YAML rules override
	RulesPath string
}

// New creates a new PathResolver with the given configuration.
// If DatabasePath is empty, it defaults to {DataRoot}/park.db.
// A relative RulesPath is resolved against DataRoot.
func New(config Config) *PathResolver {
	dbPath := config.DatabasePath
	if dbPath == "" {
		dbPath = filepath.Join(config.DataRoot, DefaultDatabaseName)
	}

	rulesPath := config.RulesPath
	if rulesPath != "" && !filepath.IsAbs(rulesPath) {
		rulesPath = filepath.Join(config.DataRoot, rulesPath)
	}

	return &PathResolver{
		dataRoot:     config.DataRoot,
		databasePath: dbPath,
		rulesPath:    rulesPath,
	}
}

// GetDataRoot returns the data root directory.
func (p *PathResolver) GetDataRoot() string {
	return p.dataRoot
}

// GetDatabasePath returns the database file path.
func (p *PathResolver) GetDatabasePath() string {
	return p.databasePath
}

// GetRulesPath returns the rules file path, or "" for the embedded defaults.
func (p *PathResolver) GetRulesPath() string {
	return p.rulesPath
}

// EnsureDir creates a directory if it doesn't exist.
// It creates all parent directories as needed (like mkdir -p).
func (p *PathResolver) EnsureDir(dirPath string) error {
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dirPath, err)
	}
	return nil
}

// EnsureDataRoot ensures the data root and the database's parent directory exist.
func (p *PathResolver) EnsureDataRoot() error {
	if err := p.EnsureDir(p.dataRoot); err != nil {
		return err
	}
	return p.EnsureDir(filepath.Dir(p.databasePath))
}

// FileExists checks if a file exists.
func (p *PathResolver) FileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}

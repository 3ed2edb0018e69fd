package backend

import (
	"fmt"

	"expenseflow/internal/config"
	"expenseflow/internal/log"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config, logger *log.Logger) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	cfg := Config{
		Type:            BackendType(appConfig.DataBackend),
		Allocator:       AllocatorType(appConfig.IDAllocator),
		APIKey:          appConfig.GoogleSheetsAPIKey,
		SpreadsheetID:   appConfig.GoogleSheetID,
		SheetName:       appConfig.GoogleSheetName,
		UpstreamTimeout: appConfig.UpstreamTimeout,
		MemorySeedFile:  appConfig.MemorySeedFile,
		SQLiteDBPath:    appConfig.SQLiteDBPath,
		Logger:          logger,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates the backend configuration. Missing Google credentials
// are allowed.
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if !c.Allocator.IsValid() {
		return fmt.Errorf("invalid id allocator: %s", c.Allocator)
	}
	if c.Allocator == SQLiteAllocator && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for the sqlite id allocator")
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SheetsBackend, MemoryBackend}
}

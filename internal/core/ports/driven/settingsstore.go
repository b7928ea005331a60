package driven

import "github.com/custodia-labs/docqa-cli/internal/core/domain"

// SettingsStore persists application settings.
// Implementations handle storage (e.g., TOML files) and defaulting.
type SettingsStore interface {
	// Load reads settings from storage, filling gaps with defaults.
	Load() (domain.AppSettings, error)

	// Save persists settings to storage.
	Save(settings domain.AppSettings) error

	// Path returns the settings file path.
	Path() string
}

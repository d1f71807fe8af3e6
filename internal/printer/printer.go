// Package printer renders settings and diagnostics in different formats.
package printer

import (
	"github.com/alpack/alpack/internal/config"
	"github.com/alpack/alpack/internal/model"
)

// Printer knows how to print application information in different formats.
type Printer interface {
	PrintSettings(settings config.Settings) error
	PrintSettingsChange(key, oldValue, newValue string) error
	PrintChecks(checks []model.CheckResult) error
}

// settingsRows flattens settings into ordered key/value pairs so every
// format lists them the same way.
func settingsRows(settings config.Settings) [][2]string {
	return [][2]string{
		{"default_mirror", settings.DefaultMirror},
		{"cache_dir", settings.CacheDir},
		{"rootfs_dir", settings.RootfsDir},
		{"backend", settings.Backend},
		{"release", settings.Release},
		{"output_dir", settings.OutputDir},
	}
}

package printer

import (
	"encoding/json"
	"io"

	"github.com/alpack/alpack/internal/config"
	"github.com/alpack/alpack/internal/model"
)

// JSONPrinter prints application information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// settingsOutput represents the settings output.
type settingsOutput struct {
	DefaultMirror string `json:"default_mirror"`
	CacheDir      string `json:"cache_dir"`
	RootfsDir     string `json:"rootfs_dir"`
	Backend       string `json:"backend"`
	Release       string `json:"release"`
	OutputDir     string `json:"output_dir"`
}

// settingsChangeOutput represents a single settings update.
type settingsChangeOutput struct {
	Key      string `json:"key"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// checkOutput represents a single environment check result.
type checkOutput struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// PrintSettings prints the settings in JSON format.
func (j *JSONPrinter) PrintSettings(settings config.Settings) error {
	output := settingsOutput{
		DefaultMirror: settings.DefaultMirror,
		CacheDir:      settings.CacheDir,
		RootfsDir:     settings.RootfsDir,
		Backend:       settings.Backend,
		Release:       settings.Release,
		OutputDir:     settings.OutputDir,
	}
	return j.encode(output)
}

// PrintSettingsChange prints a single settings update in JSON format.
func (j *JSONPrinter) PrintSettingsChange(key, oldValue, newValue string) error {
	return j.encode(settingsChangeOutput{Key: key, OldValue: oldValue, NewValue: newValue})
}

// PrintChecks prints environment check results in JSON format.
func (j *JSONPrinter) PrintChecks(checks []model.CheckResult) error {
	items := make([]checkOutput, len(checks))
	for i, c := range checks {
		items[i] = checkOutput{
			ID:      c.ID,
			Status:  string(c.Status),
			Message: c.Message,
		}
	}
	return j.encode(items)
}

func (j *JSONPrinter) encode(v interface{}) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

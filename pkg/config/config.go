package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var DebugLog func(string, ...interface{})

// Settings holds tool-level configuration: where runs are tracked and where
// prepared instances get exported. Experiment hyperparameters live in a
// separate experiment file (see Experiment).
type Settings struct {
	DefaultSettings DefaultSettings `yaml:"default_settings"`
	Database        Database        `yaml:"database"`
	Elastic         Elastic         `yaml:"elastic"`
}

type DefaultSettings struct {
	// Timeout bounds a whole preparation run, in minutes.
	Timeout int `yaml:"timeout"`
}

type Database struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type Elastic struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Index    string `yaml:"index"`
}

type Manager struct {
	settings     *Settings
	settingsPath string
}

func NewManager(settingsPath string) *Manager {
	return &Manager{
		settingsPath: settingsPath,
	}
}

// LoadSettings reads the tool settings file. A missing file is not an error:
// the tool runs fine with tracking and export disabled.
func (m *Manager) LoadSettings() error {
	if m.settingsPath == "" {
		m.settingsPath = m.findSettingsFile()
	}

	if DebugLog != nil {
		DebugLog("loading tool settings from %s", m.settingsPath)
	}

	settings := defaultSettings()

	if _, err := os.Stat(m.settingsPath); os.IsNotExist(err) {
		if DebugLog != nil {
			DebugLog("no settings file found, using defaults (database and elastic disabled)")
		}
		m.settings = settings
		return nil
	}

	data, err := os.ReadFile(m.settingsPath)
	if err != nil {
		return fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, settings); err != nil {
		return fmt.Errorf("failed to parse settings file: %w", err)
	}

	if err := m.validateSettings(settings); err != nil {
		return fmt.Errorf("settings validation failed: %w", err)
	}

	m.settings = settings
	return nil
}

func (m *Manager) GetSettings() *Settings {
	return m.settings
}

func defaultSettings() *Settings {
	return &Settings{
		DefaultSettings: DefaultSettings{Timeout: 30},
	}
}

func (m *Manager) findSettingsFile() string {
	if _, err := os.Stat("sharcprep.yaml"); err == nil {
		return "sharcprep.yaml"
	}

	if _, err := os.Stat("configs/sharcprep.yaml"); err == nil {
		return "configs/sharcprep.yaml"
	}

	return filepath.Join(GetConfigDir(), "sharcprep.yaml")
}

func (m *Manager) validateSettings(settings *Settings) error {
	if settings.DefaultSettings.Timeout <= 0 {
		return fmt.Errorf("timeout must be greater than 0")
	}

	if settings.Database.Enabled && settings.Database.Host == "" {
		return fmt.Errorf("database is enabled but no host is set")
	}

	if settings.Elastic.Enabled && settings.Elastic.URL == "" {
		return fmt.Errorf("elastic is enabled but no url is set")
	}

	return nil
}

package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config represents the application configuration.
type Config struct {
	App   ApplicationConfig `yaml:"app"`
	Vault VaultConfig       `yaml:"vault"`
	Git   GitConfig         `yaml:"git"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	return c.Git.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// VaultConfig holds the vault location and the identity stamped into
// new notes.
type VaultConfig struct {
	Path   string `yaml:"path"`
	Author string `yaml:"author"`
	Editor string `yaml:"editor"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Author, validation.Required),
	)
}

// GitConfig controls the version control policy applied after each
// mutating operation.
type GitConfig struct {
	Autocommit bool `yaml:"autocommit"`
	Autosync   bool `yaml:"autosync"`
}

// Validate validates the git configuration.
func (c *GitConfig) Validate() error {
	if c.Autosync && !c.Autocommit {
		return fmt.Errorf("git: autosync requires autocommit")
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Vault: VaultConfig{
			Path:   filepath.Join(home, "zettelkasten"),
			Author: os.Getenv("USER"),
		},
	}
}

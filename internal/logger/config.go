package logger

import (
	"os"
	"strconv"
)

// Config holds logging configuration
type Config struct {
	Level          string `yaml:"level" toml:"level"`
	ConsoleEnabled bool   `yaml:"console_enabled" toml:"console_enabled"`
	ConsoleFormat  string `yaml:"console_format" toml:"console_format"`
	FileEnabled    bool   `yaml:"file_enabled" toml:"file_enabled"`
	FilePath       string `yaml:"file_path" toml:"file_path"`
	FileFormat     string `yaml:"file_format" toml:"file_format"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb" toml:"file_max_size_mb"`
	FileMaxBackups int    `yaml:"file_max_backups" toml:"file_max_backups"`
	FileMaxAgeDays int    `yaml:"file_max_age_days" toml:"file_max_age_days"`
}

// DefaultConfig returns the logging defaults. The console only reports
// warnings unless verbose logging is requested.
func DefaultConfig() Config {
	return Config{
		Level:          "WARN",
		ConsoleEnabled: true,
		ConsoleFormat:  "text",
		FileEnabled:    false,
		FilePath:       "logs/podctl.log",
		FileFormat:     "text",
		FileMaxSizeMB:  10,
		FileMaxBackups: 5,
		FileMaxAgeDays: 30,
	}
}

// ApplyEnv applies environment variable overrides
func (c *Config) ApplyEnv() {
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Level = logLevel
	}

	if consoleFormat := os.Getenv("LOG_CONSOLE_FORMAT"); consoleFormat != "" {
		c.ConsoleFormat = consoleFormat
	}

	if fileEnabled := os.Getenv("LOG_FILE_ENABLED"); fileEnabled != "" {
		if enabled, err := strconv.ParseBool(fileEnabled); err == nil {
			c.FileEnabled = enabled
		}
	}

	if filePath := os.Getenv("LOG_FILE_PATH"); filePath != "" {
		c.FilePath = filePath
	}
}

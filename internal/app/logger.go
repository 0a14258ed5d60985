package app

import (
	"strings"

	"github.com/charlesng35/clinic/pkg/logger"
)

// ConfigureLogging initialises the global logger from the server section, defaulting to info level
// and JSON output.
func ConfigureLogging(cfg ServerConfig) error {
	level := strings.TrimSpace(cfg.LogLevel)
	if level == "" {
		level = "info"
	}
	format := strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	if format == "" {
		format = "json"
	}
	return logger.InitWithFormat(level, format)
}

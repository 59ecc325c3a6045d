package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/multierr"

	"github.com/conneroisu/hotplate/internal/errors"
	"github.com/conneroisu/hotplate/internal/logging"
)

var hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// Err folds every validation error into one config error, or returns nil.
func (vr *ValidationResult) Err() error {
	if !vr.HasErrors() {
		return nil
	}
	var causes error
	for i := range vr.Errors {
		causes = multierr.Append(causes, &vr.Errors[i])
	}
	return errors.Wrap(causes, errors.ErrorTypeConfig, errors.ErrCodeConfigInvalid,
		fmt.Sprintf("invalid configuration (%d problem(s))", len(vr.Errors)))
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("      hint: %s\n", suggestion))
			}
		}
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("Validation warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("      hint: %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

// Validate checks every section of cfg.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	validateTemplates(&cfg.Templates, result)
	validateDevelopment(&cfg.Development, result)
	validateServer(&cfg.Server, result)
	validateLog(&cfg.Log, result)

	return result
}

func validateTemplates(cfg *TemplatesConfig, result *ValidationResult) {
	if strings.TrimSpace(cfg.Root) == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "templates.root",
			Value:       cfg.Root,
			Message:     "template root cannot be empty",
			Suggestions: []string{"Use './templates' or the directory holding your templates"},
		})
	} else if info, err := os.Stat(cfg.Root); err != nil || !info.IsDir() {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "templates.root",
			Value:   cfg.Root,
			Message: "template root does not exist or is not a directory",
		})
	}

	for _, pattern := range cfg.Patterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:       "templates.patterns",
				Value:       pattern,
				Message:     fmt.Sprintf("invalid glob pattern %q", pattern),
				Suggestions: []string{"Patterns match base names, e.g. '*.html' or '*.txt'"},
			})
		}
	}
}

func validateDevelopment(cfg *DevelopmentConfig, result *ValidationResult) {
	if cfg.Debounce <= 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "development.debounce",
			Value:       cfg.Debounce,
			Message:     "debounce must be positive",
			Suggestions: []string{"The default of 100ms suits most editors"},
		})
	}
}

func validateServer(cfg *ServerConfig, result *ValidationResult) {
	// Port 0 asks the system for a free port.
	if cfg.Port < 0 || cfg.Port > 65535 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.port",
			Value:   cfg.Port,
			Message: fmt.Sprintf("port %d is not in valid range 0-65535", cfg.Port),
			Suggestions: []string{
				"Use a port between 1024-65535 for non-privileged access",
				"Port 0 allows system to assign an available port",
			},
		})
	} else if cfg.Port > 0 && cfg.Port < 1024 {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "server.port",
			Value:   cfg.Port,
			Message: "port below 1024 requires elevated privileges",
		})
	}

	if cfg.Host != "" {
		if err := validateHostname(cfg.Host); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.host",
				Value:   cfg.Host,
				Message: err.Error(),
				Suggestions: []string{
					"Use 'localhost' for local development",
					"Use '0.0.0.0' to bind to all interfaces",
				},
			})
		}
	}
}

func validateLog(cfg *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(cfg.Level); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "log.level",
			Value:       cfg.Level,
			Message:     err.Error(),
			Suggestions: []string{"Use one of debug, info, warn, error"},
		})
	}
	if cfg.Format != "text" && cfg.Format != "json" {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "log.format",
			Value:       cfg.Format,
			Message:     fmt.Sprintf("unknown log format %q", cfg.Format),
			Suggestions: []string{"Use 'text' or 'json'"},
		})
	}
}

func validateHostname(host string) error {
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("contains dangerous character: %s", char)
		}
	}

	if net.ParseIP(host) != nil || host == "localhost" {
		return nil
	}
	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format")
	}
	return nil
}

package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ConfigurationError describes why a configuration file could not be used.
type ConfigurationError struct {
	FilePath  string `json:"filePath"`
	FileName  string `json:"fileName"`
	ErrorType string `json:"errorType"` // io, parse or validation
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
}

// Error implements the error interface
func (ce ConfigurationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", ce.ErrorType, ce.FileName, ce.Message)
}

// DetailedError returns a multi-line description including the full path.
func (ce ConfigurationError) DetailedError() string {
	parts := []string{
		fmt.Sprintf("Configuration Error in %s", ce.FileName),
		fmt.Sprintf("  File: %s", ce.FilePath),
		fmt.Sprintf("  Type: %s", ce.ErrorType),
		fmt.Sprintf("  Error: %s", ce.Message),
	}
	if ce.Details != "" {
		parts = append(parts, fmt.Sprintf("  Details: %s", ce.Details))
	}
	return strings.Join(parts, "\n")
}

// NewConfigurationError creates a ConfigurationError for filePath.
func NewConfigurationError(filePath, errorType, message string) ConfigurationError {
	return ConfigurationError{
		FilePath:  filePath,
		FileName:  filepath.Base(filePath),
		ErrorType: errorType,
		Message:   message,
	}
}

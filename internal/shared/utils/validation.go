package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// String length limits
const (
	MaxIDLength      = 128
	MaxCommandLength = 4096
	MaxPathLength    = 4096
	MaxInputSize     = 1 * 1024 * 1024 // single write to a terminal
	MaxDimension     = 1000            // rows or cols
)

// ErrInvalidInput is wrapped by every validation failure.
var ErrInvalidInput = errors.New("invalid input")

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

var (
	// SafeIDPattern allows alphanumeric, dots, hyphens, underscores and colons
	SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._:-]+$`)
	// ToolIDPattern allows alphanumeric, hyphens, underscores, and dots (for service.tool format)
	ToolIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
)

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return invalidf("%s is required", fieldName)
	}

	if value == "" && !required {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return invalidf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return invalidf("%s must not exceed %d characters", fieldName, maxLen)
	}

	// Null bytes cannot cross into argv or paths.
	if strings.Contains(value, "\x00") {
		return invalidf("%s contains invalid characters", fieldName)
	}

	return nil
}

// ValidateID validates a client-chosen session or process id
func ValidateID(id, fieldName string) error {
	if err := ValidateString(id, fieldName, 1, MaxIDLength, true); err != nil {
		return err
	}

	if !SafeIDPattern.MatchString(id) {
		return invalidf("%s contains invalid characters (only alphanumeric, dots, colons, hyphens, and underscores allowed)", fieldName)
	}

	return nil
}

// ValidateToolID validates a tool ID field (allows dots for service.tool format)
func ValidateToolID(id, fieldName string) error {
	if err := ValidateString(id, fieldName, 1, MaxIDLength, true); err != nil {
		return err
	}

	if !ToolIDPattern.MatchString(id) {
		return invalidf("%s contains invalid characters (only alphanumeric, dots, hyphens, and underscores allowed)", fieldName)
	}

	return nil
}

// ValidateCommand validates an executable name and its arguments
func ValidateCommand(command string, args []string) error {
	if err := ValidateString(command, "command", 1, MaxCommandLength, true); err != nil {
		return err
	}
	for i, arg := range args {
		if err := ValidateString(arg, fmt.Sprintf("args[%d]", i), 0, MaxCommandLength, false); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePath validates an optional filesystem path
func ValidatePath(path, fieldName string, required bool) error {
	return ValidateString(path, fieldName, 1, MaxPathLength, required)
}

// ValidateDimensions validates terminal rows and cols. Zero means "use the
// default" and is accepted.
func ValidateDimensions(rows, cols int) error {
	if rows < 0 || cols < 0 {
		return invalidf("dimensions must not be negative (rows=%d, cols=%d)", rows, cols)
	}
	if rows > MaxDimension || cols > MaxDimension {
		return invalidf("dimensions must not exceed %d (rows=%d, cols=%d)", MaxDimension, rows, cols)
	}
	return nil
}

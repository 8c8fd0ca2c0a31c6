package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"mediagrab/downloader"
)

// EnvValidator handles validation of typed environment variables
type EnvValidator struct{}

// NewEnvValidator creates a new environment validator instance
func NewEnvValidator() *EnvValidator {
	return &EnvValidator{}
}

// ValidateFormats checks that every set variable parses as its type.
// Returns an error naming all invalid variables.
func (e *EnvValidator) ValidateFormats() error {
	var invalidVars []string

	if value := os.Getenv(EnvPlatform); value != "" {
		if _, err := downloader.ParsePlatform(value); err != nil {
			invalidVars = append(invalidVars, EnvPlatform)
		}
	}
	if value := os.Getenv(EnvMediaType); value != "" {
		if _, err := downloader.ParseMediaType(value); err != nil {
			invalidVars = append(invalidVars, EnvMediaType)
		}
	}
	if value := os.Getenv(EnvFlatPlaylist); value != "" {
		if _, err := strconv.ParseBool(value); err != nil {
			invalidVars = append(invalidVars, EnvFlatPlaylist)
		}
	}
	if value := os.Getenv(EnvProgressInterval); value != "" {
		if d, err := time.ParseDuration(value); err != nil || d <= 0 {
			invalidVars = append(invalidVars, EnvProgressInterval)
		}
	}

	if len(invalidVars) > 0 {
		return fmt.Errorf("invalid environment variables: %v. Please check their values in your .env file or environment", invalidVars)
	}
	return nil
}

// GetBool returns a boolean variable; ok is false when unset or invalid
func (e *EnvValidator) GetBool(name string) (value bool, ok bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return value, true
}

// GetDuration returns a positive duration variable; ok is false when unset
// or invalid
func (e *EnvValidator) GetDuration(name string) (time.Duration, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, false
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

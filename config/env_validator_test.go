package config

import (
	"strings"
	"testing"
	"time"
)

func TestEnvValidator_ValidateFormats(t *testing.T) {
	tests := []struct {
		name        string
		envVars     map[string]string
		expectError bool
		invalid     []string
	}{
		{
			name:    "nothing set",
			envVars: map[string]string{},
		},
		{
			name: "all valid",
			envVars: map[string]string{
				EnvPlatform:         "bandcamp",
				EnvMediaType:        "mp3",
				EnvFlatPlaylist:     "1",
				EnvProgressInterval: "750ms",
			},
		},
		{
			name: "several invalid",
			envVars: map[string]string{
				EnvPlatform:         "myspace",
				EnvMediaType:        "audio",
				EnvFlatPlaylist:     "nope",
				EnvProgressInterval: "0s",
			},
			expectError: true,
			invalid:     []string{EnvPlatform, EnvFlatPlaylist, EnvProgressInterval},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			err := NewEnvValidator().ValidateFormats()
			if !tt.expectError {
				if err != nil {
					t.Errorf("expected no error but got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error but got none")
			}
			for _, name := range tt.invalid {
				if !strings.Contains(err.Error(), name) {
					t.Errorf("expected %s in error %q", name, err.Error())
				}
			}
			if strings.Contains(err.Error(), EnvMediaType) {
				t.Errorf("valid %s reported as invalid: %q", EnvMediaType, err.Error())
			}
		})
	}
}

func TestEnvValidator_Getters(t *testing.T) {
	isolateEnv(t)
	v := NewEnvValidator()

	if _, ok := v.GetBool(EnvFlatPlaylist); ok {
		t.Error("unset bool should not be ok")
	}
	t.Setenv(EnvFlatPlaylist, " true ")
	if value, ok := v.GetBool(EnvFlatPlaylist); !ok || !value {
		t.Errorf("GetBool = %v, %v", value, ok)
	}
	t.Setenv(EnvFlatPlaylist, "maybe")
	if _, ok := v.GetBool(EnvFlatPlaylist); ok {
		t.Error("invalid bool should not be ok")
	}

	if _, ok := v.GetDuration(EnvProgressInterval); ok {
		t.Error("unset duration should not be ok")
	}
	t.Setenv(EnvProgressInterval, "1s")
	if d, ok := v.GetDuration(EnvProgressInterval); !ok || d != time.Second {
		t.Errorf("GetDuration = %v, %v", d, ok)
	}
	t.Setenv(EnvProgressInterval, "-5ms")
	if _, ok := v.GetDuration(EnvProgressInterval); ok {
		t.Error("negative duration should not be ok")
	}
}

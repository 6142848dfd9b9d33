package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestNewLogger_Levels tests that the configured level is applied
func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		dev   bool
		debug bool
		warn  bool
	}{
		{"debug", false, true, true},
		{"info", false, false, true},
		{"warn", true, false, true},
		{"error", true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			// Act
			logger, err := NewLogger(tt.level, tt.dev)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, tt.debug, logger.Core().Enabled(zap.DebugLevel))
			assert.Equal(t, tt.warn, logger.Core().Enabled(zap.WarnLevel))
		})
	}
}

// TestNewLogger_InvalidLevel tests that an unknown level is rejected
func TestNewLogger_InvalidLevel(t *testing.T) {
	// Act
	_, err := NewLogger("loud", false)

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

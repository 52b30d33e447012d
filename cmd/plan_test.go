package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatPlan(t *testing.T) {
	tests := []struct {
		name     string
		order    []string
		expected string
	}{
		{
			name:     "empty order",
			order:    nil,
			expected: "Startup order:",
		},
		{
			name:     "single task",
			order:    []string{"settings"},
			expected: "Startup order:\n  1. settings",
		},
		{
			name:     "numbered in resolution order",
			order:    []string{"settings", "database", "player_state"},
			expected: "Startup order:\n  1. settings\n  2. database\n  3. player_state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatPlan(tt.order))
		})
	}
}

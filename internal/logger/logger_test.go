package logger

import (
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestSetLevel(t *testing.T) {
	defer Logger.SetLevel(Logger.GetLevel())

	tests := []struct {
		input string
		ok    bool
		want  log.Level
	}{
		{"debug", true, log.DebugLevel},
		{" WARNING ", true, log.WarnLevel},
		{"error", true, log.ErrorLevel},
		{"info", true, log.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.ok, SetLevel(tt.input))
			assert.Equal(t, tt.want, Logger.GetLevel())
		})
	}

	Logger.SetLevel(log.ErrorLevel)
	assert.False(t, SetLevel(""))
	assert.False(t, SetLevel("verbose"))
	assert.Equal(t, log.ErrorLevel, Logger.GetLevel(), "unknown names leave the level alone")
}

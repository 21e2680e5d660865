package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		env   string
		debug bool
		info  bool
	}{
		{Local, true, true},
		{Development, false, true},
		{Production, false, true},
		{"staging", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			l, err := New(tt.env)
			require.NoError(t, err)
			assert.Equal(t, tt.debug, l.Core().Enabled(zapcore.DebugLevel))
			assert.Equal(t, tt.info, l.Core().Enabled(zapcore.InfoLevel))
		})
	}
}

package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"dev", "test", "prod"} {
		l, err := NewLogger(env)
		require.NoError(t, err, env)
		assert.NotNil(t, l, env)
	}
}

func TestGetLogger(t *testing.T) {
	logger = nil
	assert.NotNil(t, GetLogger())

	l, err := InitLogger("test")
	require.NoError(t, err)
	assert.Same(t, l, GetLogger())
}

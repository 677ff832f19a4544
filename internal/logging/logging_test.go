package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	log, err := New("info", "json")
	require.NoError(t, err)
	require.NotNil(t, log)
	log.Info("structured logger is live")

	log, err = New("debug", "console")
	require.NoError(t, err)
	require.NotNil(t, log)
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("verbose", "json")
	assert.Error(t, err)
}

func TestNew_InvalidFormat(t *testing.T) {
	_, err := New("info", "xml")
	assert.Error(t, err)
}

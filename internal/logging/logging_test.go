package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	t.Setenv("DEBUG", "")
	var buf bytes.Buffer
	logger, err := NewWithOutput(&buf, "warn", "json")
	require.NoError(t, err)

	logger.WithField("animal_id", "monty").Info("hidden")
	logger.WithField("animal_id", "monty").Warn("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "monty", entry["animal_id"])
}

func TestNewText(t *testing.T) {
	t.Setenv("DEBUG", "")
	var buf bytes.Buffer
	logger, err := NewWithOutput(&buf, "", "text")
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())

	logger.Info("hello")
	assert.Contains(t, buf.String(), `msg=hello`)
}

func TestDebugEnvironmentForcesDebug(t *testing.T) {
	t.Setenv("DEBUG", "true")
	logger, err := NewWithOutput(&bytes.Buffer{}, "error", "json")
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	_, err := New("loud", "json")
	assert.Error(t, err)
	_, err = New("info", "xml")
	assert.Error(t, err)
}

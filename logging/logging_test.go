package logging

import (
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("", false)
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, lvl)

	lvl, err = ParseLevel("warn", false)
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, lvl)

	lvl, err = ParseLevel("error", true)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, lvl, "debug flag wins over the configured level")

	_, err = ParseLevel("loud", false)
	assert.Error(t, err)
}

func TestInitLoggerReconfigures(t *testing.T) {
	l := InitLogger(logrus.DebugLevel, "json")
	assert.Same(t, l, GetLogger())
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, l.Formatter)

	InitLogger(logrus.InfoLevel, "text")
	assert.Equal(t, logrus.InfoLevel, GetLogger().GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, GetLogger().Formatter)
}

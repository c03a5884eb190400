package logger

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
		SetLevel("INFO")
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{
		"debug": LevelDebug, "INFO": LevelInfo, "": LevelInfo,
		"Warn": LevelWarn, "warning": LevelWarn, "ERROR": LevelError,
	} {
		got, err := ParseLevel(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("trace")
	assert.Error(t, err)
}

func TestThreshold(t *testing.T) {
	buf := capture(t)

	SetLevel("WARN")
	Debugf("d")
	Infof("i")
	Warnf("w %d", 1)
	Errorf("e")
	assert.Equal(t, "[WARN] w 1\n[ERROR] e\n", buf.String())

	buf.Reset()
	SetLevel("DEBUG")
	Debugf("d")
	assert.Equal(t, "[DEBUG] d\n", buf.String())
}

func TestSetLevel_UnknownFallsBackToInfo(t *testing.T) {
	buf := capture(t)

	SetLevel("loud")
	buf.Reset()
	Debugf("hidden")
	Infof("shown")
	assert.Equal(t, "[INFO] shown\n", buf.String())
}

func TestSkipf_IgnoresThreshold(t *testing.T) {
	buf := capture(t)

	SetLevel("ERROR")
	Warnf("hidden")
	Skipf("skipping entry %d", 3)
	assert.Equal(t, "[WARN] skipping entry 3\n", buf.String())
}

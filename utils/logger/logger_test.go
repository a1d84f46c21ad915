package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLevelFiltering(t *testing.T) {
	Init(Config{Level: "warn"})
	var buf bytes.Buffer
	SetOutput(&buf)

	Infof("provisioning %s", "ods.orders")
	assert.Empty(t, buf.String())

	Warnf("binlog_format is %s", "MIXED")
	assert.Contains(t, buf.String(), "binlog_format is MIXED")
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	Init(Config{Level: "verbose"})
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestWithFields(t *testing.T) {
	Init(Config{Level: "debug"})
	var buf bytes.Buffer
	SetOutput(&buf)

	l := With(map[string]string{"run_id": "01ABC"})
	l.Info().Msg("task started")
	assert.Contains(t, buf.String(), `"run_id":"01ABC"`)
}

package logging_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/tabparse/internal/logging"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(
		logging.WithFormat(logging.FormatJSON),
		logging.WithOutput(&buf),
		logging.WithAttr(logging.Component("ingest")),
	)

	log.Info("hello", "records", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "ingest", entry["component"])
	assert.Equal(t, float64(3), entry["records"])
}

func TestNew_TextAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(logging.WithOutput(&buf), logging.WithLevel(slog.LevelWarn))

	log.Info("dropped")
	assert.Empty(t, buf.String())

	log.Warn("kept", logging.Error(errors.New("boom")))
	assert.Contains(t, buf.String(), "msg=kept")
	assert.Contains(t, buf.String(), "error=boom")
}

func TestNew_NilOutputIgnored(t *testing.T) {
	assert.NotPanics(t, func() {
		logging.New(logging.WithOutput(nil)).Debug("x")
	})
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := logging.ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := logging.ParseLevel("loud")
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := logging.ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, logging.FormatJSON, f)

	f, err = logging.ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, logging.FormatText, f)

	_, err = logging.ParseFormat("xml")
	assert.Error(t, err)
}

func TestError_Nil(t *testing.T) {
	assert.True(t, logging.Error(nil).Equal(slog.Attr{}))
}

package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(Options{Name: "test", Level: "debug", Output: &buf, JSON: true})

	log.Info("container started",
		String("url", "mongodb://localhost:32768/spacex"),
		Int("mapped_port", 32768),
		Duration("elapsed", 1500*time.Millisecond),
		Error(errors.New("boom")))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "container started", entry["@message"])
	assert.Equal(t, "test", entry["@module"])
	assert.Equal(t, "mongodb://localhost:32768/spacex", entry["url"])
	assert.InDelta(t, 32768, entry["mapped_port"], 0)
	assert.Equal(t, "1.5s", entry["elapsed"])
	assert.Equal(t, "boom", entry["error"])
}

func TestNew_LevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(Options{Level: "warn", Output: &buf})

	log.Debug("hidden")
	log.Info("hidden too")
	assert.Empty(t, buf.String())

	log.Warn("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestNew_InvalidLevelDefaultsToInfo(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(Options{Level: "chatty", Output: &buf})

	log.Debug("hidden")
	assert.Empty(t, buf.String())

	log.Info("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestWithAndNamed(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(Options{Name: "root", Output: &buf, JSON: true}).
		Named("seeder").
		With(String("database", "auth"))

	log.Info("seeded")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "root.seeder", entry["@module"])
	assert.Equal(t, "auth", entry["database"])
}

func TestError_Nil(t *testing.T) {
	t.Parallel()

	f := Error(nil)
	assert.Equal(t, "error", f.Key)
	assert.Nil(t, f.Value)
}

func TestNewNop(t *testing.T) {
	t.Parallel()

	log := NewNop()
	assert.NotPanics(t, func() {
		log.Error("discarded", Error(errors.New("x")))
		log.With(Int("n", 1)).Named("child").Info("discarded")
	})
}

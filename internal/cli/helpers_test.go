package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/aretw0/scenaria/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogCompletion(t *testing.T) {
	var buf bytes.Buffer
	LogCompletion(&buf, "welcome", nil, nil)
	assert.Equal(t, ">>> Stopped at 'welcome' phase.\n", buf.String())

	buf.Reset()
	LogCompletion(&buf, "welcome", context.Canceled, os.Interrupt)
	assert.Equal(t, "[CTRL+C]\n>>> Interrupted at 'welcome' phase.\n", buf.String())

	buf.Reset()
	LogCompletion(&buf, "welcome", context.Canceled, syscall.SIGTERM)
	assert.Equal(t, "\n>>> Terminated at 'welcome' phase.\n", buf.String())
}

func TestLoadConfig(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("", "")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	require.NoError(t, os.WriteFile(config.DefaultPath, []byte("scenarios: ./lib\n"), 0644))
	cfg, err = LoadConfig("", "")
	require.NoError(t, err)
	assert.Equal(t, "./lib", cfg.Scenarios)

	cfg, err = LoadConfig("", "other")
	require.NoError(t, err)
	assert.Equal(t, "other", cfg.Scenarios)

	_, err = LoadConfig(filepath.Join("missing", "scenaria.yaml"), "")
	assert.Error(t, err)
}

func TestSignalContext_CancelledElsewhere(t *testing.T) {
	sc := NewSignalContext(context.Background())
	sc.Cancel()
	<-sc.Done()
	assert.Nil(t, sc.Signal())
}

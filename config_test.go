package opqueue

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "opqueue.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
store:
  path: /var/lib/app/opqueue.db
sync:
  cool_down_ms: 5000
  settle_delay_ms: 1500
  operation_delay_ms: 50
logging:
  level: debug
  format: text
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/app/opqueue.db", config.Store.Path)
	assert.Equal(t, 5000, config.Sync.CoolDownMs)
	assert.Equal(t, "debug", config.Logging.Level)

	opts := config.Options()
	assert.Equal(t, 5*time.Second, opts.CoolDown)
	assert.Equal(t, 1500*time.Millisecond, opts.SettleDelay)
	assert.Equal(t, 50*time.Millisecond, opts.OperationDelay)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestLoadConfigMalformed(t *testing.T) {
	path := writeConfig(t, "store: [not a mapping")
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestLoadConfigNegativeDelay(t *testing.T) {
	path := writeConfig(t, `
sync:
  cool_down_ms: -1
`)
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "cool_down_ms")
}

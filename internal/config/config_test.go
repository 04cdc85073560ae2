package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	config, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, "memory", config.Store.Backend)
	assert.Equal(t, "sqlite", config.Database.Driver)
	assert.Equal(t, 100, config.Session.MaxMessages)
	assert.Equal(t, time.Hour, time.Duration(config.Session.TTL))
	assert.Equal(t, 5*time.Minute, time.Duration(config.Approval.Timeout))
}

func TestLoadJSONCFile(t *testing.T) {
	dir := t.TempDir()
	content := `{
		// store selection
		"log_level": "debug",
		"store": {
			"backend": "etcd",
			"etcd_endpoints": ["localhost:2379"],
		},
		"session": {"max_messages": 20, "ttl": "30m"},
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agentgate.jsonc"), []byte(content), 0o644))

	config, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, "etcd", config.Store.Backend)
	assert.Equal(t, []string{"localhost:2379"}, config.Store.EtcdEndpoints)
	assert.Equal(t, 20, config.Session.MaxMessages)
	assert.Equal(t, 30*time.Minute, time.Duration(config.Session.TTL))
	// Fields the file does not set keep their defaults.
	assert.Equal(t, "sqlite", config.Database.Driver)
}

func TestLoadInvalidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agentgate.json"), []byte("{not json"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AGENTGATE_LOG_LEVEL", "warn")
	t.Setenv("AGENTGATE_STORE_BACKEND", "etcd")
	t.Setenv("AGENTGATE_ETCD_ENDPOINTS", "a:2379,b:2379")
	t.Setenv("AGENTGATE_DB_DRIVER", "postgres")
	t.Setenv("AGENTGATE_DB_DSN", "host=localhost dbname=agentgate")
	t.Setenv("AGENTGATE_SESSION_MAX_MESSAGES", "5")
	t.Setenv("AGENTGATE_APPROVAL_TIMEOUT", "90s")

	config, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "warn", config.LogLevel)
	assert.Equal(t, "etcd", config.Store.Backend)
	assert.Equal(t, []string{"a:2379", "b:2379"}, config.Store.EtcdEndpoints)
	assert.Equal(t, "postgres", config.Database.Driver)
	assert.Equal(t, "host=localhost dbname=agentgate", config.Database.DSN)
	assert.Equal(t, 5, config.Session.MaxMessages)
	assert.Equal(t, 90*time.Second, time.Duration(config.Approval.Timeout))
}

func TestEnvOverridesBeatFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agentgate.json"), []byte(`{"log_level": "debug"}`), 0o644))
	t.Setenv("AGENTGATE_LOG_LEVEL", "error")

	config, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "error", config.LogLevel)
}

func TestDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("AGENTGATE_DB_DRIVER=postgres\n"), 0o644))
	t.Setenv("AGENTGATE_DB_DRIVER", "")
	os.Unsetenv("AGENTGATE_DB_DRIVER")

	config, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "postgres", config.Database.Driver)
}

func TestSessionDefaults(t *testing.T) {
	config := Default()
	config.Session.MaxMessages = 7
	config.Session.TTL = Duration(2 * time.Hour)

	defaults := config.SessionDefaults()
	assert.Equal(t, 7, defaults.MaxMessages)
	assert.Equal(t, 2*time.Hour, defaults.TTL)
}

func TestDurationRoundTrip(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"90s"`)))
	assert.Equal(t, 90*time.Second, time.Duration(d))

	require.NoError(t, d.UnmarshalJSON([]byte(`1000000000`)))
	assert.Equal(t, time.Second, time.Duration(d))

	assert.Error(t, d.UnmarshalJSON([]byte(`true`)))

	data, err := Duration(time.Minute).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1m0s"`, string(data))
}

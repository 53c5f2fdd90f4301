package app

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func clearDatasourceEnv(t *testing.T) {
	t.Helper()
	t.Setenv("NEON_DATABASE_URL", "")
	t.Setenv("ORDERDESK_DATASOURCE_URL", "")
}

func TestLoad_ApplicationTestYml(t *testing.T) {
	clearDatasourceEnv(t)
	v, err := Load("")
	require.NoError(t, err)
	// These values come from application_test.yml in the project root.
	assert.Equal(t, "sqlite3", v.GetString("datasource.driver"))
	assert.Equal(t, 18585, v.GetInt("server.port"))
	// Defaults fill in what the file does not set.
	assert.Equal(t, 50, v.GetInt("server.recent_limit"))
	assert.Equal(t, 5*time.Minute, v.GetDuration("datasource.conn_max_lifetime"))
}

func TestLoad_ExplicitFile(t *testing.T) {
	clearDatasourceEnv(t)
	file := filepath.Join(t.TempDir(), "custom.yml")
	require.NoError(t, os.WriteFile(file, []byte("server:\n  engine: fiber\ndatasource:\n  url: postgres://db/orders\n"), 0o600))

	v, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "fiber", v.GetString("server.engine"))
	assert.Equal(t, "postgres://db/orders", v.GetString("datasource.url"))
	assert.Equal(t, 8585, v.GetInt("server.port"))
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearDatasourceEnv(t)
	t.Setenv("ORDERDESK_SERVER_PORT", "9999")
	t.Setenv("ORDERDESK_LOG_LEVEL", "warn")
	t.Setenv("NEON_DATABASE_URL", "postgres://neon/orders")

	v, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9999, v.GetInt("server.port"))
	assert.Equal(t, "warn", v.GetString("log.level"))
	assert.Equal(t, "postgres://neon/orders", v.GetString("datasource.url"))

	t.Setenv("ORDERDESK_DATASOURCE_URL", "postgres://primary/orders")
	v, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://primary/orders", v.GetString("datasource.url"))
}

func TestConfig_Singleton(t *testing.T) {
	clearDatasourceEnv(t)
	cfg, cfgErr, cfgFile = nil, nil, ""
	once = sync.Once{}
	t.Cleanup(func() {
		cfg, cfgErr, cfgFile = nil, nil, ""
		once = sync.Once{}
	})

	res := Config()
	require.True(t, res.IsOk())
	assert.Same(t, res.MustGet(), Config().MustGet())
}

func TestConfig_ExplicitFileError(t *testing.T) {
	cfg, cfgErr = nil, nil
	once = sync.Once{}
	SetConfigFile(filepath.Join(t.TempDir(), "absent.yml"))
	t.Cleanup(func() {
		cfg, cfgErr, cfgFile = nil, nil, ""
		once = sync.Once{}
	})

	res := Config()
	require.True(t, res.IsError())
	assert.ErrorIs(t, res.Error(), ErrConfiguration)
}

func TestFindProjectRoot(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)
	root, ok := findProjectRoot(cwd)
	require.True(t, ok)
	assert.FileExists(t, filepath.Join(root, "go.mod"))
	assert.Equal(t, filepath.Dir(cwd), root)
}

func TestIsTestProcess(t *testing.T) {
	assert.True(t, isTestProcess())
}

func TestNewLogger(t *testing.T) {
	file := filepath.Join(t.TempDir(), "log.yml")
	require.NoError(t, os.WriteFile(file, []byte("log:\n  level: info\n  format: json\n"), 0o600))
	v, err := Load(file)
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := NewLogger(v, &buf)
	logger.Debug().Msg("hidden")
	logger.Info().Str("order", "42").Msg("saved")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	line := string(lines[0])
	assert.Equal(t, "saved", gjson.Get(line, "message").String())
	assert.Equal(t, "42", gjson.Get(line, "order").String())
	assert.Equal(t, "orderdesk", gjson.Get(line, "service").String())
	assert.Equal(t, "info", gjson.Get(line, "level").String())
}

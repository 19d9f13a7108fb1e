package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// clearEnv blanks variables an operator shell may export. viper treats
// empty values as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"API_TOKEN", "ENABLE_DELETE_ENDPOINT", "ENVIRONMENT"} {
		t.Setenv(key, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	s := Default()

	assert.Equal(t, "sqlite", s.Database.Driver)
	assert.Equal(t, 8080, s.Server.Port)
	assert.Equal(t, []string{"*"}, s.Server.CORSOrigins)
	assert.Equal(t, int64(1<<20), s.Server.MaxBodySize)
	assert.Empty(t, s.Auth.APIToken)
	assert.False(t, s.Features.EnableDeleteEndpoint)

	read, write, shutdown := s.Server.Timeouts()
	assert.Equal(t, "15s", read.String())
	assert.Equal(t, "1m0s", write.String())
	assert.Equal(t, "30s", shutdown.String())
	assert.Equal(t, "5m0s", s.Database.Lifetime().String())
}

func TestPrefixedEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRIVILEGES_SERVER_PORT", "9090")
	t.Setenv("PRIVILEGES_LOGGING_LEVEL", "debug")
	t.Setenv("PRIVILEGES_AUTH_API_TOKEN", "prefixed-secret")

	s, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, 9090, s.Server.Port)
	assert.Equal(t, "debug", s.Logging.Level)
	assert.Equal(t, "prefixed-secret", s.Auth.APIToken)
}

func TestLegacyEnvNames(t *testing.T) {
	t.Setenv("API_TOKEN", "legacy-secret")
	t.Setenv("ENABLE_DELETE_ENDPOINT", "true")
	t.Setenv("ENVIRONMENT", "production")

	s, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "legacy-secret", s.Auth.APIToken)
	assert.True(t, s.Features.EnableDeleteEndpoint)
	assert.Equal(t, "production", s.Environment)
}

func TestPrefixedEnvWinsOverLegacy(t *testing.T) {
	t.Setenv("API_TOKEN", "legacy")
	t.Setenv("PRIVILEGES_AUTH_API_TOKEN", "prefixed")

	s, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "prefixed", s.Auth.APIToken)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	content := `
server:
  port: 7000
database:
  driver: postgres
  dsn: postgres://localhost/privileges
features:
  enable_delete_endpoint: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	s, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 7000, s.Server.Port)
	assert.Equal(t, "postgres", s.Database.Driver)
	assert.True(t, s.Features.EnableDeleteEndpoint)
	assert.Equal(t, "0.0.0.0", s.Server.Host, "unset keys keep defaults")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
		want   string
	}{
		{"unknown driver", func(s *Settings) { s.Database.Driver = "oracle" }, "database.driver"},
		{"postgres without dsn", func(s *Settings) { s.Database.Driver = "postgres"; s.Database.DSN = "" }, "database.dsn"},
		{"port zero", func(s *Settings) { s.Server.Port = 0 }, "server.port"},
		{"port too big", func(s *Settings) { s.Server.Port = 70000 }, "server.port"},
		{"bad duration", func(s *Settings) { s.Server.ReadTimeout = "soon" }, "server.read_timeout"},
		{"bad level", func(s *Settings) { s.Logging.Level = "loud" }, "logging.level"},
		{"bad format", func(s *Settings) { s.Logging.Format = "xml" }, "logging.format"},
		{"zero body", func(s *Settings) { s.Server.MaxBodySize = 0 }, "server.max_body_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.mutate(s)
			err := s.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSQLiteAllowsEmptyDSN(t *testing.T) {
	s := Default()
	s.Database.DSN = ""
	assert.NoError(t, s.Validate())
}

func TestYAMLMasksSecret(t *testing.T) {
	s := Default()
	s.Auth.APIToken = "super-secret"

	out, err := s.YAML()
	require.NoError(t, err)
	assert.NotContains(t, string(out), "super-secret")
	assert.Contains(t, string(out), "********")
	assert.Equal(t, "super-secret", s.Auth.APIToken, "original must be untouched")
}

func TestDefaultYAMLRoundTrips(t *testing.T) {
	clearEnv(t)
	var parsed Settings
	require.NoError(t, yaml.Unmarshal([]byte(DefaultYAML()), &parsed))
	assert.Equal(t, *Default(), parsed)
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)

	require.NoError(t, WriteDefault(path, false))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# Privileges API configuration"))

	err = WriteDefault(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	assert.NoError(t, WriteDefault(path, true))
}

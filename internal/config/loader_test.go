package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSecretProvider is a configurable mock for testing secret resolution.
type testSecretProvider struct {
	values     map[string]string
	err        error
	calledWith []string
	callCount  int
}

func (p *testSecretProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	p.callCount++
	p.calledWith = append(p.calledWith, keys...)
	if p.err != nil {
		return nil, p.err
	}
	result := make(map[string]string)
	for _, k := range keys {
		if v, ok := p.values[k]; ok {
			result[k] = v
		}
	}
	return result, nil
}

// fakeEnv is an in-memory environment for loaderDeps.
type fakeEnv map[string]string

func (e fakeEnv) deps() loaderDeps {
	return loaderDeps{
		lookupEnv: func(k string) (string, bool) {
			v, ok := e[k]
			return v, ok
		},
		setEnv: func(k, v string) error {
			e[k] = v
			return nil
		},
		loadDotenv: func() error { return nil },
	}
}

// osDeps uses the real environment but never reads a .env file from the
// package directory.
func osDeps() loaderDeps {
	d := defaultDeps()
	d.loadDotenv = func() error { return nil }
	return d
}

// clearEnv unsets key for the duration of the test and restores it afterwards.
func clearEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{
		"APP_ENV", "LOG_LEVEL", "OPSGENIE_API_URL", "OPSGENIE_TIMEOUT", "OPSGENIE_PRIORITY",
		"OPSGENIE_BUILD_START_PRIORITY", "JENKINS_URL", "BUILD_TIME_ZONE", "HTTP_PROXY_HOST",
		"HTTP_PROXY_PORT", "HTTP_NO_PROXY_HOSTS", "SQS_BUILD_EVENTS", "PORT",
	} {
		clearEnv(t, k)
	}
	t.Setenv("OPSGENIE_API_KEY", "og-key")

	cfg, err := loadConfigWithDeps(nil, osDeps())
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "api.opsgenie.com", cfg.OpsGenie.APIURL)
	assert.Equal(t, "og-key", cfg.OpsGenie.APIKey.Unmask())
	assert.Equal(t, 30*time.Second, cfg.OpsGenie.Timeout)
	assert.Equal(t, uint32(0), cfg.OpsGenie.BreakerThreshold)
	assert.Equal(t, time.UTC, cfg.Jenkins.Location())
	assert.False(t, cfg.Proxy.Enabled())
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "dev", cfg.Build.Version)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("OPSGENIE_API_URL", "https://api.eu.opsgenie.com")
	t.Setenv("OPSGENIE_TAGS", "jenkins, ci")
	t.Setenv("OPSGENIE_PRIORITY", "P2")
	t.Setenv("OPSGENIE_BUILD_START_PRIORITY", "Informational")
	t.Setenv("OPSGENIE_TIMEOUT", "5s")
	t.Setenv("JENKINS_URL", "https://ci.example.com/")
	t.Setenv("BUILD_TIME_ZONE", "Europe/Istanbul")
	t.Setenv("HTTP_PROXY_HOST", "proxy.example.com")
	t.Setenv("HTTP_PROXY_PORT", "3128")
	t.Setenv("HTTP_NO_PROXY_HOSTS", "localhost,*.internal")

	cfg, err := loadConfigWithDeps(nil, osDeps())
	require.NoError(t, err)

	assert.Equal(t, "https://api.eu.opsgenie.com", cfg.OpsGenie.APIURL)
	assert.Equal(t, "jenkins, ci", cfg.OpsGenie.Tags)
	assert.Equal(t, "P2", cfg.OpsGenie.Priority)
	assert.Equal(t, 5*time.Second, cfg.OpsGenie.Timeout)
	assert.Equal(t, "Europe/Istanbul", cfg.Jenkins.Location().String())
	assert.True(t, cfg.Proxy.Enabled())
	assert.Equal(t, 3128, cfg.Proxy.Port)
	assert.Equal(t, []string{"localhost", "*.internal"}, cfg.Proxy.NoProxyHosts)
}

func TestLoadConfigValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown environment", map[string]string{"APP_ENV": "qa"}},
		{"unknown priority", map[string]string{"OPSGENIE_PRIORITY": "P9"}},
		{"invalid jenkins url", map[string]string{"JENKINS_URL": "not a url"}},
		{"invalid time zone", map[string]string{"BUILD_TIME_ZONE": "Mars/Olympus"}},
		{"proxy host without port", map[string]string{"HTTP_PROXY_HOST": "proxy.example.com", "HTTP_PROXY_PORT": "0"}},
		{"zero timeout", map[string]string{"OPSGENIE_TIMEOUT": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := loadConfigWithDeps(nil, osDeps())
			require.Error(t, err)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, ErrValidation, cfgErr.Type)
		})
	}
}

func TestLoadConfigParsingFailure(t *testing.T) {
	t.Setenv("OPSGENIE_TIMEOUT", "soon")

	_, err := loadConfigWithDeps(nil, osDeps())

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ErrParsing, cfgErr.Type)
}

func TestLoadConfigSecretFile(t *testing.T) {
	clearEnv(t, "OPSGENIE_API_KEY")
	path := filepath.Join(t.TempDir(), "opsgenie")
	require.NoError(t, os.WriteFile(path, []byte("file-key\n"), 0o600))
	t.Setenv("OPSGENIE_API_KEY_FILE", path)

	cfg, err := loadConfigWithDeps(NewFileProvider(), osDeps())
	require.NoError(t, err)
	assert.Equal(t, "file-key", cfg.OpsGenie.APIKey.Unmask())
}

func TestResolveSecretFiles_DirectEnvWins(t *testing.T) {
	env := fakeEnv{
		"OPSGENIE_API_KEY":      "direct",
		"OPSGENIE_API_KEY_FILE": "/run/secrets/og",
	}
	provider := &testSecretProvider{values: map[string]string{"/run/secrets/og": "from-file"}}

	require.NoError(t, resolveSecretFiles(provider, env.deps()))
	assert.Equal(t, "direct", env["OPSGENIE_API_KEY"])
	assert.Zero(t, provider.callCount)
}

func TestResolveSecretFiles_Injects(t *testing.T) {
	env := fakeEnv{"OPSGENIE_API_KEY_FILE": "/run/secrets/og", "UNRELATED_FILE": "/etc/passwd"}
	provider := &testSecretProvider{values: map[string]string{"/run/secrets/og": "from-file"}}

	require.NoError(t, resolveSecretFiles(provider, env.deps()))
	assert.Equal(t, "from-file", env["OPSGENIE_API_KEY"])
	assert.Equal(t, []string{"/run/secrets/og"}, provider.calledWith)
}

func TestResolveSecretFiles_Errors(t *testing.T) {
	t.Run("nil provider", func(t *testing.T) {
		env := fakeEnv{"OPSGENIE_API_KEY_FILE": "/run/secrets/og"}
		err := resolveSecretFiles(nil, env.deps())

		var cfgErr *ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, ErrSecretResolution, cfgErr.Type)
		assert.Contains(t, cfgErr.Message, "OPSGENIE_API_KEY")
	})

	t.Run("provider error", func(t *testing.T) {
		env := fakeEnv{"OPSGENIE_API_KEY_FILE": "/run/secrets/og"}
		boom := errors.New("permission denied")
		err := resolveSecretFiles(&testSecretProvider{err: boom}, env.deps())

		assert.ErrorIs(t, err, boom)
	})

	t.Run("missing file", func(t *testing.T) {
		env := fakeEnv{"OPSGENIE_API_KEY_FILE": "/run/secrets/og"}
		err := resolveSecretFiles(&testSecretProvider{}, env.deps())

		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "secret files not found for: OPSGENIE_API_KEY"))
	})
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present")
	require.NoError(t, os.WriteFile(present, []byte("value\r\n"), 0o600))

	got, err := NewFileProvider().GetParametersBatch(context.Background(), []string{present, filepath.Join(dir, "absent")})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{present: "value"}, got)
}

func TestConfigErrorFormat(t *testing.T) {
	inner := errors.New("boom")
	err := &ConfigError{Type: ErrParsing, Message: "bad input", Err: inner}

	assert.Equal(t, "[PARSING_FAILED] bad input: boom", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "[VALIDATION_FAILED] nope", (&ConfigError{Type: ErrValidation, Message: "nope"}).Error())
}

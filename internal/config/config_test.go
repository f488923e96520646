package config_test

import (
	"testing"

	"github.com/Amund211/batchroom/internal/config"
	"github.com/stretchr/testify/require"
)

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

var allVariablesExceptEnv = []string{
	"PORT",
	"COACHING_API_URL",
	"COACHING_API_TOKEN",
	"SENTRY_DSN",
	"CACHE_BACKEND",
	"CLOUDSQL_UNIX_SOCKET",
	"DB_PASSWORD",
	"DB_USERNAME",
	"REDIS_ADDR",
	"REDIS_PASSWORD",
	"GOOGLE_CLOUD_PROJECT",
	"ALLOWED_ORIGIN_SUFFIXES",
	"TRUSTED_PROXY_HOPS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, variable := range allVariablesExceptEnv {
		t.Setenv(variable, "")
	}
}

// NOTE: t.Setenv does not allow t.Parallel
func TestGetConfig(t *testing.T) {
	t.Run("environment is missing", func(t *testing.T) {
		// BATCHROOM_ENVIRONMENT is required, so this should fail
		_, err := config.ConfigFromEnv()
		require.ErrorIs(t, err, config.ErrMissingRequiredValue)
	})

	t.Run("development defaults", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("BATCHROOM_ENVIRONMENT", "development")

		conf, err := config.ConfigFromEnv()
		require.NoError(t, err)

		require.True(t, conf.IsDevelopment())
		require.False(t, conf.IsProduction())
		require.False(t, conf.IsStaging())
		require.Equal(t, "development", conf.Environment())
		require.Equal(t, "8080", conf.Port())
		require.Equal(t, config.CacheBackendMemory, conf.CacheBackend())
		require.Empty(t, conf.CoachingAPIURL())
		require.Empty(t, conf.CoachingAPIToken())
		require.Empty(t, conf.SentryDSN())
		require.Empty(t, conf.AllowedOriginSuffixes())
		require.Equal(t, 0, conf.TrustedProxyHops())
	})

	t.Run("development redis defaults to localhost", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("BATCHROOM_ENVIRONMENT", "development")
		t.Setenv("CACHE_BACKEND", "redis")

		conf, err := config.ConfigFromEnv()
		require.NoError(t, err)
		require.Equal(t, config.CacheBackendRedis, conf.CacheBackend())
		require.Equal(t, "localhost:6379", conf.RedisAddr())
	})

	t.Run("values are read correctly", func(t *testing.T) {
		for _, env := range []environment{production, staging, development} {
			t.Run(string(env), func(t *testing.T) {
				t.Setenv("BATCHROOM_ENVIRONMENT", string(env))
				t.Setenv("PORT", "9000")
				t.Setenv("COACHING_API_URL", "https://api.coaching.example/v1")
				t.Setenv("COACHING_API_TOKEN", "token")
				t.Setenv("SENTRY_DSN", "https://key@sentry.example/1")
				t.Setenv("CACHE_BACKEND", "postgres")
				t.Setenv("CLOUDSQL_UNIX_SOCKET", "/cloudsql/socket")
				t.Setenv("DB_USERNAME", "username")
				t.Setenv("DB_PASSWORD", "password")
				t.Setenv("REDIS_ADDR", "redis:6379")
				t.Setenv("REDIS_PASSWORD", "redis-password")
				t.Setenv("GOOGLE_CLOUD_PROJECT", "my-project")
				t.Setenv("ALLOWED_ORIGIN_SUFFIXES", "batchroom.example, admin.batchroom.example,")
				t.Setenv("TRUSTED_PROXY_HOPS", "2")

				conf, err := config.ConfigFromEnv()
				require.NoError(t, err)

				require.Equal(t, env == production, conf.IsProduction())
				require.Equal(t, env == staging, conf.IsStaging())
				require.Equal(t, env == development, conf.IsDevelopment())
				require.Equal(t, "9000", conf.Port())
				require.Equal(t, "https://api.coaching.example/v1", conf.CoachingAPIURL())
				require.Equal(t, "token", conf.CoachingAPIToken())
				require.Equal(t, "https://key@sentry.example/1", conf.SentryDSN())
				require.Equal(t, config.CacheBackendPostgres, conf.CacheBackend())
				require.Equal(t, "/cloudsql/socket", conf.CloudSQLUnixSocketPath())
				require.Equal(t, "username", conf.DBUsername())
				require.Equal(t, "password", conf.DBPassword())
				require.Equal(t, "redis:6379", conf.RedisAddr())
				require.Equal(t, "redis-password", conf.RedisPassword())
				require.Equal(t, "my-project", conf.GoogleCloudProject())
				require.Equal(t, []string{"batchroom.example", "admin.batchroom.example"}, conf.AllowedOriginSuffixes())
				require.Equal(t, 2, conf.TrustedProxyHops())

				require.NotContains(t, conf.NonSensitiveString(), "token")
				require.NotContains(t, conf.NonSensitiveString(), "password")
			})
		}
	})

	t.Run("production and staging fail when missing variables", func(t *testing.T) {
		setAll := func(t *testing.T, backend string) {
			t.Helper()
			t.Setenv("COACHING_API_URL", "https://api.coaching.example/v1")
			t.Setenv("COACHING_API_TOKEN", "token")
			t.Setenv("SENTRY_DSN", "https://key@sentry.example/1")
			t.Setenv("CACHE_BACKEND", backend)
			t.Setenv("CLOUDSQL_UNIX_SOCKET", "/cloudsql/socket")
			t.Setenv("DB_USERNAME", "username")
			t.Setenv("DB_PASSWORD", "password")
			t.Setenv("REDIS_ADDR", "redis:6379")
		}

		required := map[string][]string{
			"memory":   {"COACHING_API_URL", "COACHING_API_TOKEN", "SENTRY_DSN"},
			"postgres": {"COACHING_API_URL", "COACHING_API_TOKEN", "SENTRY_DSN", "CLOUDSQL_UNIX_SOCKET", "DB_USERNAME", "DB_PASSWORD"},
			"redis":    {"COACHING_API_URL", "COACHING_API_TOKEN", "SENTRY_DSN", "REDIS_ADDR"},
		}

		for _, env := range []environment{production, staging} {
			for backend, variables := range required {
				t.Run(string(env)+"/"+backend, func(t *testing.T) {
					t.Setenv("BATCHROOM_ENVIRONMENT", string(env))

					for _, variable := range variables {
						t.Run(variable, func(t *testing.T) {
							setAll(t, backend)
							t.Setenv(variable, "")

							_, err := config.ConfigFromEnv()
							require.ErrorIs(t, err, config.ErrMissingRequiredValue)
						})
					}
				})
			}
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		for _, env := range []string{"", "invalid", "my-env"} {
			t.Run("environment "+env, func(t *testing.T) {
				clearEnv(t)
				t.Setenv("BATCHROOM_ENVIRONMENT", env)
				_, err := config.ConfigFromEnv()
				require.ErrorIs(t, err, config.ErrInvalidValue)
			})
		}

		t.Run("cache backend", func(t *testing.T) {
			clearEnv(t)
			t.Setenv("BATCHROOM_ENVIRONMENT", "development")
			t.Setenv("CACHE_BACKEND", "firestore")
			_, err := config.ConfigFromEnv()
			require.ErrorIs(t, err, config.ErrInvalidValue)
		})

		for _, rawHops := range []string{"-1", "two", "1.5"} {
			t.Run("trusted proxy hops "+rawHops, func(t *testing.T) {
				clearEnv(t)
				t.Setenv("BATCHROOM_ENVIRONMENT", "development")
				t.Setenv("TRUSTED_PROXY_HOPS", rawHops)
				_, err := config.ConfigFromEnv()
				require.ErrorIs(t, err, config.ErrInvalidValue)
			})
		}

		for _, rawURL := range []string{"not a url", "ftp://api.coaching.example", "https://"} {
			t.Run("coaching api url "+rawURL, func(t *testing.T) {
				clearEnv(t)
				t.Setenv("BATCHROOM_ENVIRONMENT", "development")
				t.Setenv("COACHING_API_URL", rawURL)
				_, err := config.ConfigFromEnv()
				require.ErrorIs(t, err, config.ErrInvalidValue)
			})
		}
	})
}

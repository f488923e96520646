package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

type CacheBackend string

const (
	CacheBackendMemory   CacheBackend = "memory"
	CacheBackendPostgres CacheBackend = "postgres"
	CacheBackendRedis    CacheBackend = "redis"
)

const defaultPort = "8080"

type Config struct {
	port                   string
	coachingAPIURL         string
	coachingAPIToken       string
	sentryDSN              string
	cacheBackend           CacheBackend
	cloudSQLUnixSocketPath string
	dBPassword             string
	dBUsername             string
	redisAddr              string
	redisPassword          string
	googleCloudProject     string
	allowedOriginSuffixes  []string
	trustedProxyHops       int
	env                    environment
}

func (c *Config) Port() string {
	return c.port
}

func (c *Config) CoachingAPIURL() string {
	return c.coachingAPIURL
}

func (c *Config) CoachingAPIToken() string {
	return c.coachingAPIToken
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) CacheBackend() CacheBackend {
	return c.cacheBackend
}

func (c *Config) CloudSQLUnixSocketPath() string {
	return c.cloudSQLUnixSocketPath
}

func (c *Config) DBPassword() string {
	return c.dBPassword
}

func (c *Config) DBUsername() string {
	return c.dBUsername
}

func (c *Config) RedisAddr() string {
	return c.redisAddr
}

func (c *Config) RedisPassword() string {
	return c.redisPassword
}

func (c *Config) GoogleCloudProject() string {
	return c.googleCloudProject
}

func (c *Config) AllowedOriginSuffixes() []string {
	return append([]string(nil), c.allowedOriginSuffixes...)
}

// TrustedProxyHops is the number of X-Forwarded-For entries appended by our own proxies
func (c *Config) TrustedProxyHops() int {
	return c.trustedProxyHops
}

func (c *Config) Environment() string {
	return string(c.env)
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf(
		"Config{env: %s, port: %s, cacheBackend: %s, coachingAPIURL: %s, ...}",
		string(c.env),
		c.port,
		string(c.cacheBackend),
		c.coachingAPIURL,
	)
}

func parseOriginSuffixes(raw string) []string {
	suffixes := make([]string, 0)
	for suffix := range strings.SplitSeq(raw, ",") {
		suffix = strings.TrimSpace(suffix)
		if suffix != "" {
			suffixes = append(suffixes, suffix)
		}
	}
	return suffixes
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("BATCHROOM_ENVIRONMENT")
	if !ok {
		return missingKey("BATCHROOM_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return Config{}, fmt.Errorf("%w: BATCHROOM_ENVIRONMENT (%s)", ErrInvalidValue, rawEnv)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	var cacheBackend CacheBackend
	switch rawBackend := os.Getenv("CACHE_BACKEND"); rawBackend {
	case "", string(CacheBackendMemory):
		cacheBackend = CacheBackendMemory
	case string(CacheBackendPostgres):
		cacheBackend = CacheBackendPostgres
	case string(CacheBackendRedis):
		cacheBackend = CacheBackendRedis
	default:
		return Config{}, fmt.Errorf("%w: CACHE_BACKEND (%s)", ErrInvalidValue, rawBackend)
	}

	coachingAPIURL := os.Getenv("COACHING_API_URL")
	if coachingAPIURL != "" {
		parsed, err := url.Parse(coachingAPIURL)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "https" && parsed.Scheme != "http") {
			return Config{}, fmt.Errorf("%w: COACHING_API_URL (%s)", ErrInvalidValue, coachingAPIURL)
		}
	}

	coachingAPIToken := os.Getenv("COACHING_API_TOKEN")
	sentryDSN := os.Getenv("SENTRY_DSN")
	cloudSQLUnixSocketPath := os.Getenv("CLOUDSQL_UNIX_SOCKET")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbUsername := os.Getenv("DB_USERNAME")
	redisAddr := os.Getenv("REDIS_ADDR")
	redisPassword := os.Getenv("REDIS_PASSWORD")
	googleCloudProject := os.Getenv("GOOGLE_CLOUD_PROJECT")
	allowedOriginSuffixes := parseOriginSuffixes(os.Getenv("ALLOWED_ORIGIN_SUFFIXES"))

	trustedProxyHops := 0
	if rawHops := os.Getenv("TRUSTED_PROXY_HOPS"); rawHops != "" {
		hops, err := strconv.Atoi(rawHops)
		if err != nil || hops < 0 {
			return Config{}, fmt.Errorf("%w: TRUSTED_PROXY_HOPS (%s)", ErrInvalidValue, rawHops)
		}
		trustedProxyHops = hops
	}

	if env == production || env == staging {
		if coachingAPIURL == "" {
			return missingKey("COACHING_API_URL")
		}
		if coachingAPIToken == "" {
			return missingKey("COACHING_API_TOKEN")
		}
		if sentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}

		switch cacheBackend {
		case CacheBackendPostgres:
			if cloudSQLUnixSocketPath == "" {
				return missingKey("CLOUDSQL_UNIX_SOCKET")
			}
			if dbUsername == "" {
				return missingKey("DB_USERNAME")
			}
			if dbPassword == "" {
				return missingKey("DB_PASSWORD")
			}
		case CacheBackendRedis:
			if redisAddr == "" {
				return missingKey("REDIS_ADDR")
			}
		}
	}

	if cacheBackend == CacheBackendRedis && redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	return Config{
		port:                   port,
		coachingAPIURL:         coachingAPIURL,
		coachingAPIToken:       coachingAPIToken,
		sentryDSN:              sentryDSN,
		cacheBackend:           cacheBackend,
		cloudSQLUnixSocketPath: cloudSQLUnixSocketPath,
		dBPassword:             dbPassword,
		dBUsername:             dbUsername,
		redisAddr:              redisAddr,
		redisPassword:          redisPassword,
		googleCloudProject:     googleCloudProject,
		allowedOriginSuffixes:  allowedOriginSuffixes,
		trustedProxyHops:       trustedProxyHops,
		env:                    env,
	}, nil
}

package config

import "os"

// DispatchMode selects the dispatcher's rate-limit admission behavior.
type DispatchMode string

const (
	DispatchModeWait     DispatchMode = "wait"
	DispatchModeFailFast DispatchMode = "fail-fast"
)

// RateLimitBackend selects the rate limiter's bucket storage.
type RateLimitBackend string

const (
	RateLimitBackendMemory RateLimitBackend = "memory"
	RateLimitBackendRedis  RateLimitBackend = "redis"
)

// Config holds process-wide configuration. Absent identity-provider
// values disable authenticated operations but never crash the process:
// callers see AuthFailed on the first credential-dependent call instead.
type Config struct {
	Port     string
	LogLevel string

	RefreshToken     string
	ClientID         string
	ClientSecret     string
	AWSAccessKeyID   string
	AWSSecretKey     string
	RoleARN          string
	DefaultMarketplace string

	FilterDBPath string

	RateLimitBackend RateLimitBackend
	RedisAddr        string

	DispatchMode DispatchMode
}

// Load reads configuration from the environment, applying the same
// defaults a locally-run instance would want.
func Load() *Config {
	return &Config{
		Port:     getenv("PORT", "8080"),
		LogLevel: getenv("LOG_LEVEL", "INFO"),

		RefreshToken:       os.Getenv("SPAPI_REFRESH_TOKEN"),
		ClientID:           os.Getenv("SPAPI_CLIENT_ID"),
		ClientSecret:       os.Getenv("SPAPI_CLIENT_SECRET"),
		AWSAccessKeyID:     os.Getenv("SPAPI_AWS_ACCESS_KEY_ID"),
		AWSSecretKey:       os.Getenv("SPAPI_AWS_SECRET_ACCESS_KEY"),
		RoleARN:            os.Getenv("SPAPI_ROLE_ARN"),
		DefaultMarketplace: getenv("SPAPI_DEFAULT_MARKETPLACE", "GB"),

		FilterDBPath: getenv("SPAPI_FILTER_DB_PATH", "filters.db"),

		RateLimitBackend: RateLimitBackend(getenv("SPAPI_RATE_LIMIT_BACKEND", string(RateLimitBackendMemory))),
		RedisAddr:        os.Getenv("SPAPI_REDIS_ADDR"),

		DispatchMode: DispatchMode(getenv("SPAPI_DISPATCH_MODE", string(DispatchModeWait))),
	}
}

// IdentityConfigured reports whether enough identity-provider values are
// present to attempt credential refresh at all.
func (c *Config) IdentityConfigured() bool {
	return c.RefreshToken != "" && c.ClientID != "" && c.ClientSecret != ""
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

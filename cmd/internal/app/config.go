package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr    string
	Environment string
	LogLevel    string
	LogFormat   string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL    string
	DBMaxConns     int32
	DBMinConns     int32
	MigrateOnStart bool

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:    EnvString("TRACKD_HTTP_ADDR", "0.0.0.0:8080"),
		Environment: EnvString("TRACKD_ENV", "development"),
		LogLevel:    EnvString("TRACKD_LOG_LEVEL", "info"),
		LogFormat:   EnvString("TRACKD_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("TRACKD_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("TRACKD_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("TRACKD_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("TRACKD_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("TRACKD_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL:    EnvString("TRACKD_DATABASE_URL", ""),
		DBMaxConns:     EnvInt32("TRACKD_DB_MAX_CONNS", 10),
		DBMinConns:     EnvInt32("TRACKD_DB_MIN_CONNS", 0),
		MigrateOnStart: EnvBool("TRACKD_DB_MIGRATE_ON_START", true),

		ReadinessRequireDB: EnvBool("TRACKD_READINESS_REQUIRE_DB", false),

		CORSAllowedOrigins:   EnvStringSlice("TRACKD_CORS_ALLOWED_ORIGINS", nil),
		CORSAllowCredentials: EnvBool("TRACKD_CORS_ALLOW_CREDENTIALS", false),
		CORSMaxAgeSeconds:    EnvInt("TRACKD_CORS_MAX_AGE_SECONDS", 600),
	}
}

// IsProduction reports whether the configured environment is production.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

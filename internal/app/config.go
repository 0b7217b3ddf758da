package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// Relay knobs.
	PINDigits      int
	PINOptionCount int
	QueueCapacity  int
	CleanupDelay   time.Duration

	// Origin policy for WebSocket upgrades and CORS.
	AllowedOrigins []string
	OriginRequired bool

	WSWriteTimeout    time.Duration
	WSReadIdleTimeout time.Duration

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("STRONGHOLD_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("STRONGHOLD_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("STRONGHOLD_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("STRONGHOLD_HTTP_READ_TIMEOUT", 15*time.Second),
		// SSE and WebSocket responses outlive any sane write deadline;
		// streaming routes bypass it, this bounds the JSON surface only.
		WriteTimeout: EnvDuration("STRONGHOLD_HTTP_WRITE_TIMEOUT", 0),
		IdleTimeout:  EnvDuration("STRONGHOLD_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("STRONGHOLD_HTTP_MAX_HEADER_BYTES", 1<<20),

		PINDigits:      EnvInt("STRONGHOLD_PIN_DIGITS", 2),
		PINOptionCount: EnvInt("STRONGHOLD_PIN_OPTIONS", 3),
		QueueCapacity:  EnvInt("STRONGHOLD_QUEUE_CAPACITY", 100),
		CleanupDelay:   EnvDuration("STRONGHOLD_CLEANUP_DELAY", time.Second),

		AllowedOrigins: EnvStrings("STRONGHOLD_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		OriginRequired: EnvBool("STRONGHOLD_ORIGIN_REQUIRED", false),

		WSWriteTimeout:    EnvDuration("STRONGHOLD_WS_WRITE_TIMEOUT", 5*time.Second),
		WSReadIdleTimeout: EnvDuration("STRONGHOLD_WS_READ_IDLE_TIMEOUT", 2*time.Minute),

		DatabaseURL: EnvString("STRONGHOLD_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("STRONGHOLD_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("STRONGHOLD_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("STRONGHOLD_READINESS_REQUIRE_DB", false),
	}
}

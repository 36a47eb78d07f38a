package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Auth      AuthConfig
	Abuse     AbuseConfig
	Recaptcha RecaptchaConfig
	TwoFactor TwoFactorConfig
	Alert     AlertConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
	// TrustedProxies lists CIDR ranges whose forwarding headers are honored
	// when resolving client IPs
	TrustedProxies []string
}

type AuthConfig struct {
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	MFATokenExpiry     time.Duration
}

// AbuseConfig drives the failed-login tracker and the IP ban store
type AbuseConfig struct {
	BaseBanDuration  time.Duration // first-offense ban length
	MaxBanMultiplier int           // escalation ceiling on repeat offenses
	CaptchaThreshold int           // failed attempts before CAPTCHA is required
	BanThreshold     int           // failed attempts before the IP is banned
	SweepInterval    time.Duration // how often stale failure records are purged
	StaleAfter       time.Duration // failure records older than this are purged
	BanFilePath      string
	AbuseLogPath     string
}

// RecaptchaConfig drives the CAPTCHA gate. Bypass behavior is resolved here
// once at startup; nothing downstream branches on ad hoc literals.
type RecaptchaConfig struct {
	Secret              string
	VerifyURL           string
	ScoreThreshold      float64 // below this the challenge fails
	SuspicionThreshold  float64 // below this the IP is flagged as a suspected abuser
	Timeout             time.Duration
	BypassTrustedApps   bool
	TrustedAppHeader    string
	TrustedAppKey       string
}

type TwoFactorConfig struct {
	Issuer          string
	BackupCodeCount int
	// TestMode accepts a fixed verification code for automated test suites.
	// Load refuses to enable it in production.
	TestMode bool
}

type AlertConfig struct {
	Enabled     bool
	AWSRegion   string
	FromAddress string
	ToAddress   string
	QueueSize   int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "exchange_auth"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			TrustedProxies: getEnvAsSlice("TRUSTED_PROXIES"),
		},
		Auth: AuthConfig{
			JWTSecret:          jwtSecret,
			AccessTokenExpiry:  getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
			RefreshTokenExpiry: getEnvAsDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour),
			MFATokenExpiry:     getEnvAsDuration("MFA_TOKEN_EXPIRY", 5*time.Minute),
		},
		Abuse: AbuseConfig{
			BaseBanDuration:  getEnvAsDuration("BAN_BASE_DURATION", 1*time.Hour),
			MaxBanMultiplier: getEnvAsInt("BAN_MAX_MULTIPLIER", 6),
			CaptchaThreshold: getEnvAsInt("CAPTCHA_FAIL_THRESHOLD", 3),
			BanThreshold:     getEnvAsInt("BAN_FAIL_THRESHOLD", 5),
			SweepInterval:    getEnvAsDuration("TRACKER_SWEEP_INTERVAL", 30*time.Minute),
			StaleAfter:       getEnvAsDuration("TRACKER_STALE_AFTER", 10*time.Minute),
			BanFilePath:      getEnv("BAN_FILE_PATH", "data/banned_ips.json"),
			AbuseLogPath:     getEnv("ABUSE_LOG_PATH", "data/abuse.log"),
		},
		Recaptcha: RecaptchaConfig{
			Secret:             getEnv("RECAPTCHA_SECRET", ""),
			VerifyURL:          getEnv("RECAPTCHA_VERIFY_URL", "https://www.google.com/recaptcha/api/siteverify"),
			ScoreThreshold:     getEnvAsFloat("RECAPTCHA_SCORE_THRESHOLD", 0.5),
			SuspicionThreshold: getEnvAsFloat("RECAPTCHA_SUSPICION_THRESHOLD", 0.2),
			Timeout:            getEnvAsDuration("RECAPTCHA_TIMEOUT", 5*time.Second),
			BypassTrustedApps:  getEnvAsBool("RECAPTCHA_BYPASS_TRUSTED_APPS", true),
			TrustedAppHeader:   getEnv("TRUSTED_APP_HEADER", "X-Mobile-App-Key"),
			TrustedAppKey:      getEnv("TRUSTED_APP_KEY", ""),
		},
		TwoFactor: TwoFactorConfig{
			Issuer:          getEnv("TOTP_ISSUER", "EvokeEssence"),
			BackupCodeCount: getEnvAsInt("BACKUP_CODE_COUNT", 8),
			TestMode:        getEnvAsBool("TWO_FACTOR_TEST_MODE", false),
		},
		Alert: AlertConfig{
			Enabled:     getEnvAsBool("BAN_ALERTS_ENABLED", false),
			AWSRegion:   getEnv("AWS_REGION", "eu-central-1"),
			FromAddress: getEnv("ALERT_FROM_ADDRESS", ""),
			ToAddress:   getEnv("ALERT_TO_ADDRESS", ""),
			QueueSize:   getEnvAsInt("ALERT_QUEUE_SIZE", 64),
		},
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	// Hard startup failures instead of silent fallbacks: a missing CAPTCHA
	// secret or an active test bypass must never reach production.
	if env == "production" {
		if cfg.Recaptcha.Secret == "" {
			return nil, fmt.Errorf("RECAPTCHA_SECRET is required in production")
		}
		if cfg.TwoFactor.TestMode {
			return nil, fmt.Errorf("TWO_FACTOR_TEST_MODE must not be enabled in production")
		}
		if cfg.Recaptcha.BypassTrustedApps && cfg.Recaptcha.TrustedAppKey == "" {
			return nil, fmt.Errorf("TRUSTED_APP_KEY is required when RECAPTCHA_BYPASS_TRUSTED_APPS is enabled in production")
		}
		if cfg.Alert.Enabled && (cfg.Alert.FromAddress == "" || cfg.Alert.ToAddress == "") {
			return nil, fmt.Errorf("ALERT_FROM_ADDRESS and ALERT_TO_ADDRESS are required when BAN_ALERTS_ENABLED is set")
		}
	}

	return cfg, nil
}

// IsProduction reports whether the server runs with production hardening.
// Anything that fails open on errors must check this, never the raw env var.
func (c *ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

// validateJWTSecret enforces minimum security standards for the JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvAsSlice(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

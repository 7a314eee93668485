// Package config loads application configuration from the environment.  A
// .env file in the working directory is read first when present; variables
// already set in the process environment win over it.
package config

import (
    "errors"
    "fmt"
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/joho/godotenv"
    "github.com/rs/zerolog/log"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; required ones are listed in requiredKeys.
type Config struct {
    Env        string // application environment (dev, test, prod)
    Port       string // HTTP port to listen on
    DBUser     string // database username
    DBPass     string // database password (optional)
    DBHost     string // database host address
    DBPort     string // database port number
    DBName     string // database name
    JWTSecret  string // secret used to sign session tokens
    TokenTTL   time.Duration
    BcryptCost int

    OTPTTL         time.Duration // lifetime of a one-time code
    OTPMaxAttempts int           // verification attempts per code
    OTPSendPerHour int           // send-otp budget per client and target
    PhoneRegion    string        // default region for phone normalization

    AMQPURL      string // RabbitMQ; empty disables publishing
    SendGridKey  string // empty logs emails instead of sending them
    MailFrom     string
    MailFromName string
    SentryDSN    string
    LogLevel     string
    LogDir       string // notifier output directory
    DigestSpec   string // cron expression evaluated in IST
}

var requiredKeys = []string{"APP_ENV", "APP_PORT", "DB_USER", "DB_HOST", "DB_PORT", "DB_NAME", "JWT_SECRET"}

// ErrMissing is wrapped by FromEnv for every absent required variable.
var ErrMissing = errors.New("missing required env var")

// Load reads .env (if any) and the process environment.  Missing or
// malformed required variables are fatal.
func Load() Config {
    if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
        log.Warn().Err(err).Msg("config: .env not loaded")
    }
    cfg, err := FromEnv()
    if err != nil {
        log.Fatal().Err(err).Msg("config")
    }
    return cfg
}

// FromEnv builds a Config from the current environment without touching
// .env files.
func FromEnv() (Config, error) {
    var missing []string
    for _, k := range requiredKeys {
        if strings.TrimSpace(os.Getenv(k)) == "" {
            missing = append(missing, k)
        }
    }
    if len(missing) > 0 {
        return Config{}, fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
    }
    ttlHours, err := strictInt("TOKEN_TTL_HOURS", 168)
    if err != nil {
        return Config{}, err
    }
    cost, err := strictInt("BCRYPT_COST", 10)
    if err != nil {
        return Config{}, err
    }
    otpMin, err := strictInt("OTP_TTL_MIN", 10)
    if err != nil {
        return Config{}, err
    }
    amqpURL := os.Getenv("RABBITMQ_URL")
    if amqpURL == "" {
        amqpURL = os.Getenv("AMQP_URL")
    }
    return Config{
        Env:            os.Getenv("APP_ENV"),
        Port:           os.Getenv("APP_PORT"),
        DBUser:         os.Getenv("DB_USER"),
        DBPass:         os.Getenv("DB_PASS"),
        DBHost:         os.Getenv("DB_HOST"),
        DBPort:         os.Getenv("DB_PORT"),
        DBName:         os.Getenv("DB_NAME"),
        JWTSecret:      os.Getenv("JWT_SECRET"),
        TokenTTL:       time.Duration(ttlHours) * time.Hour,
        BcryptCost:     cost,
        OTPTTL:         time.Duration(otpMin) * time.Minute,
        OTPMaxAttempts: envInt("OTP_MAX_ATTEMPTS", 5),
        OTPSendPerHour: envInt("OTP_SEND_PER_HOUR", 5),
        PhoneRegion:    strings.ToUpper(envStr("PHONE_REGION", "IN")),
        AMQPURL:        amqpURL,
        SendGridKey:    os.Getenv("SENDGRID_API_KEY"),
        MailFrom:       envStr("MAIL_FROM", "no-reply@solar-crm.local"),
        MailFromName:   envStr("MAIL_FROM_NAME", "Solar CRM"),
        SentryDSN:      os.Getenv("SENTRY_DSN"),
        LogLevel:       envStr("LOG_LEVEL", "info"),
        LogDir:         envStr("LOG_DIR", "logs"),
        DigestSpec:     envStr("DIGEST_SPEC", "0 9 * * *"),
    }, nil
}

// IsDev reports whether the service runs in a development environment.
func (c Config) IsDev() bool {
    return c.Env == "dev" || c.Env == "development" || c.Env == "local"
}

// strictInt is like envInt but rejects values that are set and malformed.
func strictInt(key string, def int) (int, error) {
    s := os.Getenv(key)
    if s == "" {
        return def, nil
    }
    n, err := strconv.Atoi(s)
    if err != nil || n <= 0 {
        return 0, fmt.Errorf("invalid int for %s: %q", key, s)
    }
    return n, nil
}

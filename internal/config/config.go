// Package config loads settings and builds the long-lived clients the desk service needs.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"opd-desk/internal/identity"
)

// Store drivers.
const (
	DriverFirestore = "firestore"
	DriverMySQL     = "mysql"
	DriverMemory    = "memory"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	StoreDriver         string        `mapstructure:"STORE_DRIVER"`
	FirebaseCredentials string        `mapstructure:"FIREBASE_CREDENTIALS"`
	FirebaseProjectID   string        `mapstructure:"FIREBASE_PROJECT_ID"`
	MySQLDSN            string        `mapstructure:"MYSQL_DSN"`
	PollInterval        time.Duration `mapstructure:"POLL_INTERVAL"`

	IDPolicy           string        `mapstructure:"ID_POLICY"`
	AtomicRegistration bool          `mapstructure:"ATOMIC_REGISTRATION"`
	WriteTimeout       time.Duration `mapstructure:"WRITE_TIMEOUT"`
	SessionIdle        time.Duration `mapstructure:"SESSION_IDLE"`
	ClinicTimezone     string        `mapstructure:"CLINIC_TIMEZONE"`
	DisplayDateLayout  string        `mapstructure:"DISPLAY_DATE_LAYOUT"`

	HospitalName    string `mapstructure:"HOSPITAL_NAME"`
	HospitalAddress string `mapstructure:"HOSPITAL_ADDRESS"`
	NotifyDoctors   bool   `mapstructure:"NOTIFY_DOCTORS"`

	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"STORE_DRIVER", "FIREBASE_CREDENTIALS", "FIREBASE_PROJECT_ID", "MYSQL_DSN", "POLL_INTERVAL",
	"ID_POLICY", "ATOMIC_REGISTRATION", "WRITE_TIMEOUT", "SESSION_IDLE", "CLINIC_TIMEZONE", "DISPLAY_DATE_LAYOUT",
	"HOSPITAL_NAME", "HOSPITAL_ADDRESS", "NOTIFY_DOCTORS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "CORS_ORIGINS",
}

// Load reads .env (if present) and the environment. The returned warning is non-empty
// when no .env file was found; the caller logs it once a logger exists.
func Load() (*Config, string, error) {
	warning := ""
	if err := godotenv.Load(); err != nil {
		warning = ".env file not found, using environment only"
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_DRIVER", DriverFirestore)
	v.SetDefault("FIREBASE_CREDENTIALS", "serviceAccountKey.json")
	v.SetDefault("POLL_INTERVAL", "2s")
	v.SetDefault("ID_POLICY", string(identity.PolicySequential))
	v.SetDefault("ATOMIC_REGISTRATION", true)
	v.SetDefault("WRITE_TIMEOUT", "10s")
	v.SetDefault("SESSION_IDLE", "30m")
	v.SetDefault("CLINIC_TIMEZONE", "Asia/Kolkata")
	v.SetDefault("DISPLAY_DATE_LAYOUT", "1/2/2006")
	v.SetDefault("HOSPITAL_NAME", "MSN Cataract & IOL Hospital")
	v.SetDefault("HOSPITAL_ADDRESS", "Tilak Deka Road, Nagaon")
	v.SetDefault("NOTIFY_DOCTORS", false)
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("CORS_ORIGINS", "*")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, warning, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	if err := cfg.Validate(); err != nil {
		return nil, warning, err
	}
	return cfg, warning, nil
}

// Validate checks the settings that would otherwise fail later and less clearly.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverFirestore, DriverMemory:
	case DriverMySQL:
		if c.MySQLDSN == "" {
			return fmt.Errorf("MYSQL_DSN is required when STORE_DRIVER=%s", DriverMySQL)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if _, err := identity.ParsePolicy(c.IDPolicy); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("WRITE_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Location is the clinic's timezone, used to decide which day "today" is.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return nil, fmt.Errorf("CLINIC_TIMEZONE: %w", err)
	}
	return loc, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

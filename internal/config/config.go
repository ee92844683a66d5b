// Package config loads application configuration from environment
// variables.
package config

import (
	"encoding/base64"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers.
const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// Config holds the runtime configuration of the API server.
type Config struct {
	Env         string        // application environment (dev, prod)
	Port        string        // HTTP port to listen on
	StoreDriver string        // mysql or memory
	SeedFile    string        // JSON seed for the memory store (optional)
	DBUser      string        // database username
	DBPass      string        // database password (optional)
	DBHost      string        // database host address
	DBPort      string        // database port number
	DBName      string        // database name
	JWTKey      []byte        // claim signing key, base64 in JWT_KEY
	BcryptCost  int           // bcrypt cost for password hashing
	SessionTTL  time.Duration // lifetime of a login session
	RabbitURL   string        // RabbitMQ URL; empty disables events
}

// Load reads configuration values from environment variables.  Required
// variables are enforced by must(); missing values are fatal.  Database
// variables are only required by the mysql driver.
func Load() Config {
	cfg := Config{
		Env:         must("APP_ENV"),
		Port:        must("APP_PORT"),
		StoreDriver: strings.ToLower(envStr("STORE_DRIVER", DriverMySQL)),
		SeedFile:    os.Getenv("SEED_FILE"),
		JWTKey:      mustBase64("JWT_KEY"),
		BcryptCost:  mustInt("BCRYPT_COST"),
		SessionTTL:  envDur("SESSION_TTL", 7*24*time.Hour),
		RabbitURL:   os.Getenv("RABBITMQ_URL"),
	}
	switch cfg.StoreDriver {
	case DriverMySQL:
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS")
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	case DriverMemory:
	default:
		log.Fatalf("unknown STORE_DRIVER: %q", cfg.StoreDriver)
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func mustBase64(key string) []byte {
	s := must(key)
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(b) == 0 {
		log.Fatalf("invalid base64 for %s", key)
	}
	return b
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"slidesync/pkg/logger"

	"github.com/joho/godotenv"
)

// Config is the process configuration shared by the server and the editor client.
type Config struct {
	Port          string
	DatabaseURL   string
	JWTSecret     string
	AllowedOrigin string

	APIBaseURL string
	WSURL      string

	SaveQuietPeriod time.Duration
	ViewportWidth   float64
	ViewportHeight  float64

	LogLevel string
	LogFile  string
}

// Load reads an optional .env file and then the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}
	return FromEnv()
}

// FromEnv builds a Config from the environment only.
func FromEnv() Config {
	cfg := Config{
		Port:            getenv("PORT", "8080"),
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		JWTSecret:       strings.TrimSpace(os.Getenv("JWT_SECRET")),
		AllowedOrigin:   getenv("ALLOWED_ORIGIN", "*"),
		APIBaseURL:      getenv("API_BASE_URL", "http://localhost:8080"),
		WSURL:           getenv("WS_URL", "ws://localhost:8080/ws"),
		SaveQuietPeriod: time.Duration(getint("SAVE_QUIET_PERIOD_MS", 1000)) * time.Millisecond,
		ViewportWidth:   getfloat("VIEWPORT_WIDTH", 1200),
		ViewportHeight:  getfloat("VIEWPORT_HEIGHT", 675),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFile:         strings.TrimSpace(os.Getenv("LOG_FILE")),
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = dsnFromParts()
	}
	return cfg
}

// dsnFromParts builds a postgres URL from the discrete user/password/host/port/dbname variables.
func dsnFromParts() string {
	dbUser := strings.TrimSpace(os.Getenv("user"))
	dbPass := strings.TrimSpace(os.Getenv("password"))
	dbHost := strings.TrimSpace(os.Getenv("host"))
	dbPort := strings.TrimSpace(os.Getenv("port"))
	dbName := strings.TrimSpace(os.Getenv("dbname"))
	if dbHost == "" || dbName == "" {
		return ""
	}
	if dbPort == "" {
		dbPort = "5432"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=require", dbUser, dbPass, dbHost, dbPort, dbName)
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		logger.Sugar.Warnf("Ignoring invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getfloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		logger.Sugar.Warnf("Ignoring invalid %s=%q, using %g", key, v, def)
		return def
	}
	return f
}

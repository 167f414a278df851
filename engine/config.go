package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read at startup.
const (
	EnvUpstreamHost = "GAMESERVER_HOST"
	EnvUpstreamPort = "GAMESERVER_PORT"
	EnvListenPort   = "WEBSOCKET_PORT"
)

// Config is the relay's process configuration.
type Config struct {
	UpstreamHost string
	UpstreamPort string
	ListenPort   int
	DialTimeout  time.Duration

	// Logger defaults to log.Default().
	Logger *log.Logger
}

func DefaultConfig() Config {
	return Config{
		UpstreamHost: "localhost",
		UpstreamPort: "9010",
		ListenPort:   9009,
		DialTimeout:  10 * time.Second,
	}
}

// LoadConfig loads the given dotenv files (".env" when none are named) into
// the process environment, then reads the relay settings from it. Missing
// dotenv files are not an error; variables already set in the environment
// take precedence over the files.
func LoadConfig(envFiles ...string) (Config, error) {
	cfg := DefaultConfig()

	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load dotenv: %w", err)
	}

	if v := os.Getenv(EnvUpstreamHost); v != "" {
		cfg.UpstreamHost = v
	}
	if v := os.Getenv(EnvUpstreamPort); v != "" {
		if _, err := strconv.ParseUint(v, 10, 16); err != nil {
			return cfg, fmt.Errorf("invalid %s=%q: %w", EnvUpstreamPort, v, err)
		}
		cfg.UpstreamPort = v
	}
	if v := os.Getenv(EnvListenPort); v != "" {
		port, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s=%q: %w", EnvListenPort, v, err)
		}
		cfg.ListenPort = int(port)
	}
	return cfg, nil
}

func (c Config) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

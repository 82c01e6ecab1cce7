// Package appconf holds the runtime configuration of the board server and
// the helpers that assemble it from defaults, a YAML file, a .env file and
// the process environment.
package appconf

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Environment int

const (
	Development Environment = iota
	Test
	Production
)

func (e Environment) String() string {
	switch e {
	case Test:
		return "test"
	case Production:
		return "production"
	default:
		return "development"
	}
}

// EnvFlagToEnvironment maps the -env flag value to an Environment. Unknown
// values fall back to Development.
func EnvFlagToEnvironment(env string) Environment {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "test":
		return Test
	case "production", "prod":
		return Production
	default:
		return Development
	}
}

const (
	DefaultTfLBaseURL = "https://api.tfl.gov.uk"
	DefaultRTTBaseURL = "https://api.rtt.io/api/v1/json"
)

// DefaultModes is the mode list requested from /Line/Mode.
var DefaultModes = []string{"tube", "overground", "dlr", "elizabeth-line", "national-rail"}

type Config struct {
	Port      int
	Env       Environment
	Verbose   bool
	RateLimit int
	LogLevel  string
	LogFile   string

	TfLBaseURL string
	TfLAppKey  string
	Modes      []string

	RTTBaseURL  string
	RTTUsername string
	RTTPassword string
	// RTTCodes maps TfL station ids to the CRS codes used by Realtime Trains.
	RTTCodes map[string]string

	DatabasePath string
	RedisAddr    string
	CacheTTL     time.Duration

	ArrivalsRefresh time.Duration
	DetailRefresh   time.Duration
	SessionTTL      time.Duration
	PreloadStations bool
}

// Default returns the configuration used when nothing else is supplied.
func Default() Config {
	return Config{
		Port:            4000,
		Env:             Development,
		RateLimit:       100,
		LogLevel:        "info",
		TfLBaseURL:      DefaultTfLBaseURL,
		Modes:           append([]string(nil), DefaultModes...),
		RTTBaseURL:      DefaultRTTBaseURL,
		RTTCodes:        map[string]string{},
		DatabasePath:    "./tubeboard.db",
		CacheTTL:        time.Hour,
		ArrivalsRefresh: 30 * time.Second,
		DetailRefresh:   15 * time.Second,
		SessionTTL:      30 * time.Minute,
	}
}

// HasRTTCredentials reports whether the Realtime Trains provider can be used.
func (c Config) HasRTTCredentials() bool {
	return c.RTTUsername != "" && c.RTTPassword != ""
}

// Validate checks the ranges the server relies on.
func (c Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate limit must not be negative, got %d", c.RateLimit))
	}
	if c.TfLBaseURL == "" {
		errs = append(errs, errors.New("tfl base url is required"))
	}
	if len(c.Modes) == 0 {
		errs = append(errs, errors.New("at least one transport mode is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.ArrivalsRefresh < time.Second {
		errs = append(errs, fmt.Errorf("arrivals refresh %s is below one second", c.ArrivalsRefresh))
	}
	if c.DetailRefresh < time.Second {
		errs = append(errs, fmt.Errorf("detail refresh %s is below one second", c.DetailRefresh))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("session ttl must be positive"))
	}
	if (c.RTTUsername == "") != (c.RTTPassword == "") {
		errs = append(errs, errors.New("rtt username and password must be set together"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// ParseList splits a comma separated flag value, trimming whitespace.
func ParseList(input string) []string {
	if strings.TrimSpace(input) == "" {
		return []string{}
	}
	parts := strings.Split(input, ",")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}

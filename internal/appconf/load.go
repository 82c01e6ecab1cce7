package appconf

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors the YAML configuration file. Zero values mean "keep the
// default".
type FileConfig struct {
	Port      int    `yaml:"port"`
	Env       string `yaml:"env"`
	Verbose   bool   `yaml:"verbose"`
	RateLimit int    `yaml:"rate-limit"`
	LogLevel  string `yaml:"log-level"`
	LogFile   string `yaml:"log-file"`

	TfL struct {
		BaseURL string   `yaml:"base-url"`
		AppKey  string   `yaml:"app-key"`
		Modes   []string `yaml:"modes"`
	} `yaml:"tfl"`

	RTT struct {
		BaseURL  string            `yaml:"base-url"`
		Username string            `yaml:"username"`
		Password string            `yaml:"password"`
		Codes    map[string]string `yaml:"codes"`
	} `yaml:"rtt"`

	DataPath  string `yaml:"data-path"`
	RedisAddr string `yaml:"redis-addr"`
	CacheTTL  string `yaml:"cache-ttl"`

	ArrivalsRefresh string `yaml:"arrivals-refresh"`
	DetailRefresh   string `yaml:"detail-refresh"`
	SessionTTL      string `yaml:"session-ttl"`
	PreloadStations bool   `yaml:"preload-stations"`
}

// LoadFromFile reads and validates a YAML configuration file.
func LoadFromFile(path string) (*FileConfig, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if _, err := fc.durations(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := fc.ToAppConfig().Validate(); err != nil {
		return nil, err
	}
	return &fc, nil
}

type fileDurations struct {
	cacheTTL, arrivals, detail, session time.Duration
}

func (fc *FileConfig) durations() (fileDurations, error) {
	var d fileDurations
	var errs []error
	parse := func(name, value string, dst *time.Duration) {
		if value == "" {
			return
		}
		v, err := time.ParseDuration(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = v
	}
	parse("cache-ttl", fc.CacheTTL, &d.cacheTTL)
	parse("arrivals-refresh", fc.ArrivalsRefresh, &d.arrivals)
	parse("detail-refresh", fc.DetailRefresh, &d.detail)
	parse("session-ttl", fc.SessionTTL, &d.session)
	return d, errors.Join(errs...)
}

// ToAppConfig overlays the file onto Default().
func (fc *FileConfig) ToAppConfig() Config {
	cfg := Default()

	if fc.Port != 0 {
		cfg.Port = fc.Port
	}
	if fc.Env != "" {
		cfg.Env = EnvFlagToEnvironment(fc.Env)
	}
	cfg.Verbose = fc.Verbose
	if fc.RateLimit != 0 {
		cfg.RateLimit = fc.RateLimit
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	cfg.LogFile = fc.LogFile

	if fc.TfL.BaseURL != "" {
		cfg.TfLBaseURL = strings.TrimRight(fc.TfL.BaseURL, "/")
	}
	cfg.TfLAppKey = fc.TfL.AppKey
	if len(fc.TfL.Modes) > 0 {
		cfg.Modes = fc.TfL.Modes
	}

	if fc.RTT.BaseURL != "" {
		cfg.RTTBaseURL = strings.TrimRight(fc.RTT.BaseURL, "/")
	}
	cfg.RTTUsername = fc.RTT.Username
	cfg.RTTPassword = fc.RTT.Password
	for id, code := range fc.RTT.Codes {
		cfg.RTTCodes[id] = strings.ToUpper(code)
	}

	if fc.DataPath != "" {
		cfg.DatabasePath = fc.DataPath
	}
	cfg.RedisAddr = fc.RedisAddr
	cfg.PreloadStations = fc.PreloadStations

	// durations() errors are surfaced by LoadFromFile; here unparsable values
	// keep their defaults.
	d, _ := fc.durations()
	if d.cacheTTL > 0 {
		cfg.CacheTTL = d.cacheTTL
	}
	if d.arrivals > 0 {
		cfg.ArrivalsRefresh = d.arrivals
	}
	if d.detail > 0 {
		cfg.DetailRefresh = d.detail
	}
	if d.session > 0 {
		cfg.SessionTTL = d.session
	}
	return cfg
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with the TUBEBOARD_*, TFL_* and RTT_* variables
// visible through lookup. Use os.LookupEnv in production.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	num("TUBEBOARD_PORT", &cfg.Port)
	if v, ok := lookup("TUBEBOARD_ENV"); ok && v != "" {
		cfg.Env = EnvFlagToEnvironment(v)
	}
	num("TUBEBOARD_RATE_LIMIT", &cfg.RateLimit)
	str("TUBEBOARD_LOG_LEVEL", &cfg.LogLevel)
	str("TUBEBOARD_LOG_FILE", &cfg.LogFile)
	str("TUBEBOARD_DB", &cfg.DatabasePath)
	str("TUBEBOARD_REDIS_ADDR", &cfg.RedisAddr)
	dur("TUBEBOARD_CACHE_TTL", &cfg.CacheTTL)
	dur("TUBEBOARD_SESSION_TTL", &cfg.SessionTTL)

	str("TFL_BASE_URL", &cfg.TfLBaseURL)
	str("TFL_APP_KEY", &cfg.TfLAppKey)
	if v, ok := lookup("TFL_MODES"); ok && v != "" {
		cfg.Modes = ParseList(v)
	}

	str("RTT_BASE_URL", &cfg.RTTBaseURL)
	str("RTT_USERNAME", &cfg.RTTUsername)
	str("RTT_PASSWORD", &cfg.RTTPassword)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %w", errors.Join(errs...))
	}
	return nil
}

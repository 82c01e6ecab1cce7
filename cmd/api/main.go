package main

import (
	"flag"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"tubeboard.app/internal/appconf"
	"tubeboard.app/internal/buildinfo"
)

func main() {
	cfg, err := loadConfig(os.Args[1:], os.LookupEnv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	coreApp, err := BuildApplication(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build application: %v\n", err)
		os.Exit(1)
	}

	srv, api, err := CreateServer(coreApp, cfg)
	if err != nil {
		coreApp.Close()
		fmt.Fprintf(os.Stderr, "failed to create server: %v\n", err)
		os.Exit(1)
	}

	if err := Run(srv, coreApp, api); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig layers defaults, the YAML file, .env, the environment and
// finally the flags that were set explicitly.
func loadConfig(args []string, lookup func(string) (string, bool)) (appconf.Config, error) {
	fs := flag.NewFlagSet("tubeboard", flag.ContinueOnError)
	var (
		configFile = fs.String("config", "", "path to a YAML configuration file")
		envFile    = fs.String("env-file", ".env", "path to a .env file, ignored when missing")
		version    = fs.Bool("version", false, "print the version and exit")

		port      = fs.Int("port", 4000, "API server port")
		env       = fs.String("env", "development", "environment (development|test|production)")
		verbose   = fs.Bool("verbose", false, "log database setup")
		rateLimit = fs.Int("rate-limit", 100, "requests per second per client, 0 disables")
		logLevel  = fs.String("log-level", "info", "debug, info, warn or error")
		logFile   = fs.String("log-file", "", "also write logs to this rotated file")

		appKey   = fs.String("tfl-app-key", "", "TfL Unified API app key")
		modes    = fs.String("modes", "", "comma separated TfL modes")
		dataPath = fs.String("data-path", "./tubeboard.db", "preferences database path")
		redis    = fs.String("redis-addr", "", "redis address for the shared static data cache")
		rttCodes = fs.String("rtt-codes", "", "stationID=CRS pairs for the rail board")
		preload  = fs.Bool("preload-stations", false, "index every line's stations at startup")
		cacheTTL = fs.Duration("cache-ttl", time.Hour, "TfL static data cache lifetime")
	)
	if err := fs.Parse(args); err != nil {
		return appconf.Config{}, err
	}
	if *version {
		fmt.Printf("tubeboard %s (%s)\n", buildinfo.Version, buildinfo.ShortHash())
		os.Exit(0)
	}

	cfg := appconf.Default()
	if *configFile != "" {
		fc, err := appconf.LoadFromFile(*configFile)
		if err != nil {
			return appconf.Config{}, err
		}
		cfg = fc.ToAppConfig()
	}

	if err := appconf.LoadDotEnv(*envFile); err != nil {
		return appconf.Config{}, err
	}
	if err := appconf.ApplyEnv(&cfg, lookup); err != nil {
		return appconf.Config{}, err
	}

	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "env":
			cfg.Env = appconf.EnvFlagToEnvironment(*env)
		case "verbose":
			cfg.Verbose = *verbose
		case "rate-limit":
			cfg.RateLimit = *rateLimit
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-file":
			cfg.LogFile = *logFile
		case "tfl-app-key":
			cfg.TfLAppKey = *appKey
		case "modes":
			cfg.Modes = appconf.ParseList(*modes)
		case "data-path":
			cfg.DatabasePath = *dataPath
		case "redis-addr":
			cfg.RedisAddr = *redis
		case "preload-stations":
			cfg.PreloadStations = *preload
		case "cache-ttl":
			cfg.CacheTTL = *cacheTTL
		case "rtt-codes":
			codes, err := ParseRTTCodes(*rttCodes)
			if err != nil {
				flagErr = err
				return
			}
			for id, code := range codes {
				cfg.RTTCodes[id] = code
			}
		}
	})
	if flagErr != nil {
		return appconf.Config{}, flagErr
	}

	if err := cfg.Validate(); err != nil {
		return appconf.Config{}, err
	}
	return cfg, nil
}

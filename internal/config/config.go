// Package config provides functionality for managing configuration options
// for the draft daemon and client using command-line flags, a JSON config
// file, a .env file and environment variables.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Storage drivers accepted in StorageDriver.
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Options holds the configuration values for the application.
// Precedence, lowest first: defaults, flags, config file, environment.
type Options struct {
	// Addr is the local draft API listening address (ip:port).
	Addr string `json:"address" env:"DRAFTD_ADDRESS"`

	// BackendURL is the base URL of the school management REST API.
	BackendURL   string `json:"backend_url" env:"BACKEND_URL"`
	BackendToken string `json:"backend_token" env:"BACKEND_TOKEN"`

	StorageDriver string `json:"storage_driver" env:"STORAGE_DRIVER"`
	StorageDSN    string `json:"storage_dsn" env:"STORAGE_DSN"`
	DataDir       string `json:"data_dir" env:"DATA_DIR"`

	// EncryptionKeyFile, when set, seals persisted drafts with a key
	// derived from the file contents.
	EncryptionKeyFile string `json:"encryption_key_file" env:"ENCRYPTION_KEY_FILE"`

	DebounceMS    int           `json:"debounce_ms" env:"DEBOUNCE_MS"`
	ProbeInterval time.Duration `json:"-" env:"PROBE_INTERVAL"`

	// AllowedOrigins is a comma separated list of CORS origins.
	AllowedOrigins string `json:"allowed_origins" env:"ALLOWED_ORIGINS"`
	// APIToken, when set, is required as a bearer token on the local API.
	APIToken string `json:"api_token" env:"API_TOKEN"`
	LogLevel string `json:"log_level" env:"LOG_LEVEL"`

	TLSCert string `json:"tls_cert" env:"TLS_CERT"`
	TLSKey  string `json:"tls_key" env:"TLS_KEY"`
	TLSCA   string `json:"tls_ca" env:"TLS_CA"`

	// Config is the path to the config file.
	Config string `json:"-" env:"CONFIG"`

	// ShowVersion asks the binary to print build metadata and exit.
	ShowVersion bool `json:"-"`
}

// Default returns Options with every default applied.
func Default() *Options {
	return &Options{
		Addr:           "localhost:8090",
		BackendURL:     "http://localhost:8080/api",
		StorageDriver:  DriverFile,
		DataDir:        ".drafts",
		DebounceMS:     1000,
		ProbeInterval:  5 * time.Second,
		AllowedOrigins: "http://localhost:*,http://127.0.0.1:*",
		LogLevel:       "info",
		Config:         "config.json",
	}
}

// Parse loads an optional .env file and then parses os.Args and the
// process environment.
func Parse() (*Options, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Load(os.Args[0], os.Args[1:], os.Environ())
}

// Load builds Options from args and environ without touching global state.
func Load(name string, args, environ []string) (*Options, error) {
	options := Default()

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&options.Addr, "a", options.Addr, "run local draft API on ip:port")
	fs.StringVar(&options.BackendURL, "b", options.BackendURL, "backend base URL")
	fs.StringVar(&options.StorageDriver, "s", options.StorageDriver, "storage driver: file, sqlite, postgres or memory")
	fs.StringVar(&options.StorageDSN, "d", options.StorageDSN, "storage DSN for sqlite or postgres")
	fs.StringVar(&options.DataDir, "data", options.DataDir, "directory for the file storage driver")
	fs.StringVar(&options.LogLevel, "l", options.LogLevel, "log level")
	fs.StringVar(&options.Config, "config", options.Config, "path to config file")
	fs.StringVar(&options.Config, "c", options.Config, "path to config file (shorthand)")
	fs.BoolVar(&options.ShowVersion, "version", false, "show build version and date")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	es, err := env.EnvironToEnvSet(environ)
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if configPath := es["CONFIG"]; configPath != "" {
		options.Config = configPath
	}

	if err := loadFile(options); err != nil {
		return nil, err
	}

	if err := env.Unmarshal(es, options); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := options.Validate(); err != nil {
		return nil, err
	}
	return options, nil
}

// loadFile overlays the JSON config file when it exists.
func loadFile(options *Options) error {
	if options.Config == "" {
		return nil
	}
	data, err := os.ReadFile(options.Config)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error while reading config file: %w", err)
	}

	file := struct {
		*Options
		ProbeInterval string `json:"probe_interval"`
	}{Options: options}
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("error while parsing config file: %w", err)
	}
	if file.ProbeInterval != "" {
		d, err := time.ParseDuration(file.ProbeInterval)
		if err != nil {
			return fmt.Errorf("error while parsing config file: probe_interval: %w", err)
		}
		options.ProbeInterval = d
	}
	return nil
}

// Validate checks values that would otherwise fail later at startup.
func (o *Options) Validate() error {
	switch o.StorageDriver {
	case DriverFile, DriverMemory:
	case DriverSQLite, DriverPostgres:
		if o.StorageDSN == "" {
			return fmt.Errorf("storage driver %q requires a DSN", o.StorageDriver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", o.StorageDriver)
	}
	if o.DebounceMS < 0 {
		return errors.New("debounce_ms must not be negative")
	}
	if o.ProbeInterval <= 0 {
		return errors.New("probe interval must be positive")
	}
	return nil
}

// Debounce returns DebounceMS as a duration.
func (o *Options) Debounce() time.Duration {
	return time.Duration(o.DebounceMS) * time.Millisecond
}

// Origins splits AllowedOrigins.
func (o *Options) Origins() []string {
	var out []string
	for _, s := range strings.Split(o.AllowedOrigins, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

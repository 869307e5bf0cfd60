// Package config provides functionality for managing configuration options
// for the emulator and the client using command-line flags, environment
// variables and JSON files.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"
)

// Duration is a time.Duration that reads "90s"-style strings from JSON and flags.
type Duration time.Duration

// Set implements flag.Value.
func (d *Duration) Set(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d *Duration) String() string { return time.Duration(*d).String() }

// UnmarshalJSON accepts a duration string.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	return d.Set(s)
}

// Options holds the configuration values for the emulator.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"address"`

	// DatabaseDSN holds the database connection string for the application.
	DatabaseDSN string `json:"database_dsn"`

	// Config is the path to the Config file.
	Config string `json:"-"`

	// LogLevel is a zap level name.
	LogLevel string `json:"log_level"`

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `json:"tls_cert"`
	TLSKey  string `json:"tls_key"`

	// SessionSecret and ProviderSecret sign the emulator's tokens. Random
	// secrets are generated at startup when they are empty.
	SessionSecret  string `json:"session_secret"`
	ProviderSecret string `json:"provider_secret"`

	Issuer      string   `json:"issuer"`
	SessionTTL  Duration `json:"session_ttl"`
	ProviderTTL Duration `json:"provider_ttl"`

	// OrphanInterval is how often identities without an account record are
	// reported; zero disables the reporter.
	OrphanInterval Duration `json:"orphan_interval"`
	// OrphanGrace excludes identities younger than this from the report.
	OrphanGrace Duration `json:"orphan_grace"`
}

func defaults() *Options {
	return &Options{
		Port:           "localhost:8080",
		Config:         "config.json",
		LogLevel:       "info",
		Issuer:         "doafavor-emulator",
		SessionTTL:     Duration(time.Hour),
		ProviderTTL:    Duration(5 * time.Minute),
		OrphanInterval: Duration(10 * time.Minute),
		OrphanGrace:    Duration(time.Minute),
	}
}

// Parse parses the process's command-line flags and environment variables.
// It exits the process on invalid configuration.
func Parse() *Options {
	opts, err := ParseArgs(os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	return opts
}

// ParseArgs resolves options in order of increasing precedence: defaults,
// JSON config file, flags, environment variables.
func ParseArgs(args []string, getenv func(string) string) (*Options, error) {
	options := defaults()
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.StringVar(&options.Port, "a", options.Port, "run on ip:port server")
	fs.StringVar(&options.DatabaseDSN, "d", "", "db address")
	fs.StringVar(&options.Config, "config", options.Config, "path to config file")
	fs.StringVar(&options.Config, "c", options.Config, "path to config file (shorthand)")
	fs.StringVar(&options.LogLevel, "log-level", options.LogLevel, "log level")
	fs.StringVar(&options.TLSCert, "tls-cert", "", "server certificate (PEM)")
	fs.StringVar(&options.TLSKey, "tls-key", "", "server private key (PEM)")
	fs.StringVar(&options.Issuer, "issuer", options.Issuer, "token issuer")
	fs.Var(&options.SessionTTL, "session-ttl", "session token lifetime")
	fs.Var(&options.ProviderTTL, "provider-ttl", "provider token lifetime")
	fs.Var(&options.OrphanInterval, "orphan-interval", "orphaned identity report interval (0 disables)")
	fs.Var(&options.OrphanGrace, "orphan-grace", "minimum identity age before it is reported as orphaned")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if configPath := getenv("CONFIG"); configPath != "" {
		options.Config = configPath
	}
	if options.Config != "" {
		if err := loadFile(options.Config, options); err != nil {
			return nil, err
		}
		// flags win over the file
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
	}

	if serverAddress := getenv("SERVER_ADDRESS"); serverAddress != "" {
		options.Port = serverAddress
	}
	if dsn := getenv("DATABASE_DSN"); dsn != "" {
		options.DatabaseDSN = dsn
	}
	if s := getenv("SESSION_SECRET"); s != "" {
		options.SessionSecret = s
	}
	if s := getenv("PROVIDER_SECRET"); s != "" {
		options.ProviderSecret = s
	}

	if options.DatabaseDSN == "" {
		return nil, errors.New("database DSN is required")
	}
	if (options.TLSCert == "") != (options.TLSKey == "") {
		return nil, errors.New("tls-cert and tls-key must be set together")
	}
	return options, nil
}

// loadFile merges the JSON file at path into dst. A missing file is not an error.
func loadFile(path string, dst any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error while reading config file: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("error while parsing config file: %w", err)
	}
	return nil
}

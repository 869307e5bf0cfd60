package config

import (
	"fmt"
	"os"
)

// Client holds the configuration of the doafavor CLI.
type Client struct {
	// URL is the emulator base URL.
	URL string `json:"url"`
	// CAFile optionally pins the CA that signed the emulator's certificate.
	CAFile string `json:"ca_file"`
	// Platform selects the federated flow: "web" or "native".
	Platform string `json:"platform"`
	// Lookup is the login lookup field: "email" or "username".
	Lookup string `json:"lookup"`
	// Keying is how account records are keyed: "uid" or "generated".
	Keying   string `json:"keying"`
	LogLevel string `json:"log_level"`
}

// DefaultClient returns the built-in client configuration.
func DefaultClient() Client {
	return Client{
		URL:      "http://localhost:8080",
		Platform: "web",
		Lookup:   "email",
		Keying:   "uid",
		LogLevel: "warn",
	}
}

// LoadClient reads the client configuration from the JSON file at path (if
// present) and then from DOAFAVOR_* environment variables.
func LoadClient(path string) (Client, error) {
	return loadClient(path, os.Getenv)
}

func loadClient(path string, getenv func(string) string) (Client, error) {
	cfg := DefaultClient()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Client{}, err
		}
	}

	for env, dst := range map[string]*string{
		"DOAFAVOR_URL":       &cfg.URL,
		"DOAFAVOR_CA":        &cfg.CAFile,
		"DOAFAVOR_PLATFORM":  &cfg.Platform,
		"DOAFAVOR_LOOKUP":    &cfg.Lookup,
		"DOAFAVOR_KEYING":    &cfg.Keying,
		"DOAFAVOR_LOG_LEVEL": &cfg.LogLevel,
	} {
		if v := getenv(env); v != "" {
			*dst = v
		}
	}
	return cfg, cfg.Validate()
}

// Validate reports the first enumerated setting with an unknown value.
func (c Client) Validate() error {
	switch {
	case c.URL == "":
		return fmt.Errorf("url is required")
	case c.Platform != "web" && c.Platform != "native":
		return fmt.Errorf("platform must be web or native, got %q", c.Platform)
	case c.Lookup != "email" && c.Lookup != "username":
		return fmt.Errorf("lookup must be email or username, got %q", c.Lookup)
	case c.Keying != "uid" && c.Keying != "generated":
		return fmt.Errorf("keying must be uid or generated, got %q", c.Keying)
	}
	return nil
}

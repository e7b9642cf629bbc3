package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrConfigurationMissing is returned when a required secret, credential
// file or environment variable is absent.
var ErrConfigurationMissing = errors.New("configuration missing")

// Duration decodes TOML strings such as "60s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Server struct {
	Addr        string `toml:"addr"`
	CORSOrigins string `toml:"cors_origins"`
	// RateLimit is requests per minute per client IP; 0 disables it.
	RateLimit int `toml:"rate_limit"`
}

type OAuth struct {
	ClientID        string `toml:"client_id"`
	ClientSecret    string `toml:"client_secret"`
	RedirectURL     string `toml:"redirect_url"`
	CredentialsFile string `toml:"credentials_file"`
	// Scopes are short names (readonly, modify, labels) or full URLs.
	Scopes []string `toml:"scopes"`
}

type Classifier struct {
	Kind           string   `toml:"kind"` // tfidf | keyword
	TrainingCSV    string   `toml:"training_csv"`
	ModelPath      string   `toml:"model_path"`
	UseSeed        bool     `toml:"use_seed"`
	Keywords       []string `toml:"keywords"`
	GmailctlConfig string   `toml:"gmailctl_config"`
	GmailctlBinary string   `toml:"gmailctl_binary"`
	MaxIter        int      `toml:"max_iter"`
}

type Pipeline struct {
	MaxResults    int     `toml:"max_results"`
	Label         string  `toml:"label"`
	Concurrency   int     `toml:"concurrency"`
	DryRun        bool    `toml:"dry_run"`
	MoveThreshold float64 `toml:"move_threshold"`
	UseSnippet    bool    `toml:"use_snippet"`
	RPS           int     `toml:"rps"`
}

type Poll struct {
	Enabled  bool     `toml:"enabled"`
	Interval Duration `toml:"interval"`
}

type Fallback struct {
	Placeholder bool `toml:"placeholder"`
}

// Config is the full mailsorter configuration.
type Config struct {
	Server     Server     `toml:"server"`
	OAuth      OAuth      `toml:"oauth"`
	Classifier Classifier `toml:"classifier"`
	Pipeline   Pipeline   `toml:"pipeline"`
	Poll       Poll       `toml:"poll"`
	Fallback   Fallback   `toml:"fallback"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: Server{Addr: ":5000", CORSOrigins: "*", RateLimit: 100},
		OAuth: OAuth{
			RedirectURL: "http://localhost:5000/auth/callback",
			Scopes:      []string{"readonly", "modify"},
		},
		Classifier: Classifier{
			Kind:           "tfidf",
			TrainingCSV:    "emails.csv",
			UseSeed:        true,
			GmailctlBinary: "gmailctl",
		},
		Pipeline: Pipeline{
			MaxResults:  10,
			Label:       "Filtered-Unwanted",
			Concurrency: 1,
			RPS:         4,
		},
		Poll: Poll{Interval: Duration{60 * time.Second}},
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("%w: %s", ErrConfigurationMissing, path)
			}
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("MAILSORTER_CLIENT_ID"); ok && v != "" {
		c.OAuth.ClientID = v
	}
	if v, ok := lookup("MAILSORTER_CLIENT_SECRET"); ok && v != "" {
		c.OAuth.ClientSecret = v
	}
	if v, ok := lookup("MAILSORTER_REDIRECT_URL"); ok && v != "" {
		c.OAuth.RedirectURL = v
	}
	if v, ok := lookup("MAILSORTER_CREDENTIALS_FILE"); ok && v != "" {
		c.OAuth.CredentialsFile = v
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 {
			return fmt.Errorf("invalid PORT %q", v)
		}
		c.Server.Addr = fmt.Sprintf(":%d", port)
	}
	return nil
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	switch c.Classifier.Kind {
	case "tfidf", "keyword":
	default:
		return fmt.Errorf("classifier.kind must be tfidf or keyword, got %q", c.Classifier.Kind)
	}
	if c.Pipeline.MoveThreshold < 0 || c.Pipeline.MoveThreshold > 100 {
		return fmt.Errorf("pipeline.move_threshold must be within [0, 100], got %v", c.Pipeline.MoveThreshold)
	}
	if c.Poll.Enabled && c.Poll.Interval.Duration <= 0 {
		return fmt.Errorf("poll.interval must be positive")
	}
	return nil
}

// RequireOAuthClient reports ErrConfigurationMissing when neither a client
// secrets file nor an explicit client id/secret is configured.
func (c Config) RequireOAuthClient() error {
	if c.OAuth.CredentialsFile != "" {
		return nil
	}
	var missing []string
	if c.OAuth.ClientID == "" {
		missing = append(missing, "oauth.client_id (MAILSORTER_CLIENT_ID)")
	}
	if c.OAuth.ClientSecret == "" {
		missing = append(missing, "oauth.client_secret (MAILSORTER_CLIENT_SECRET)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrConfigurationMissing, strings.Join(missing, ", "))
	}
	return nil
}

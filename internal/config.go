package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Fallbacks for watcher timing when the configured values are zero.
const (
	defaultDebounce    = 400 * time.Millisecond
	defaultTagThrottle = 2 * time.Second
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Profiles ProfilesConfig    `yaml:"profiles"`
	Watcher  WatcherConfig     `yaml:"watcher"`
	Auth     AuthConfig        `yaml:"auth"`
	AI       AIConfig          `yaml:"ai"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Profiles.Validate(); err != nil {
		return err
	}
	if err := c.Watcher.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.AI.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration. Host defaults to loopback;
// setting it to "" explicitly binds every interface.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Address returns the HTTP server listen address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// ProfilesConfig locates the profile store and the vault used when no
// profile exists yet.
//
// Dir is where profiles, the active-profile marker, and per-profile parse
// caches live; empty means the per-user default directory.
// DefaultNotesDir seeds the notes directory of the profile created on
// first run; a leading ~ is expanded.
type ProfilesConfig struct {
	Dir             string `yaml:"dir"`
	DefaultNotesDir string `yaml:"default_notes_dir"`
}

// Validate validates the profiles configuration.
func (c *ProfilesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultNotesDir, validation.Required),
	)
}

// WatcherConfig tunes how file events become cache updates.
type WatcherConfig struct {
	// DebounceMS is the quiet window after a filesystem event before the
	// accumulated batch is processed.
	DebounceMS int `yaml:"debounce_ms"`
	// TagThrottleMS bounds how often tag vocabulary events go out to
	// subscribers during bulk changes.
	TagThrottleMS int `yaml:"tag_throttle_ms"`
}

// Debounce returns the batch window as a duration.
func (c *WatcherConfig) Debounce() time.Duration {
	if c.DebounceMS <= 0 {
		return defaultDebounce
	}
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// TagThrottle returns the tag event throttle as a duration.
func (c *WatcherConfig) TagThrottle() time.Duration {
	if c.TagThrottleMS <= 0 {
		return defaultTagThrottle
	}
	return time.Duration(c.TagThrottleMS) * time.Millisecond
}

// Validate validates the watcher configuration.
func (c *WatcherConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DebounceMS, validation.Min(1), validation.Max(60_000)),
		validation.Field(&c.TagThrottleMS, validation.Min(1), validation.Max(600_000)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// AIConfig holds tag-suggestion backend configuration. The backend is a
// local inference server speaking the Ollama generate API. Disabled by
// default; when disabled the rest of the section is ignored.
type AIConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	TimeoutSeconds   int     `yaml:"timeout_seconds"`
	RequestRateLimit float64 `yaml:"request_rate_limit"`
	RequestRateBurst int     `yaml:"request_rate_burst"`
}

// Timeout returns the per-request timeout as a duration.
func (c *AIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Validate validates the AI configuration.
func (c *AIConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required),
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.TimeoutSeconds, validation.Min(1), validation.Max(600)),
		validation.Field(&c.RequestRateLimit, validation.Min(0.0)),
		validation.Field(&c.RequestRateBurst, validation.Min(1)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Host: "127.0.0.1",
				Port: 4816,
			},
		},
		Profiles: ProfilesConfig{
			DefaultNotesDir: "~/noteban",
		},
		Watcher: WatcherConfig{
			DebounceMS:    400,
			TagThrottleMS: 2000,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		AI: AIConfig{
			BaseURL:          "http://127.0.0.1:11434",
			Model:            "llama3.2",
			TimeoutSeconds:   30,
			RequestRateLimit: 1,
			RequestRateBurst: 2,
		},
	}
}

package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Cache   CacheConfig       `yaml:"cache"`
	Options OptionsConfig     `yaml:"options"`
	Remote  RemoteConfig      `yaml:"remote"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Options.Validate(); err != nil {
		return err
	}
	if err := c.Remote.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
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

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// CacheConfig holds the local SQLite cache configuration.
type CacheConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// OptionsConfig holds bookshelf behavior options.
type OptionsConfig struct {
	// AutoExpand creates a new bookshelf page when a create targets a full
	// page instead of failing.
	AutoExpand bool `yaml:"auto_expand"`
	// ThumbWidth is the maximum image artifact width in pixels.
	ThumbWidth int `yaml:"thumb_width"`
	// Quality is the JPEG re-encode quality in (0, 1].
	Quality float64 `yaml:"quality"`
}

// Validate validates the options configuration.
func (c *OptionsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ThumbWidth, validation.Required, validation.Min(16), validation.Max(4096)),
		validation.Field(&c.Quality, validation.Required, validation.Min(0.01), validation.Max(1.0)),
	)
}

// RemoteConfig holds the cloud mirror configuration. With Enabled false the
// application runs local-only and the remote section is ignored.
type RemoteConfig struct {
	Enabled bool        `yaml:"enabled"`
	UserID  string      `yaml:"user_id"`
	Redis   RedisConfig `yaml:"redis"`
	Minio   MinioConfig `yaml:"minio"`
}

// Validate validates the remote configuration.
func (c *RemoteConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.UserID, validation.Required),
	); err != nil {
		return err
	}
	if err := c.Redis.Validate(); err != nil {
		return err
	}
	return c.Minio.Validate()
}

// RedisConfig holds the remote document store connection.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// Validate validates the redis configuration.
func (c *RedisConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required),
	)
}

// MinioConfig holds the remote object store connection.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Validate validates the minio configuration.
func (c *MinioConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Endpoint, validation.Required),
		validation.Field(&c.AccessKey, validation.Required),
		validation.Field(&c.SecretKey, validation.Required),
		validation.Field(&c.Bucket, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
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

// NewDefaultConfig returns a new Config with sensible default values.
// Defaults mirror the bookshelf UI: 150px thumbnails at 0.8 quality with
// auto-expand on.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Cache: CacheConfig{
			Path: "./stacks.db",
		},
		Options: OptionsConfig{
			AutoExpand: true,
			ThumbWidth: 150,
			Quality:    0.8,
		},
		Remote: RemoteConfig{
			Enabled: false,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}

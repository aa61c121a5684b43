package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

var suffixRule = validation.Match(regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]*$`)).
	Error("must be a file suffix without a leading dot")

var noCommaRe = regexp.MustCompile(`^[^,]*$`)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Content   ContentConfig     `yaml:"content"`
	Notebooks NotebooksConfig   `yaml:"notebooks"`
	Index     IndexConfig       `yaml:"index"`
	Publish   PublishConfig     `yaml:"publish"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Auth      AuthConfig        `yaml:"auth"`
	Watch     WatchConfig       `yaml:"watch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Content.Validate(); err != nil {
		return fmt.Errorf("content: %w", err)
	}
	if err := c.Notebooks.Validate(); err != nil {
		return fmt.Errorf("notebooks: %w", err)
	}
	if err := c.Index.Validate(); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	if err := c.Publish.Validate(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if err := c.Watch.Validate(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if samePath(c.Content.Path, c.Notebooks.Path) {
		return fmt.Errorf("content.path and notebooks.path must differ, both are %q", c.Content.Path)
	}
	// The notebook copy and its metadata live side by side in the content store.
	if c.Content.MetadataSuffix == c.Notebooks.Suffix {
		return fmt.Errorf("content.metadata_suffix must differ from notebooks.suffix %q", c.Notebooks.Suffix)
	}
	return nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
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

// ContentConfig is the directory the site generator reads published
// notebooks and metadata from.
type ContentConfig struct {
	Path           string `yaml:"path"`
	MetadataSuffix string `yaml:"metadata_suffix"`
}

// Validate validates the content configuration.
func (c *ContentConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.MetadataSuffix, validation.Required, suffixRule),
	)
}

// NotebooksConfig is the directory of source notebooks.
type NotebooksConfig struct {
	Path         string `yaml:"path"`
	Suffix       string `yaml:"suffix"`
	StripOutputs bool   `yaml:"strip_outputs"`
}

// Validate validates the notebooks configuration.
func (c *NotebooksConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Suffix, validation.Required, suffixRule),
	)
}

// IndexConfig locates the JSON search index file.
type IndexConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// PublishConfig holds defaults applied to newly published pages.
type PublishConfig struct {
	DefaultAuthor string `yaml:"default_author"`
}

// Validate validates the publish configuration. Authors are stored as a
// comma-separated list, so one author name cannot contain a comma.
func (c *PublishConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultAuthor,
			validation.Match(noCommaRe).Error("must not contain a comma")),
	)
}

// SQLiteConfig locates the optional search mirror. An empty path disables it.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Enabled reports whether the mirror is configured.
func (c *SQLiteConfig) Enabled() bool {
	return c.Path != ""
}

// WatchConfig tunes watch mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local preview.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
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
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Content: ContentConfig{
			Path:           "./content",
			MetadataSuffix: "ipynb-meta",
		},
		Notebooks: NotebooksConfig{
			Path:   "./notebooks",
			Suffix: "ipynb",
		},
		Index: IndexConfig{
			Path: "./search/index.json",
		},
		SQLite: SQLiteConfig{
			Path: "",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Watch: WatchConfig{
			Debounce: 300 * time.Millisecond,
		},
	}
}

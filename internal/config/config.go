// Package config loads and validates the application configuration from a
// JSON file, with environment variables layered on top.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	apperrors "github.com/quimera/catalog-ingest/internal/pkg/errors"
	"github.com/quimera/catalog-ingest/pkg/cronx"
)

const (
	// AppName is the application's global identifier.
	AppName = "catalog-ingest"

	// DefaultFilename is the config file used when no explicit path is
	// given on the command line.
	DefaultFilename = AppName + ".json"

	// envPrefix marks the environment variables that override file
	// settings, e.g. CATALOG_CATALOG__AUTH__CLIENT_SECRET.
	envPrefix = "CATALOG_"
)

// AppConfig is the root of the application configuration.
type AppConfig struct {
	Debug     bool            `json:"debug"`
	Log       LogConfig       `json:"log"`
	Catalog   CatalogConfig   `json:"catalog"`
	Scrape    ScrapeConfig    `json:"scrape"`
	API       APIConfig       `json:"api"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Notifier  NotifierConfig  `json:"notifier"`
}

func (c *AppConfig) validate() error {
	if err := c.Catalog.validate(); err != nil {
		return err
	}
	if err := c.Scrape.validate(); err != nil {
		return err
	}
	if err := c.API.validate(); err != nil {
		return err
	}
	if err := c.Scheduler.validate(); err != nil {
		return err
	}
	return c.Notifier.validate()
}

// VerifyRecommendations reports non-fatal configuration smells, such as a
// well-known listen port that would need elevated privileges.
func (c *AppConfig) VerifyRecommendations() []string {
	var warnings []string
	if c.API.ListenPort < 1024 {
		warnings = append(warnings, fmt.Sprintf("the API is configured on a system reserved port (%d); running it may require elevated privileges", c.API.ListenPort))
	}
	if !c.Notifier.Telegram.Enabled {
		warnings = append(warnings, "telegram notifications are disabled; run reports will only appear in the logs")
	}
	return warnings
}

// LogConfig controls the rotating log files.
type LogConfig struct {
	Dir        string `json:"dir"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
}

// CatalogConfig points at the remote catalog API and its OAuth tenant.
type CatalogConfig struct {
	BaseURL string     `json:"base_url" validate:"required,url"`
	Auth    AuthConfig `json:"auth"`
}

func (c *CatalogConfig) validate() error {
	if err := validateStruct(c, "catalog"); err != nil {
		return err
	}
	return validateStruct(&c.Auth, "catalog.auth")
}

// AuthConfig holds the client-credentials grant settings.
type AuthConfig struct {
	TokenURL     string `json:"token_url" validate:"required,url"`
	ClientID     string `json:"client_id" validate:"required"`
	ClientSecret string `json:"client_secret" validate:"required"`
	Audience     string `json:"audience"`
	Scope        string `json:"scope"`
}

// ScrapeConfig declares which source feeds each store.
type ScrapeConfig struct {
	Sources []SourceConfig `json:"sources"`

	// BrandAliases extends the built-in brand normalization table,
	// mapping raw feed spellings to canonical brand names.
	BrandAliases map[string]string `json:"brand_aliases"`
}

func (c *ScrapeConfig) validate() error {
	if len(c.Sources) == 0 {
		return apperrors.New(apperrors.InvalidInput, "no scrape sources are configured (scrape.sources)")
	}

	seen := make(map[int64]bool, len(c.Sources))
	for _, src := range c.Sources {
		if err := validateStruct(&src, fmt.Sprintf("scrape source for store %d", src.StoreID)); err != nil {
			return err
		}
		if seen[src.StoreID] {
			return apperrors.Newf(apperrors.InvalidInput, "duplicate scrape source for store %d", src.StoreID)
		}
		seen[src.StoreID] = true
	}
	return nil
}

// SourceConfig binds one store to a scraper source. The options block is
// interpreted by the source kind.
type SourceConfig struct {
	StoreID int64          `json:"store_id" validate:"required"`
	Kind    string         `json:"kind" validate:"required,oneof=jsonfeed htmlcatalog"`
	Options map[string]any `json:"options" validate:"required"`
}

// APIConfig configures the HTTP control surface.
type APIConfig struct {
	ListenPort int    `json:"listen_port" validate:"min=1,max=65535"`
	AppKey     string `json:"app_key" validate:"required"`
}

func (c *APIConfig) validate() error {
	if err := validateStruct(c, "api"); err != nil {
		return err
	}
	if strings.TrimSpace(c.AppKey) == "" {
		return apperrors.New(apperrors.InvalidInput, "the API key (api.app_key) must not be blank")
	}
	return nil
}

// SchedulerConfig controls the periodic full catalog run.
type SchedulerConfig struct {
	Runnable bool   `json:"runnable"`
	TimeSpec string `json:"time_spec"`
}

func (c *SchedulerConfig) validate() error {
	if !c.Runnable {
		return nil
	}
	if err := cronx.Validate(c.TimeSpec); err != nil {
		return apperrors.Wrap(err, apperrors.InvalidInput, "the scheduler time spec (scheduler.time_spec) is not a valid cron expression")
	}
	return nil
}

// NotifierConfig configures the run report channel.
type NotifierConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

func (c *NotifierConfig) validate() error {
	if !c.Telegram.Enabled {
		return nil
	}
	return validateStruct(&c.Telegram, "notifier.telegram")
}

// TelegramConfig holds the bot credentials for run reports.
type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token" validate:"required,telegram_bot_token"`
	ChatID   int64  `json:"chat_id" validate:"required"`
}

// Load reads the default configuration file.
func Load() (*AppConfig, error) {
	return LoadWithFile(DefaultFilename)
}

// LoadWithFile builds the AppConfig from built-in defaults, the given JSON
// file and CATALOG_-prefixed environment variables, in ascending priority.
func LoadWithFile(filename string) (*AppConfig, error) {
	k := koanf.New(".")

	err := k.Load(confmap.Provider(map[string]any{
		"log.dir":             "logs",
		"log.max_size_mb":     100,
		"log.max_backups":     20,
		"api.listen_port":     8480,
		"scheduler.time_spec": "0 0 7 * * *",
	}, "."), nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "failed to load built-in configuration defaults")
	}

	if err := k.Load(file.Provider(filename), json.Parser()); err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Wrapf(err, apperrors.System, "configuration file not found: '%s'", filename)
		}
		return nil, apperrors.Wrapf(err, apperrors.InvalidInput, "failed to read configuration file '%s'", filename)
	}

	// double underscores express nesting:
	// CATALOG_CATALOG__AUTH__CLIENT_SECRET -> catalog.auth.client_secret
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, apperrors.Wrap(err, apperrors.System, "failed to load environment overrides")
	}

	unmarshalConf := koanf.UnmarshalConf{
		Tag: "json",
		DecoderConfig: &mapstructure.DecoderConfig{
			ErrorUnused:      true,
			WeaklyTypedInput: true,
		},
	}
	var appConfig AppConfig
	if err := k.UnmarshalWithConf("", &appConfig, unmarshalConf); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.InvalidInput, "configuration file '%s' does not match the expected structure", filename)
	}

	if err := appConfig.validate(); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.InvalidInput, "configuration file '%s' failed validation", filename)
	}

	return &appConfig, nil
}

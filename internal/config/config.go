package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix             = "INVENTORY"
	defaultHTTPAddress    = "0.0.0.0:8080"
	defaultDatabaseDriver = "sqlite"
	defaultDatabaseDSN    = "inventory.db"
	defaultLogLevel       = "info"
	defaultAuthIssuer     = "inventory-storage"
	defaultAuthAudience   = "inventory-api"
	defaultTokenTTL       = 30
	defaultInstancePrefix = "in"
	defaultHoldingsPrefix = "ho"
	defaultItemPrefix     = "it"
	defaultHRIDStart      = 1
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// AppConfig captures runtime configuration for the storage service.
type AppConfig struct {
	HTTPAddress    string
	DatabaseDriver string
	DatabaseDSN    string
	LogLevel       string
	SigningSecret  string
	AuthIssuer     string
	AuthAudience   string
	TokenTTL       time.Duration
	HRID           HRIDConfig
}

// HRIDConfig holds the prefixes used when a kind's HRID sequence is first seeded.
type HRIDConfig struct {
	InstancesPrefix string
	HoldingsPrefix  string
	ItemsPrefix     string
	StartNumber     int64
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.dsn", defaultDatabaseDSN)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.issuer", defaultAuthIssuer)
	configViper.SetDefault("auth.audience", defaultAuthAudience)
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTL)
	configViper.SetDefault("hrid.instances.prefix", defaultInstancePrefix)
	configViper.SetDefault("hrid.holdings.prefix", defaultHoldingsPrefix)
	configViper.SetDefault("hrid.items.prefix", defaultItemPrefix)
	configViper.SetDefault("hrid.start_number", defaultHRIDStart)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:    configViper.GetString("http.address"),
		DatabaseDriver: strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabaseDSN:    configViper.GetString("database.dsn"),
		LogLevel:       configViper.GetString("log.level"),
		SigningSecret:  configViper.GetString("auth.signing_secret"),
		AuthIssuer:     configViper.GetString("auth.issuer"),
		AuthAudience:   configViper.GetString("auth.audience"),
		TokenTTL:       time.Duration(configViper.GetInt("token.ttl_minutes")) * time.Minute,
		HRID: HRIDConfig{
			InstancesPrefix: configViper.GetString("hrid.instances.prefix"),
			HoldingsPrefix:  configViper.GetString("hrid.holdings.prefix"),
			ItemsPrefix:     configViper.GetString("hrid.items.prefix"),
			StartNumber:     configViper.GetInt64("hrid.start_number"),
		},
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	switch c.DatabaseDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("database.driver %q is not supported", c.DatabaseDriver)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token.ttl_minutes must be positive")
	}
	if c.HRID.StartNumber < 1 {
		return fmt.Errorf("hrid.start_number must be at least 1")
	}
	return nil
}

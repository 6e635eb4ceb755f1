// Package config loads service settings from defaults, an optional
// workorders.yaml and WORKORDERS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/alexanderramin/workorders/internal/external"
	"github.com/spf13/viper"
)

// Service holds the connection settings of one HTTP collaborator.
type Service struct {
	URL        string        `mapstructure:"url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	Backoff    time.Duration `mapstructure:"retry_backoff"`
}

func (s Service) Client() external.ClientConfig {
	return external.ClientConfig{BaseURL: s.URL, Timeout: s.Timeout, MaxRetries: s.MaxRetries, RetryBackoff: s.Backoff}
}

type Config struct {
	DBPath   string `mapstructure:"db_path"`
	HTTPAddr string `mapstructure:"http_addr"`
	LogLevel string `mapstructure:"log_level"`
	// LogFormat is "text", "json" or "auto" (text on a terminal).
	LogFormat string `mapstructure:"log_format"`

	// RedisAddr enables the Redis lock and event channel when set.
	RedisAddr     string `mapstructure:"redis_addr"`
	EventsChannel string `mapstructure:"events_channel"`
	LockPrefix    string `mapstructure:"lock_prefix"`

	SchemaTTL time.Duration `mapstructure:"schema_ttl"`
	LockTTL   time.Duration `mapstructure:"lock_ttl"`

	Material Service `mapstructure:"material"`
	Set      Service `mapstructure:"set"`
	Project  Service `mapstructure:"project"`
	Billing  Service `mapstructure:"billing"`
	LIMS     Service `mapstructure:"lims"`
}

// New returns a viper instance carrying the defaults and env bindings.
// Commands bind their flags onto it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("db_path", "workorders.db")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "auto")
	v.SetDefault("events_channel", "workorders.events")
	v.SetDefault("lock_prefix", "workorders:lock:")
	v.SetDefault("schema_ttl", 5*time.Minute)
	v.SetDefault("lock_ttl", 30*time.Second)
	for _, svc := range []string{"material", "set", "project", "billing", "lims"} {
		v.SetDefault(svc+".url", "")
		v.SetDefault(svc+".timeout", 10*time.Second)
		v.SetDefault(svc+".max_retries", 2)
		v.SetDefault(svc+".retry_backoff", 100*time.Millisecond)
	}

	v.SetEnvPrefix("WORKORDERS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file (or workorders.yaml in the working directory when file is
// empty) and decodes the result. A missing default file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("workorders")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if c.SchemaTTL < 0 {
		errs = append(errs, errors.New("schema_ttl must not be negative"))
	}
	if c.LockTTL <= 0 {
		errs = append(errs, errors.New("lock_ttl must be positive"))
	}
	switch c.LogFormat {
	case "auto", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q is not one of auto, text, json", c.LogFormat))
	}
	return errors.Join(errs...)
}

// MissingServices names the collaborators without a URL. The server needs
// all of them; offline commands need none.
func (c *Config) MissingServices() []string {
	var missing []string
	for name, svc := range map[string]Service{
		"material": c.Material, "set": c.Set, "project": c.Project, "billing": c.Billing, "lims": c.LIMS,
	} {
		if svc.URL == "" {
			missing = append(missing, name)
		}
	}
	slices.Sort(missing)
	return missing
}

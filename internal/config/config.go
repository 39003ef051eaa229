package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	ModeDirect = "direct"
	ModeQueue  = "queue"

	SinkPostgres = "postgres"
	SinkJSONL    = "jsonl"
)

// Config holds all configuration for the application
type Config struct {
	Apteka    AptekaConfig    `mapstructure:"apteka"`
	Normalize NormalizeConfig `mapstructure:"normalize"`
	Sink      SinkConfig      `mapstructure:"sink"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
}

// AptekaConfig holds the catalog API configuration
type AptekaConfig struct {
	BaseURL              string            `mapstructure:"base_url"`
	Cookies              map[string]string `mapstructure:"cookies"`
	Slugs                []string          `mapstructure:"slugs"`
	PageSize             int               `mapstructure:"page_size"`
	Timeout              int               `mapstructure:"timeout"`
	MaxRetries           int               `mapstructure:"max_retries"`
	MaxWorkers           int               `mapstructure:"max_workers"`
	MaxRequestsPerSecond int               `mapstructure:"max_requests_per_second"`
	Proxies              []string          `mapstructure:"proxies"`
	Mode                 string            `mapstructure:"mode"`
}

// NormalizeConfig holds the record normalizer settings
type NormalizeConfig struct {
	HeaderKeywords  []string `mapstructure:"header_keywords"`
	BreadcrumbRoots []string `mapstructure:"breadcrumb_roots"`
	SaleTagPrefix   string   `mapstructure:"sale_tag_prefix"`
}

// SinkConfig selects where product records are written
type SinkConfig struct {
	Type string `mapstructure:"type"`
	Path string `mapstructure:"path"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// RedisConfig holds Redis connection details
type RedisConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Password      string `mapstructure:"password"`
	Database      int    `mapstructure:"database"`
	ConsumerGroup string `mapstructure:"consumer_group"`
	MinIdleTime   int    `mapstructure:"min_idle_time"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultSlugs are the categories crawled when none are configured.
var DefaultSlugs = []string{
	"sredstva-gigieny/uhod-za-polostyu-rta/zubnye-niti_-ershiki",
	"sredstva-gigieny/vlazhnye-salfetki/vlazhnye-salfetki-dlya-detey",
	"sredstva-gigieny/mylo/mylo-zhidkoe",
	"medikamenty-i-bady/vitaminy-i-mikroelementy/vitaminy-drugie",
}

// DefaultHeaderKeywords are the description section headers of the source locale.
var DefaultHeaderKeywords = []string{
	"противопоказания",
	"состав",
	"оболочка",
	"область",
	"показания",
	"описание",
	"форма",
	"характеристика",
	"дозировка",
	"предосторожности",
}

// Load loads config.yaml from the working directory, or the file named by APTEKA_CONFIG
func Load() (*Config, error) {
	return LoadFrom(os.Getenv("APTEKA_CONFIG"))
}

// LoadFrom loads configuration from path with environment variable overrides.
// An empty path means config.yaml in the current directory.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("config.yaml file not found in current directory")
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects combinations the container cannot wire.
func (c *Config) Validate() error {
	if c.Apteka.BaseURL == "" {
		return fmt.Errorf("apteka.base_url is required")
	}
	if len(c.Apteka.Slugs) == 0 {
		return fmt.Errorf("apteka.slugs must not be empty")
	}
	if c.Apteka.PageSize <= 0 {
		return fmt.Errorf("apteka.page_size must be positive, got %d", c.Apteka.PageSize)
	}
	if c.Apteka.MaxWorkers <= 0 {
		return fmt.Errorf("apteka.max_workers must be positive, got %d", c.Apteka.MaxWorkers)
	}

	switch c.Apteka.Mode {
	case ModeDirect:
	case ModeQueue:
		if !c.Redis.Enabled {
			return fmt.Errorf("apteka.mode %q requires redis.enabled", ModeQueue)
		}
	default:
		return fmt.Errorf("unknown apteka.mode %q", c.Apteka.Mode)
	}

	switch c.Sink.Type {
	case SinkPostgres:
	case SinkJSONL:
		if c.Sink.Path == "" {
			return fmt.Errorf("sink.path is required for sink type %q", SinkJSONL)
		}
	default:
		return fmt.Errorf("unknown sink.type %q", c.Sink.Type)
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("apteka.base_url", "https://apteka-ot-sklada.ru")
	v.SetDefault("apteka.cookies", map[string]string{"city": "92"})
	v.SetDefault("apteka.slugs", DefaultSlugs)
	v.SetDefault("apteka.page_size", 12)
	v.SetDefault("apteka.timeout", 30)
	v.SetDefault("apteka.max_retries", 3)
	v.SetDefault("apteka.max_workers", 8)
	v.SetDefault("apteka.max_requests_per_second", 5)
	v.SetDefault("apteka.mode", ModeDirect)

	v.SetDefault("normalize.header_keywords", DefaultHeaderKeywords)
	v.SetDefault("normalize.breadcrumb_roots", []string{"Home", "Catalog"})
	v.SetDefault("normalize.sale_tag_prefix", "Discount")

	v.SetDefault("sink.type", SinkJSONL)
	v.SetDefault("sink.path", "./products.jsonl")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "apteka")
	v.SetDefault("database.user", "apteka_user")
	v.SetDefault("database.password", "apteka_pass")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.consumer_group", "apteka_consumer")
	v.SetDefault("redis.min_idle_time", 120)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

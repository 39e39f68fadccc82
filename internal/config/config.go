package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver  string `mapstructure:"driver"` // sqlite / postgres
	Path    string `mapstructure:"path"`
	DSN     string `mapstructure:"dsn"`
	LogMode bool   `mapstructure:"log_mode"`
}

type JWTConfig struct {
	Secret           string `mapstructure:"secret"`
	Issuer           string `mapstructure:"issuer"`
	AccessTTLMinutes int    `mapstructure:"access_ttl_minutes"`
	RenewalTTLHours  int    `mapstructure:"renewal_ttl_hours"`
}

// AccessTTL is the lifetime of an access token.
func (c JWTConfig) AccessTTL() time.Duration {
	if c.AccessTTLMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.AccessTTLMinutes) * time.Minute
}

// RenewalTTL is the lifetime of a renewal credential.
func (c JWTConfig) RenewalTTL() time.Duration {
	if c.RenewalTTLHours <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.RenewalTTLHours) * time.Hour
}

type AuthConfig struct {
	BcryptCost    int    `mapstructure:"bcrypt_cost"`
	RenewalStore  string `mapstructure:"renewal_store"` // db / redis
	AllowRegister bool   `mapstructure:"allow_register"`
	AdminName     string `mapstructure:"admin_name"`
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LogConfig struct {
	File          string `mapstructure:"file"`
	Level         string `mapstructure:"level"`
	Dev           bool   `mapstructure:"dev"`
	MaxAgeDays    int    `mapstructure:"max_age_days"`
	RotationHours int    `mapstructure:"rotation_hours"`
}

type UploadConfig struct {
	Dir      string `mapstructure:"dir"`
	URLPath  string `mapstructure:"url_path"`
	MaxBytes int64  `mapstructure:"max_bytes"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type AppSubConfig struct {
	PageSize    int `mapstructure:"page_size"`
	MaxPageSize int `mapstructure:"max_page_size"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Upload   UploadConfig   `mapstructure:"upload"`
	CORS     CORSConfig     `mapstructure:"cors"`
	App      AppSubConfig   `mapstructure:"app"`
}

var (
	appConfig *Config
	once      sync.Once
)

// Load loads configuration from given file path (e.g. "config.yaml") once
// and memoises it. If path is empty, "config.yaml" in the working directory
// is used when present.
func Load(path string) (*Config, error) {
	var err error
	once.Do(func() {
		var c *Config
		c, err = Read(path)
		if err != nil {
			return
		}
		appConfig = c
	})

	if err != nil {
		return nil, err
	}
	return appConfig, nil
}

// Read parses configuration without touching the memoised global.
func Read(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	// environment overrides, e.g. SRM_SERVER_PORT=9000
	v.SetEnvPrefix("SRM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt.secret is required")
	}
	return &c, nil
}

// Get returns the loaded global configuration.
// Call Load() once at application startup.
func Get() *Config {
	return appConfig
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/students.db")

	v.SetDefault("jwt.issuer", "student-records")
	v.SetDefault("jwt.access_ttl_minutes", 15)
	v.SetDefault("jwt.renewal_ttl_hours", 24*7)

	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.renewal_store", "db")
	v.SetDefault("auth.allow_register", true)
	v.SetDefault("auth.admin_name", "Administrator")

	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_age_days", 14)
	v.SetDefault("log.rotation_hours", 24)

	v.SetDefault("upload.dir", "uploads")
	v.SetDefault("upload.url_path", "/uploads")
	v.SetDefault("upload.max_bytes", 2<<20)

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("app.page_size", 10)
	v.SetDefault("app.max_page_size", 100)
}

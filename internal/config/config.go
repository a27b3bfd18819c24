package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Mongo         MongoConfig         `mapstructure:"mongo"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Security      SecurityConfig      `mapstructure:"security"`
	Notification  NotificationConfig  `mapstructure:"notification"`
	Charts        ChartsConfig        `mapstructure:"charts"`
	Documents     DocumentsConfig     `mapstructure:"documents"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	Timeout         time.Duration `mapstructure:"timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	TLS             struct {
		Enabled  bool   `mapstructure:"enabled"`
		CertFile string `mapstructure:"cert_file"`
		KeyFile  string `mapstructure:"key_file"`
	} `mapstructure:"tls"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	User        string        `mapstructure:"user"`
	Password    string        `mapstructure:"password"`
	Name        string        `mapstructure:"name"`
	SSLMode     string        `mapstructure:"sslmode"`
	MaxPoolSize int32         `mapstructure:"max_pool_size"`
	ConnTimeout time.Duration `mapstructure:"conn_timeout"`
}

// DSN renders a libpq keyword/value connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	MaxPoolSize    uint64        `mapstructure:"max_pool_size"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

type AuthConfig struct {
	JWTSecret   string        `mapstructure:"jwt_secret"`
	TokenExpiry time.Duration `mapstructure:"token_expiry"`
	Realm       string        `mapstructure:"realm"`
}

type SecurityConfig struct {
	EncryptionKey string  `mapstructure:"encryption_key"`
	RateLimit     float64 `mapstructure:"rate_limit"`
	RateBurst     int     `mapstructure:"rate_burst"`
}

type NotificationConfig struct {
	Driver       string        `mapstructure:"driver"`
	From         string        `mapstructure:"from"`
	ReminderTime string        `mapstructure:"reminder_time"`
	Timeout      time.Duration `mapstructure:"timeout"`
	SMTP         struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
	} `mapstructure:"smtp"`
	Relay struct {
		URL    string `mapstructure:"url"`
		APIKey string `mapstructure:"api_key"`
	} `mapstructure:"relay"`
}

type ChartsConfig struct {
	Driver string `mapstructure:"driver"`
	Dir    string `mapstructure:"dir"`
	Minio  struct {
		Endpoint  string `mapstructure:"endpoint"`
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret_key"`
		Bucket    string `mapstructure:"bucket"`
		UseSSL    bool   `mapstructure:"use_ssl"`
	} `mapstructure:"minio"`
}

type DocumentsConfig struct {
	MaxUploadSize int64 `mapstructure:"max_upload_size"`
}

// Load reads configuration from the first config file found on the search
// path, then applies HOSPITAL_* environment overrides.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../configs")
	v.AddConfigPath("/etc/hospital")

	v.SetEnvPrefix("HOSPITAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "hospital")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_pool_size", 10)
	v.SetDefault("database.conn_timeout", 5*time.Second)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "hospital")
	v.SetDefault("mongo.max_pool_size", 20)
	v.SetDefault("mongo.connect_timeout", 10*time.Second)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.prefix", "hospital:")
	v.SetDefault("redis.ttl", 5*time.Minute)

	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("elasticsearch.addresses", []string{})
	v.SetDefault("elasticsearch.username", "")
	v.SetDefault("elasticsearch.password", "")
	v.SetDefault("elasticsearch.index", "hospital_audit")

	// Env-only keys still need a default so Unmarshal sees them.
	v.SetDefault("database.password", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_expiry", time.Hour)
	v.SetDefault("auth.realm", "hospital")

	v.SetDefault("security.encryption_key", "")
	v.SetDefault("security.rate_limit", 30)
	v.SetDefault("security.rate_burst", 30)

	v.SetDefault("notification.driver", "log")
	v.SetDefault("notification.from", "no-reply@hospital.local")
	v.SetDefault("notification.reminder_time", "08:00")
	v.SetDefault("notification.timeout", 15*time.Second)
	v.SetDefault("notification.smtp.host", "")
	v.SetDefault("notification.smtp.port", 587)
	v.SetDefault("notification.smtp.username", "")
	v.SetDefault("notification.smtp.password", "")
	v.SetDefault("notification.relay.url", "")
	v.SetDefault("notification.relay.api_key", "")

	v.SetDefault("charts.driver", "disk")
	v.SetDefault("charts.dir", "./data/charts")
	v.SetDefault("charts.minio.endpoint", "")
	v.SetDefault("charts.minio.access_key", "")
	v.SetDefault("charts.minio.secret_key", "")
	v.SetDefault("charts.minio.bucket", "health-charts")
	v.SetDefault("charts.minio.use_ssl", false)

	v.SetDefault("documents.max_upload_size", 10<<20)
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	switch c.Notification.Driver {
	case "log", "smtp", "relay":
	default:
		return fmt.Errorf("unknown notification driver: %s", c.Notification.Driver)
	}
	switch c.Charts.Driver {
	case "disk", "minio":
	default:
		return fmt.Errorf("unknown charts driver: %s", c.Charts.Driver)
	}
	if _, err := time.Parse("15:04", c.Notification.ReminderTime); err != nil {
		return fmt.Errorf("invalid notification.reminder_time %q: %w", c.Notification.ReminderTime, err)
	}
	return nil
}

package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	HTTP       HTTPConfig      `mapstructure:"http"`
	Log        LogConfig       `mapstructure:"log"`
	Store      StoreConfig     `mapstructure:"store"`
	Mongo      MongoConfig     `mapstructure:"mongo"`
	MySQL      DatabaseConfig  `mapstructure:"mysql"`
	ClickHouse DatabaseConfig  `mapstructure:"clickhouse"`
	Redis      RedisConfig     `mapstructure:"redis"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
	RabbitMQ   RabbitMQConfig  `mapstructure:"rabbitmq"`
	Kafka      KafkaConfig     `mapstructure:"kafka"`
	Auth       AuthConfig      `mapstructure:"auth"`
	Bcrypt     BcryptConfig    `mapstructure:"bcrypt"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	Collection     string        `mapstructure:"collection"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type RateLimitConfig struct {
	LoginRPS int `mapstructure:"login_rps"`
}

type RabbitMQConfig struct {
	URL            string `mapstructure:"url"`
	Exchange       string `mapstructure:"exchange"`
	Queue          string `mapstructure:"queue"`
	RoutingKey     string `mapstructure:"routing_key"`
	Prefetch       int    `mapstructure:"prefetch"`
	RequeueInvalid bool   `mapstructure:"requeue_invalid"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type BreakerConfig struct {
	FailThreshold int           `mapstructure:"fail_threshold"`
	OpenFor       time.Duration `mapstructure:"open_for"`
}

type AuthConfig struct {
	Mode                string        `mapstructure:"mode"`
	JWTSecret           string        `mapstructure:"jwt_secret"`
	TokenTTL            time.Duration `mapstructure:"token_ttl"`
	Issuer              string        `mapstructure:"issuer"`
	Audience            string        `mapstructure:"audience"`
	RemoteURL           string        `mapstructure:"remote_url"`
	RemoteTimeout       time.Duration `mapstructure:"remote_timeout"`
	Breaker             BreakerConfig `mapstructure:"breaker"`
	LoginScopes         []string      `mapstructure:"login_scopes"`
	LoginPermissions    []string      `mapstructure:"login_permissions"`
	RequiredScopes      []string      `mapstructure:"required_scopes"`
	RequiredPermissions []string      `mapstructure:"required_permissions"`
	EnforceScopes       bool          `mapstructure:"enforce_scopes"`
	EnforcePermissions  bool          `mapstructure:"enforce_permissions"`
}

type BcryptConfig struct {
	Cost int `mapstructure:"cost"`
}

const (
	AuthModeLocal  = "local"
	AuthModeRemote = "remote"

	StoreMongo  = "mongo"
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// legacyEnv maps config keys to the environment names older deployments use.
var legacyEnv = map[string]string{
	"mongo.uri":                 "MONGODB_URI",
	"auth.jwt_secret":           "JWT_SECRET",
	"auth.token_ttl":            "JWT_TTL",
	"rabbitmq.url":              "RABBITMQ_URL",
	"auth.remote_url":           "AUTH_SERVICE_URL",
	"auth.required_scopes":      "REQUIRED_SCOPES",
	"auth.required_permissions": "REQUIRED_PERMISSIONS",
}

// Load reads embedded defaults, merges user YAML (if provided), a .env file (if present),
// and applies env overrides (HRCUT_* plus the legacy names above).
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("merge %s: %w", path, err)
			}
		}
	}

	// env override (HRCUT_*)
	v.SetEnvPrefix("HRCUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		_ = v.BindEnv(key, "HRCUT_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}

	// Route scopes are enforced by default only for tokens minted here; the
	// remote auth service issues its own scope names.
	if !v.IsSet("auth.enforce_scopes") {
		v.Set("auth.enforce_scopes", v.GetString("auth.mode") != AuthModeRemote)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the service cannot start with.
func (c Config) Validate() error {
	switch c.Auth.Mode {
	case AuthModeLocal:
		if strings.TrimSpace(c.Auth.JWTSecret) == "" {
			return errors.New("auth.jwt_secret is required in local mode")
		}
	case AuthModeRemote:
		if strings.TrimSpace(c.Auth.RemoteURL) == "" {
			return errors.New("auth.remote_url is required in remote mode")
		}
	default:
		return fmt.Errorf("unknown auth.mode %q", c.Auth.Mode)
	}

	switch c.Store.Driver {
	case StoreMongo, StoreMySQL, StoreMemory:
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}

	if c.Store.Driver == StoreMySQL && c.MySQL.DSN == "" {
		return errors.New("mysql.dsn is required when store.driver is mysql")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}
	return nil
}

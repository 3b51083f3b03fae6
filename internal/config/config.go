package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultRoutingTTL   = 30 * time.Minute
	DefaultStoreTimeout = 5 * time.Second
	DefaultHTTPPort     = 3000

	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Redis    RedisConfig    `yaml:"redis"`
	HTTP     HTTPConfig     `yaml:"http"`
	Routing  RoutingConfig  `yaml:"routing"`
	Store    StoreConfig    `yaml:"store"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Prefetch int    `yaml:"prefetch"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

type RoutingConfig struct {
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	CacheBackend string        `yaml:"cache_backend"`
}

type StoreConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// Load reads the YAML file at path, then applies .env and environment
// overrides and fills defaults. A missing .env is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return cfg, nil
}

// Parse decodes YAML without touching the environment.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
		return nil
	}

	setString("DB_HOST", &c.Database.Host)
	setString("DB_USER", &c.Database.User)
	setString("DB_PASSWORD", &c.Database.Password)
	setString("DB_NAME", &c.Database.Database)
	setString("RABBITMQ_HOST", &c.RabbitMQ.Host)
	setString("RABBITMQ_USER", &c.RabbitMQ.User)
	setString("RABBITMQ_PASSWORD", &c.RabbitMQ.Password)
	setString("REDIS_ADDR", &c.Redis.Addr)
	setString("REDIS_PASSWORD", &c.Redis.Password)
	setString("ROUTING_CACHE_BACKEND", &c.Routing.CacheBackend)

	for key, dst := range map[string]*int{
		"DB_PORT":       &c.Database.Port,
		"RABBITMQ_PORT": &c.RabbitMQ.Port,
		"HTTP_PORT":     &c.HTTP.Port,
	} {
		if err := setInt(key, dst); err != nil {
			return err
		}
	}

	if v := os.Getenv("ROUTING_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid ROUTING_CACHE_TTL: %w", err)
		}
		c.Routing.CacheTTL = d
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Routing.CacheTTL <= 0 {
		c.Routing.CacheTTL = DefaultRoutingTTL
	}
	if c.Routing.CacheBackend == "" {
		c.Routing.CacheBackend = CacheBackendMemory
	}
	if c.Store.Timeout <= 0 {
		c.Store.Timeout = DefaultStoreTimeout
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = DefaultHTTPPort
	}
	if c.RabbitMQ.Prefetch <= 0 {
		c.RabbitMQ.Prefetch = 1
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
}

// Validate reports every missing field needed by the given backends.
func (c *Config) Validate(needDB, needBroker bool) error {
	var problems []string
	if needDB {
		if c.Database.Host == "" {
			problems = append(problems, "database.host is required")
		}
		if c.Database.Port == 0 {
			problems = append(problems, "database.port is required")
		}
		if c.Database.Database == "" {
			problems = append(problems, "database.database is required")
		}
	}
	if needBroker {
		if c.RabbitMQ.Host == "" {
			problems = append(problems, "rabbitmq.host is required")
		}
		if c.RabbitMQ.Port == 0 {
			problems = append(problems, "rabbitmq.port is required")
		}
	}
	switch c.Routing.CacheBackend {
	case CacheBackendMemory:
	case CacheBackendRedis:
		if c.Redis.Addr == "" {
			problems = append(problems, "redis.addr is required for the redis cache backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("routing.cache_backend %q is not supported", c.Routing.CacheBackend))
	}

	if len(problems) > 0 {
		return errors.New("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
}

// DatabaseURL returns a PostgreSQL connection URL.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Database)
}

// RabbitMQURL returns an AMQP connection URL.
func (c *Config) RabbitMQURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		c.RabbitMQ.User, c.RabbitMQ.Password, c.RabbitMQ.Host, c.RabbitMQ.Port)
}

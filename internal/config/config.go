// Package config предоставялет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING" env-required:"true"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	DefaultAvatarURL        string `yaml:"default_avatar_url" env:"DEFAULT_AVATAR_URL"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	PasswordReset           `yaml:"password_reset"`
	SMTP                    `yaml:"smtp"`
	Payment                 `yaml:"payment"`
	S3                      `yaml:"s3"`
	RabbitMQ                `yaml:"rabbitmq"`
	RateLimit               `yaml:"rate_limit"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env:"HTTP_ADDRESS" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis.
// Пустой адрес отключает кеш и ограничение частоты запросов сброса пароля.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET" env-required:"true"`
	TokenTTL     time.Duration `yaml:"token_ttl" env:"JWT_EXPIRY" env-default:"168h"`
	CookieName   string        `yaml:"cookie_name" env-default:"token"`
}

// PasswordReset настройки сброса пароля.
type PasswordReset struct {
	ResetTTL    time.Duration `yaml:"reset_ttl" env-default:"15m"`
	FrontendURL string        `yaml:"frontend_url" env:"FRONTEND_URL"`
	Cooldown    time.Duration `yaml:"cooldown" env-default:"1m"`
	// SweepInterval период очистки просроченных токенов сброса.
	SweepInterval time.Duration `yaml:"sweep_interval" env-default:"1h"`
}

// SMTP настройки почтового сервера.
type SMTP struct {
	SMTPHost string `yaml:"host" env:"SMTP_HOST"`
	SMTPPort string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	SMTPUser string `yaml:"user" env:"SMTP_USERNAME"`
	SMTPPass string `yaml:"password" env:"SMTP_PASSWORD"`
	SMTPFrom string `yaml:"from" env:"SMTP_FROM_EMAIL"`
}

// Payment настройки платёжного провайдера.
type Payment struct {
	KeyID      string        `yaml:"key_id" env:"RAZORPAY_KEY_ID"`
	KeySecret  string        `yaml:"key_secret" env:"RAZORPAY_SECRET"`
	PlanID     string        `yaml:"plan_id" env:"RAZORPAY_PLAN_ID"`
	TotalCount int           `yaml:"total_count" env-default:"12"`
	APIURL     string        `yaml:"api_url" env-default:"https://api.razorpay.com/v1"`
	Timeout    time.Duration `yaml:"timeout" env-default:"10s"`
}

// S3 настройки хранилища аватаров. Пустой bucket отключает загрузку файлов.
type S3 struct {
	Bucket          string `yaml:"bucket" env:"S3_BUCKET"`
	Region          string `yaml:"region" env:"S3_REGION"`
	AccessKeyID     string `yaml:"access_key_id" env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"S3_SECRET_ACCESS_KEY"`
	Endpoint        string `yaml:"endpoint" env:"S3_ENDPOINT"`
	PublicBaseURL   string `yaml:"public_base_url" env:"S3_PUBLIC_BASE_URL"`
	Prefix          string `yaml:"prefix" env-default:"lms"`
}

// RabbitMQ настройки брокера доменных событий. Пустой URL отключает публикацию.
type RabbitMQ struct {
	URL      string `yaml:"url" env:"RABBITMQ_URL"`
	Exchange string `yaml:"exchange" env-default:"lms.events"`
}

// RateLimit ограничение частоты запросов к эндпоинтам с учётными данными.
type RateLimit struct {
	RPS   float64 `yaml:"rps" env-default:"5"`
	Burst int     `yaml:"burst" env-default:"10"`
}

// MustLoad функция для загрузки конфига из файла, путь к которому задан в CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает конфиг из файла с переопределением значений из окружения.
func Load(path string) (*Config, error) {
	const op = "config.Load"
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.JWTSecretKey == "" {
		return nil, fmt.Errorf("%s: jwttoken.jwt_secret_key is required", op)
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("%s: jwttoken.token_ttl must be positive", op)
	}
	if cfg.ResetTTL <= 0 {
		return nil, fmt.Errorf("%s: password_reset.reset_ttl must be positive", op)
	}
	return &cfg, nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"Redis: %s\n"+
			"JWTToken:\n"+
			"  JWTSecretKey: %s\n"+
			"  TokenTTL: %s\n"+
			"PasswordReset:\n"+
			"  TTL: %s\n"+
			"  FrontendURL: %s\n"+
			"SMTP: %s:%s\n"+
			"Payment:\n"+
			"  KeyID: %s\n"+
			"  KeySecret: %s\n"+
			"S3: %s\n"+
			"RabbitMQ: %s\n",
		c.Env,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.AddressRedis,
		mask(c.JWTSecretKey),
		c.TokenTTL,
		c.ResetTTL,
		c.FrontendURL,
		c.SMTPHost,
		c.SMTPPort,
		c.KeyID,
		mask(c.KeySecret),
		c.Bucket,
		c.Exchange,
	)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "******"
}

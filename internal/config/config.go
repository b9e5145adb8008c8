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
	Env                     string `yaml:"env" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env-required:"true"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
	HTTPServer              `yaml:"http_server"`
	RedisConnection         `yaml:"redis_connection"`
	JWTToken                `yaml:"jwttoken"`
	RabbitMQ                `yaml:"rabbitmq"`
	Telegram                `yaml:"telegram"`
	CookieBroker            `yaml:"cookie_broker"`
	Scheduler               `yaml:"scheduler"`
	RateLimit               `yaml:"rate_limit"`
	BootstrapAdmin          `yaml:"bootstrap_admin"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env-required:"true"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// RabbitMQ параметры подключения к брокеру уведомлений
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// Telegram параметры бота, через которого доставляются уведомления
type Telegram struct {
	BotToken      string `yaml:"bot_token"`
	BotUsername   string `yaml:"bot_username" env-default:"markethelper_bot"`
	BotAPIDebug   bool   `yaml:"debug"`
	BroadcastRate int    `yaml:"broadcast_rate" env-default:"25"`
}

// CookieBroker параметры внешнего сервиса авторизации и каталога с файлами куков
type CookieBroker struct {
	CookieDir    string        `yaml:"cookie_dir" env-default:"./cookie"`
	LoginURL     string        `yaml:"login_url" env-default:"https://salesfinder.ru/api/user/signIn"`
	CheckURL     string        `yaml:"check_url" env-default:"https://salesfinder.ru/api/user/getUser"`
	CookieDomain string        `yaml:"cookie_domain" env-default:"salesfinder.ru"`
	LoginTimeout time.Duration `yaml:"login_timeout" env-default:"15s"`
	CheckTimeout time.Duration `yaml:"check_timeout" env-default:"10s"`
	LeaseTTL     time.Duration `yaml:"lease_ttl" env-default:"10m"`
}

// Scheduler расписание фоновых задач
type Scheduler struct {
	Location         string        `yaml:"location" env-default:"Europe/Moscow"`
	ExpireSpec       string        `yaml:"expire_spec" env-default:"0 * * * *"`
	ReminderSpec     string        `yaml:"reminder_spec" env-default:"0 10 * * *"`
	ReminderLeadTime time.Duration `yaml:"reminder_lead_time" env-default:"24h"`
}

// RateLimit ограничение частоты запросов на вход в админку
type RateLimit struct {
	LoginRPS   float64 `yaml:"login_rps" env-default:"1"`
	LoginBurst int     `yaml:"login_burst" env-default:"5"`
}

// BootstrapAdmin учетная запись администратора, создаваемая при первом запуске
type BootstrapAdmin struct {
	AdminUsername string `yaml:"username"`
	AdminPassword string `yaml:"password"`
}

// MustLoad функция для загрузки конфига, возвращает конфиг, сгенерированный из config/config.go
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"StorageConnectionString: %s\n"+
			"MigrationsPath: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"RabbitMQ:\n"+
			"  MaxRetries: %d\n"+
			"  RetryDelay: %s\n"+
			"CookieBroker:\n"+
			"  Dir: %s\n"+
			"  LoginURL: %s\n"+
			"  LeaseTTL: %s\n"+
			"JWTToken:\n"+
			"  TokenTTL: %s\n",
		c.Env,
		maskDSN(c.StorageConnectionString),
		c.MigrationsPath,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.AddressRedis,
		c.DB,
		c.RabbitMQMaxRetries,
		c.RabbitMQRetryDelay,
		c.CookieDir,
		c.LoginURL,
		c.LeaseTTL,
		c.TokenTTL,
	)
}

func maskDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	return "***"
}

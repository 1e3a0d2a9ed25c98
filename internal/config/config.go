package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"

	"github.com/letsssgooo/vkQuizBot/internal/client"
)

// Bot — учетные данные бота сообщества. Пустые значения отключают бота.
type Bot struct {
	AccessToken string `yaml:"access_token" env:"VK_ACCESS_TOKEN"`
	GroupID     int64  `yaml:"group_id" env:"VK_GROUP_ID"`
}

type API struct {
	Host string `yaml:"host" env:"VK_API_HOST"`
	// RateLimit — число вызовов методов API в секунду.
	RateLimit int `yaml:"rate_limit" env:"VK_API_RATE_LIMIT"`
}

type Poll struct {
	Wait           int `yaml:"wait"`
	ErrorBackoffMs int `yaml:"error_backoff_ms"`
}

type Storage struct {
	// DSN PostgreSQL; пустая строка — хранение в памяти.
	DSN string `yaml:"dsn" env:"DATABASE_DSN"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

type Config struct {
	Bot     Bot     `yaml:"bot"`
	API     API     `yaml:"api"`
	Poll    Poll    `yaml:"poll"`
	Storage Storage `yaml:"storage"`
	Log     Log     `yaml:"log"`
}

// Load читает YAML файл path (если задан), применяет переменные окружения
// и заполняет значения по умолчанию.
func Load(path string) (Config, error) {
	var c Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("failed to read config: %w", err)
		}

		if err = yaml.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := envdecode.Decode(&c); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return c, fmt.Errorf("failed to read environment: %w", err)
	}

	if c.API.Host == "" {
		c.API.Host = client.DefaultAPIHost
	}
	if c.API.RateLimit == 0 {
		c.API.RateLimit = 20
	}
	if c.Poll.Wait == 0 {
		c.Poll.Wait = client.DefaultWait
	}
	if c.Poll.ErrorBackoffMs == 0 {
		c.Poll.ErrorBackoffMs = 1000
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	return c, nil
}

// Credentials возвращает учетные данные бота для клиента VK.
func (c Config) Credentials() client.Credentials {
	return client.Credentials{
		AccessToken: c.Bot.AccessToken,
		GroupID:     c.Bot.GroupID,
	}
}

// ErrorBackoff возвращает паузу после неудачной итерации опроса.
func (c Config) ErrorBackoff() time.Duration {
	return time.Duration(c.Poll.ErrorBackoffMs) * time.Millisecond
}

// config предоставляет структуру конфигурации клиента и функции
// загрузки из файла/переменных окружения с предсказуемым приоритетом.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config — корневая конфигурация клиента.
// Источники значений (по убыванию приоритета):
//  1. явный путь через флаг --config;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл local.yaml из рабочей директории;
//  4. переменные окружения (cleanenv).
type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	API       APIConfig       `yaml:"api"`
	Chat      ChatConfig      `yaml:"chat"`
	Storage   StorageConfig   `yaml:"storage"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// APIConfig — настройки REST-бэкенда.
type APIConfig struct {
	BaseURL  string        `yaml:"base_url" env:"API_BASE_URL" env-default:"http://localhost:8000"`
	QuoteURL string        `yaml:"quote_url" env:"QUOTE_URL" env-default:"https://zenquotes.io/api/random"`
	Timeout  time.Duration `yaml:"timeout" env:"API_TIMEOUT" env-default:"15s"`
}

// ChatConfig — настройки realtime-канала.
type ChatConfig struct {
	// BaseURL — базовый ws-адрес; комната добавляется как сегмент пути.
	BaseURL string `yaml:"base_url" env:"CHAT_BASE_URL" env-default:"ws://localhost:8000/ws/rebot"`
	// DefaultRoom — комната по умолчанию, если идентификатор пользователя неизвестен.
	DefaultRoom string `yaml:"default_room" env:"CHAT_DEFAULT_ROOM" env-default:"default"`
}

// StorageConfig — настройки локального key-value-хранилища.
type StorageConfig struct {
	Path string `yaml:"path" env:"STORAGE_PATH" env-default:""`
}

// ReconnectConfig — политика переподключения realtime-канала.
//
// Начальная задержка соответствует исходным 3s; далее задержка удваивается
// до Max и сбрасывается после успешного подключения.
type ReconnectConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay" env:"RECONNECT_INITIAL_DELAY" env-default:"3s"`
	MaxDelay     time.Duration `yaml:"max_delay" env:"RECONNECT_MAX_DELAY" env-default:"48s"`
}

// RoomURL возвращает адрес канала для комнаты: <base>/<room>/.
func (c ChatConfig) RoomURL(room string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + room + "/"
}

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// ВАЖНО: после чтения файла накладываем ENV-переменные поверх значений из YAML.
func Load(path string) (*Config, error) {
	var cfg Config

	// чтение файла + overlay ENV.
	tryRead := func(p string) (*Config, error) {
		if p == "" {
			return nil, fmt.Errorf("empty config path")
		}

		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return &cfg, nil
	}

	// 1) Явный путь.
	if path != "" {
		return tryRead(path)
	}

	// 2) CONFIG_PATH.
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	// 3) ./local.yaml.
	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	// 4) Только ENV.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	return &cfg, nil
}

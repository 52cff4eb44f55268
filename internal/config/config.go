package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

type Environment string

const (
	EnvLocal      Environment = "local"
	EnvDev        Environment = "dev"
	EnvStage      Environment = "stage"
	EnvProduction Environment = "production"
)

// Стили генерации отображаемых имен локальных элементов расписания
type NamingStyle string

const (
	NamingStyleTimeWindow     NamingStyle = "time_window"
	NamingStyleTypeTimeWindow NamingStyle = "type_time_window"
	NamingStyleNumbered       NamingStyle = "numbered"
)

type Config struct {
	App struct {
		Version  string      `env:"APP_VERSION" envDefault:"local"`
		Env      Environment `env:"APP_ENV" envDefault:"local"`
		Timezone string      `env:"APP_TIMEZONE" envDefault:"Europe/Moscow"`
	}

	HTTP struct {
		Port     string `env:"HTTP_SERVER_PORT" envDefault:"8080"`
		Host     string `env:"HTTP_SERVER_HOST" envDefault:"localhost"`
		Username string `env:"HTTP_AUTH_USERNAME" envDefault:"charge_sync"`
		Password string `env:"HTTP_AUTH_PASSWORD" envDefault:"charge_sync"`
	}

	Cloud struct {
		URL    string `env:"CLOUD_API_URL"`
		Bearer string `env:"CLOUD_API_BEARER"`
	}

	Vehicles struct {
		// Неймспейс устройства, входит в ключи элементов локального хранилища
		Namespace string   `env:"VEHICLE_NAMESPACE" envDefault:"ev_charge"`
		Serials   []string `env:"VEHICLE_SERIALS" envSeparator:","`
	}

	Sync struct {
		Enabled bool `env:"SYNC_ENABLED" envDefault:"true"`
		// Видимость вне-пиковых (read-only) слотов в локальном хранилище
		ExposeOffPeak     bool          `env:"SYNC_EXPOSE_OFF_PEAK" envDefault:"true"`
		Interval          time.Duration `env:"SYNC_INTERVAL" envDefault:"5m"`
		SuppressionWindow time.Duration `env:"SYNC_SUPPRESSION_WINDOW" envDefault:"2s"`
		NamingStyle       NamingStyle   `env:"SYNC_NAMING_STYLE" envDefault:"time_window"`
	}

	MappingStore struct {
		// Драйвер: file (json) или sqlite
		Driver string `env:"MAPPING_STORE_DRIVER" envDefault:"file"`
		Path   string `env:"MAPPING_STORE_PATH" envDefault:"./data/slot_mappings.json"`
	}

	ScheduleStore struct {
		// Драйвер: memory или file (yaml + fsnotify)
		Driver string `env:"SCHEDULE_STORE_DRIVER" envDefault:"memory"`
		Path   string `env:"SCHEDULE_STORE_PATH" envDefault:"./data/schedules.yaml"`
	}

	RabbitMQ struct {
		Enabled bool   `env:"RABBITMQ_ENABLED"`
		URL     string `env:"RABBITMQ_URL"`
		Queue   string `env:"RABBITMQ_QUEUE" envDefault:"charge-schedule-sync.vehicle-data"`
	}
}

func NewConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Приведение окружения к нижнему регистру для унификации
	cfg.App.Env = Environment(strings.ToLower(string(cfg.App.Env)))

	switch cfg.Sync.NamingStyle {
	case NamingStyleTimeWindow, NamingStyleTypeTimeWindow, NamingStyleNumbered:
	default:
		return nil, fmt.Errorf("unknown naming style: %s", cfg.Sync.NamingStyle)
	}

	if cfg.Sync.Interval <= 0 {
		return nil, fmt.Errorf("sync interval must be positive, got %s", cfg.Sync.Interval)
	}

	return cfg, nil
}

func (c *Config) IsLocal() bool {
	return c.App.Env == EnvLocal
}

func (c *Config) IsNotLocal() bool {
	return c.App.Env == EnvDev || c.App.Env == EnvStage || c.App.Env == EnvProduction
}

package app

import (
	"os"
	"strconv"
	"time"
)

// Config описывает настройки запуска сервиса.
type Config struct {
	// MetricsAddr — адрес HTTP-сервера метрик и health-проверок.
	MetricsAddr string
	// PostgresDSN — строка подключения к PostgreSQL. Пустая строка
	// означает in-memory хранилище.
	PostgresDSN string
	// RedisAddr — адрес Redis для кэша каталога. Пустая строка означает
	// локальный in-memory кэш.
	RedisAddr string
	// KafkaBrokers — список брокеров через запятую. Пустая строка
	// отключает публикацию событий.
	KafkaBrokers string
	// CacheTTL — время жизни записи в кэше каталога.
	CacheTTL time.Duration
	// SweepInterval — частота проходов sweeper'а по журналу резервов.
	SweepInterval time.Duration
	// StaleAge — возраст pending-записи журнала, после которого она
	// считается зависшей.
	StaleAge time.Duration
}

// DefaultConfig возвращает конфигурацию для локального запуска.
func DefaultConfig() Config {
	return Config{
		MetricsAddr:   ":9090",
		CacheTTL:      5 * time.Minute,
		SweepInterval: 30 * time.Second,
		StaleAge:      5 * time.Minute,
	}
}

// ReadConfig собирает конфигурацию из переменных окружения поверх дефолтов.
func ReadConfig() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("SHOP_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("SHOP_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("SHOP_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("SHOP_KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = v
	}
	if d, ok := readDuration("SHOP_CACHE_TTL"); ok {
		cfg.CacheTTL = d
	}
	if d, ok := readDuration("SHOP_SWEEP_INTERVAL"); ok {
		cfg.SweepInterval = d
	}
	if d, ok := readDuration("SHOP_STALE_AGE"); ok {
		cfg.StaleAge = d
	}
	return cfg
}

// readDuration принимает либо duration-строку ("45s"), либо число секунд.
func readDuration(name string) (time.Duration, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d, true
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second, true
	}
	return 0, false
}

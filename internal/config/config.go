package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config хранит все настройки приложения
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Assessment AssessmentConfig
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port         string
	ReadTimeout  int `mapstructure:"read_timeout"`  // в секундах
	WriteTimeout int `mapstructure:"write_timeout"` // в секундах
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	// LogLevel: уровень логгера GORM ("silent", "error", "warn", "info"). По умолчанию "warn".
	LogLevel string `mapstructure:"log_level"`
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	// Mode: Режим работы Redis ("single", "sentinel", "cluster"). По умолчанию "single".
	Mode string `mapstructure:"mode"`

	// Addrs: Список адресов Redis (хост:порт)
	Addrs []string `mapstructure:"addrs"`

	// Addr: Адрес для режима 'single', если Addrs пустой
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: Имя мастер-сервера Redis (только для режима "sentinel")
	MasterName string `mapstructure:"master_name"`

	MaxRetries      int `mapstructure:"max_retries"`
	MinRetryBackoff int `mapstructure:"min_retry_backoff"` // в миллисекундах
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"` // в миллисекундах
}

// Бэкенды хранилища сессий
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// AssessmentConfig содержит настройки адаптивного тестирования
type AssessmentConfig struct {
	DefaultQuestionCount      int    `mapstructure:"default_question_count"`
	DefaultStartingDifficulty int    `mapstructure:"default_starting_difficulty"`
	MinDifficulty             int    `mapstructure:"min_difficulty"`
	MaxDifficulty             int    `mapstructure:"max_difficulty"`
	SelectionWindow           int    `mapstructure:"selection_window"`
	SessionBackend            string `mapstructure:"session_backend"`

	// SessionTTL: время простоя, после которого сессия считается брошенной. 0 отключает истечение.
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`

	DuplicateStartPolicy string `mapstructure:"duplicate_start_policy"`

	// ItemCacheTTL: время жизни пула заданий в Redis. 0 отключает кеш.
	ItemCacheTTL time.Duration `mapstructure:"item_cache_ttl"`

	// SubmitRateLimit: число ответов в минуту на одну сессию тестирования. 0 отключает лимит.
	SubmitRateLimit int `mapstructure:"submit_rate_limit"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.read_timeout", 15)
	vip.SetDefault("server.write_timeout", 15)

	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("database.log_level", "warn")

	vip.SetDefault("redis.mode", "single")

	vip.SetDefault("assessment.default_question_count", 10)
	vip.SetDefault("assessment.default_starting_difficulty", 225)
	vip.SetDefault("assessment.min_difficulty", 100)
	vip.SetDefault("assessment.max_difficulty", 350)
	vip.SetDefault("assessment.selection_window", 10)
	vip.SetDefault("assessment.session_backend", SessionBackendMemory)
	vip.SetDefault("assessment.session_ttl", 2*time.Hour)
	vip.SetDefault("assessment.sweep_interval", 5*time.Minute)
	vip.SetDefault("assessment.duplicate_start_policy", "reject")
	vip.SetDefault("assessment.item_cache_ttl", 5*time.Minute)
	vip.SetDefault("assessment.submit_rate_limit", 60)
}

// Load загружает конфигурацию из файла и переменных окружения
func Load(configPath string) (*Config, error) {
	vip := viper.New() // Новый экземпляр, без глобального состояния

	setDefaults(vip)

	// Привязка для секции Database
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")
	vip.BindEnv("database.log_level", "DATABASE_LOG_LEVEL")

	// Привязка для секции Redis
	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	// Привязка для Server
	vip.BindEnv("server.port", "SERVER_PORT")

	// Привязка для секции Assessment
	vip.BindEnv("assessment.default_question_count", "ASSESSMENT_DEFAULT_QUESTION_COUNT")
	vip.BindEnv("assessment.default_starting_difficulty", "ASSESSMENT_DEFAULT_STARTING_DIFFICULTY")
	vip.BindEnv("assessment.selection_window", "ASSESSMENT_SELECTION_WINDOW")
	vip.BindEnv("assessment.session_backend", "ASSESSMENT_SESSION_BACKEND")
	vip.BindEnv("assessment.session_ttl", "ASSESSMENT_SESSION_TTL")
	vip.BindEnv("assessment.sweep_interval", "ASSESSMENT_SWEEP_INTERVAL")
	vip.BindEnv("assessment.duplicate_start_policy", "ASSESSMENT_DUPLICATE_START_POLICY")
	vip.BindEnv("assessment.item_cache_ttl", "ASSESSMENT_ITEM_CACHE_TTL")
	vip.BindEnv("assessment.submit_rate_limit", "ASSESSMENT_SUBMIT_RATE_LIMIT")

	if configPath != "" {
		vip.SetConfigFile(configPath)
		// Файла может не быть: значения приходят из env и умолчаний
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Addr: %s", cfg.Redis.Addr)
		log.Printf("Redis Mode: %s", cfg.Redis.Mode)
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("Session Backend: %s", cfg.Assessment.SessionBackend)
		log.Printf("Session TTL: %s", cfg.Assessment.SessionTTL)
		log.Printf("Duplicate Start Policy: %s", cfg.Assessment.DuplicateStartPolicy)
		log.Printf("-----------------------------------------")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет обязательные и взаимосвязанные параметры
func (c *Config) Validate() error {
	if c.Database.Host == "" || c.Database.DBName == "" || c.Database.User == "" {
		return fmt.Errorf("database configuration (host, dbname, user) is incomplete in config (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}

	a := c.Assessment
	if a.MinDifficulty <= 0 || a.MinDifficulty > a.MaxDifficulty {
		return fmt.Errorf("invalid difficulty range [%d, %d]", a.MinDifficulty, a.MaxDifficulty)
	}
	if a.DefaultStartingDifficulty < a.MinDifficulty || a.DefaultStartingDifficulty > a.MaxDifficulty {
		return fmt.Errorf("default starting difficulty %d is outside [%d, %d]", a.DefaultStartingDifficulty, a.MinDifficulty, a.MaxDifficulty)
	}
	if a.DefaultQuestionCount <= 0 {
		return fmt.Errorf("default question count must be positive, got %d", a.DefaultQuestionCount)
	}
	if a.SelectionWindow < 0 {
		return fmt.Errorf("selection window cannot be negative, got %d", a.SelectionWindow)
	}
	switch a.SessionBackend {
	case SessionBackendMemory, SessionBackendRedis:
	default:
		return fmt.Errorf("unsupported session backend: %s", a.SessionBackend)
	}
	switch a.DuplicateStartPolicy {
	case "reject", "replace":
	default:
		return fmt.Errorf("unsupported duplicate start policy: %s", a.DuplicateStartPolicy)
	}
	if a.SessionBackend == SessionBackendRedis && a.SessionTTL <= 0 {
		return fmt.Errorf("redis session backend requires a positive session_ttl")
	}
	return nil
}

package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Directory modes select which remote contract the sync engine talks to.
const (
	DirectoryModeSheets    = "sheets"
	DirectoryModePeopleAPI = "people_api"
)

// Store drivers for the persisted pending queue and roster cache.
const (
	StoreDriverMemory   = "memory"
	StoreDriverFile     = "file"
	StoreDriverRedis    = "redis"
	StoreDriverPostgres = "postgres"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Log       LogConfig
	CORS      CORSConfig
	Auth      AuthConfig
	Directory DirectoryConfig
	Sync      SyncConfig
	Store     StoreConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Groups    GroupsConfig
	Jobs      JobsConfig
	Metrics   MetricsConfig
}

type LogConfig struct {
	Level  string
	Format string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// AuthConfig guards the staff API. StaffAccounts maps a lower-cased email to a bcrypt hash.
type AuthConfig struct {
	Enabled       bool
	JWTSecret     string
	TokenTTL      time.Duration
	Issuer        string
	StaffAccounts map[string]string
}

// DirectoryConfig points at the spreadsheet-backed service holding applicant data.
type DirectoryConfig struct {
	Mode         string
	SheetsURL    string
	SheetsKey    string
	PeopleAPIURL string
	Timeout      time.Duration
	FetchLimit   int
	TimeZone     string
}

// SyncConfig tunes the optimistic status synchronization engine.
type SyncConfig struct {
	FlushDelay      time.Duration
	UpdatedBy       string
	RefreshInterval time.Duration
	ShutdownTimeout time.Duration
}

// StoreConfig selects where the pending queue and roster cache are persisted.
type StoreConfig struct {
	Driver    string
	Dir       string
	KeyPrefix string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// GroupsConfig configures the mailing-group script notified when applicants are approved.
type GroupsConfig struct {
	ScriptURL string
	Timeout   time.Duration
}

// JobsConfig governs the background worker pool.
type JobsConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

type MetricsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Auth = AuthConfig{
		Enabled:       v.GetBool("AUTH_ENABLED"),
		JWTSecret:     v.GetString("JWT_SECRET"),
		TokenTTL:      parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
		Issuer:        v.GetString("JWT_ISSUER"),
		StaffAccounts: parseStaffAccounts(v.GetString("STAFF_ACCOUNTS")),
	}

	fetchLimit := v.GetInt("DIRECTORY_FETCH_LIMIT")
	if fetchLimit <= 0 {
		fetchLimit = 5000
	}
	cfg.Directory = DirectoryConfig{
		Mode:         strings.ToLower(v.GetString("DIRECTORY_MODE")),
		SheetsURL:    v.GetString("APPS_SCRIPT_URL"),
		SheetsKey:    v.GetString("APPS_SCRIPT_KEY"),
		PeopleAPIURL: v.GetString("PEOPLE_API_URL"),
		Timeout:      parseDuration(v.GetString("DIRECTORY_TIMEOUT"), 15*time.Second),
		FetchLimit:   fetchLimit,
		TimeZone:     v.GetString("DIRECTORY_TIMEZONE"),
	}

	cfg.Sync = SyncConfig{
		FlushDelay:      parseDuration(v.GetString("SYNC_FLUSH_DELAY"), 900*time.Millisecond),
		UpdatedBy:       v.GetString("SYNC_UPDATED_BY"),
		RefreshInterval: parseDuration(v.GetString("SYNC_REFRESH_INTERVAL"), 0),
		ShutdownTimeout: parseDuration(v.GetString("SYNC_SHUTDOWN_TIMEOUT"), 10*time.Second),
	}

	cfg.Store = StoreConfig{
		Driver:    strings.ToLower(v.GetString("STORE_DRIVER")),
		Dir:       v.GetString("STORE_DIR"),
		KeyPrefix: v.GetString("STORE_KEY_PREFIX"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Groups = GroupsConfig{
		ScriptURL: v.GetString("GROUP_SCRIPT_URL"),
		Timeout:   parseDuration(v.GetString("GROUP_SCRIPT_TIMEOUT"), 10*time.Second),
	}

	cfg.Jobs = JobsConfig{
		Workers:    v.GetInt("JOBS_WORKERS"),
		MaxRetries: v.GetInt("JOBS_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("JOBS_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ALLOWED_ORIGINS", "")

	v.SetDefault("AUTH_ENABLED", false)
	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "12h")
	v.SetDefault("JWT_ISSUER", "foster-pipeline-api")
	v.SetDefault("STAFF_ACCOUNTS", "")

	v.SetDefault("DIRECTORY_MODE", DirectoryModeSheets)
	v.SetDefault("APPS_SCRIPT_URL", "")
	v.SetDefault("APPS_SCRIPT_KEY", "")
	v.SetDefault("PEOPLE_API_URL", "http://localhost:3000")
	v.SetDefault("DIRECTORY_TIMEOUT", "15s")
	v.SetDefault("DIRECTORY_FETCH_LIMIT", 5000)
	v.SetDefault("DIRECTORY_TIMEZONE", "America/New_York")

	v.SetDefault("SYNC_FLUSH_DELAY", "900ms")
	v.SetDefault("SYNC_UPDATED_BY", "jay t")
	v.SetDefault("SYNC_REFRESH_INTERVAL", "0s")
	v.SetDefault("SYNC_SHUTDOWN_TIMEOUT", "10s")

	v.SetDefault("STORE_DRIVER", StoreDriverFile)
	v.SetDefault("STORE_DIR", "./state")
	v.SetDefault("STORE_KEY_PREFIX", "foster:")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "foster_pipeline")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 5)
	v.SetDefault("DB_MAX_IDLE_CONNS", 2)

	v.SetDefault("GROUP_SCRIPT_URL", "")
	v.SetDefault("GROUP_SCRIPT_TIMEOUT", "10s")

	v.SetDefault("JOBS_WORKERS", 1)
	v.SetDefault("JOBS_MAX_RETRIES", 3)
	v.SetDefault("JOBS_RETRY_DELAY", "5s")

	v.SetDefault("ENABLE_METRICS", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// parseStaffAccounts reads "email:bcrypt-hash" pairs separated by commas.
func parseStaffAccounts(raw string) map[string]string {
	accounts := make(map[string]string)
	for _, entry := range splitAndTrim(raw) {
		email, hash, ok := strings.Cut(entry, ":")
		if !ok {
			continue
		}
		email = strings.ToLower(strings.TrimSpace(email))
		hash = strings.TrimSpace(hash)
		if email == "" || hash == "" {
			continue
		}
		accounts[email] = hash
	}
	return accounts
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

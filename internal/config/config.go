package config

import (
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Storage  StorageConfig
	Backup   BackupConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
	MaxUploadMB    int
}

// IsDevelopment reports whether the server runs outside production
func (c ServerConfig) IsDevelopment() bool {
	return c.Env != "production"
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
	SSLMode  string
}

// DSN builds a postgres connection URL
func (c DatabaseConfig) DSN() string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.Host + ":" + c.Port,
		Path:   "/" + c.Database,
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	if c.Schema != "" && c.Schema != "public" {
		q.Set("search_path", c.Schema)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

type RedisConfig struct {
	Host       string
	Port       string
	Password   string
	DB         int
	Enabled    bool
	CatalogTTL time.Duration
}

// Addr returns host:port
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

type JWTConfig struct {
	Secret        string
	AccessExpiry  int // in minutes
	RefreshExpiry int // in days
}

// StorageConfig selects where uploaded media and offsite backups go
type StorageConfig struct {
	Driver        string // "local" or "s3"
	LocalDir      string
	PublicBaseURL string
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	UsePathStyle  bool
}

type BackupConfig struct {
	Dir                string
	PgDumpPath         string
	PsqlPath           string
	Compress           bool
	RetentionCount     int
	RetentionDays      int
	PreRestoreSnapshot bool
	UploadOffsite      bool
}

// Load reads configuration from .env, any extra env files and the process environment.
// Extra files are loaded with godotenv and never override variables already set.
func Load(envFiles ...string) *Config {
	for _, f := range envFiles {
		if f == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			log.Printf("Warning: Could not load env file %s: %v", f, err)
		}
	}

	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("SERVER_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("SERVER_MAX_UPLOAD_MB", 10)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_CATALOG_TTL", "5m")
	v.SetDefault("JWT_ACCESS_EXPIRY", 15)
	v.SetDefault("JWT_REFRESH_EXPIRY", 7)
	v.SetDefault("STORAGE_DRIVER", "local")
	v.SetDefault("STORAGE_LOCAL_DIR", "./uploads")
	v.SetDefault("STORAGE_PUBLIC_BASE_URL", "/uploads")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_USE_PATH_STYLE", true)
	v.SetDefault("BACKUP_DIR", "./backups")
	v.SetDefault("BACKUP_PG_DUMP_PATH", "pg_dump")
	v.SetDefault("BACKUP_PSQL_PATH", "psql")
	v.SetDefault("BACKUP_COMPRESS", true)
	v.SetDefault("BACKUP_RETENTION_COUNT", 10)
	v.SetDefault("BACKUP_RETENTION_DAYS", 30)
	v.SetDefault("BACKUP_PRE_RESTORE_SNAPSHOT", true)
	v.SetDefault("BACKUP_UPLOAD_OFFSITE", false)

	if err := v.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Env:            v.GetString("SERVER_ENV"),
			AllowedOrigins: splitList(v.GetString("SERVER_ALLOWED_ORIGINS")),
			MaxUploadMB:    v.GetInt("SERVER_MAX_UPLOAD_MB"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Database: v.GetString("DB_DATABASE"),
			Schema:   v.GetString("DB_SCHEMA"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Redis: RedisConfig{
			Host:       v.GetString("REDIS_HOST"),
			Port:       v.GetString("REDIS_PORT"),
			Password:   v.GetString("REDIS_PASSWORD"),
			DB:         v.GetInt("REDIS_DB"),
			Enabled:    v.GetBool("REDIS_ENABLED"),
			CatalogTTL: v.GetDuration("REDIS_CATALOG_TTL"),
		},
		JWT: JWTConfig{
			Secret:        v.GetString("JWT_SECRET"),
			AccessExpiry:  v.GetInt("JWT_ACCESS_EXPIRY"),
			RefreshExpiry: v.GetInt("JWT_REFRESH_EXPIRY"),
		},
		Storage: StorageConfig{
			Driver:        v.GetString("STORAGE_DRIVER"),
			LocalDir:      v.GetString("STORAGE_LOCAL_DIR"),
			PublicBaseURL: v.GetString("STORAGE_PUBLIC_BASE_URL"),
			Endpoint:      v.GetString("STORAGE_ENDPOINT"),
			Region:        v.GetString("STORAGE_REGION"),
			Bucket:        v.GetString("STORAGE_BUCKET"),
			AccessKey:     v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey:     v.GetString("STORAGE_SECRET_KEY"),
			UseSSL:        v.GetBool("STORAGE_USE_SSL"),
			UsePathStyle:  v.GetBool("STORAGE_USE_PATH_STYLE"),
		},
		Backup: BackupConfig{
			Dir:                v.GetString("BACKUP_DIR"),
			PgDumpPath:         v.GetString("BACKUP_PG_DUMP_PATH"),
			PsqlPath:           v.GetString("BACKUP_PSQL_PATH"),
			Compress:           v.GetBool("BACKUP_COMPRESS"),
			RetentionCount:     v.GetInt("BACKUP_RETENTION_COUNT"),
			RetentionDays:      v.GetInt("BACKUP_RETENTION_DAYS"),
			PreRestoreSnapshot: v.GetBool("BACKUP_PRE_RESTORE_SNAPSHOT"),
			UploadOffsite:      v.GetBool("BACKUP_UPLOAD_OFFSITE"),
		},
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

func getEnv(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	return value
}

func loadEnvString(key string, result *string) {
	s, ok := os.LookupEnv(key)

	if !ok {
		return
	}
	*result = s
}

func loadEnvUint(key string, result *uint) {
	s, ok := os.LookupEnv(key)

	if !ok {
		return
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return
	}
	*result = uint(n)
}

func loadEnvInt(key string, result *int) {
	s, ok := os.LookupEnv(key)

	if !ok {
		return
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return
	}
	*result = n
}

func loadEnvInt64(key string, result *int64) {
	s, ok := os.LookupEnv(key)

	if !ok {
		return
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return
	}
	*result = n
}

func loadEnvBool(key string, result *bool) {
	s, ok := os.LookupEnv(key)

	if !ok {
		return
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return
	}
	*result = b
}

func loadEnvDuration(key string, result *time.Duration) {
	s, ok := os.LookupEnv(key)

	if !ok {
		return
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return
	}
	*result = d
}

/* Configuration */

/* Listen Configuration */

type listenConfig struct {
	Host           string        `json:"host"`
	Port           uint          `json:"port"`
	RequestTimeout time.Duration `json:"request_timeout"`
}

func (l listenConfig) Addr() string {
	return fmt.Sprintf("%s:%d", l.Host, l.Port)
}

func defaultListenConfig() listenConfig {
	return listenConfig{
		Host:           "127.0.0.1",
		Port:           8080,
		RequestTimeout: time.Minute,
	}
}

func (l *listenConfig) loadFromEnv() {
	loadEnvString("LISTEN_HOST", &l.Host)
	loadEnvUint("LISTEN_PORT", &l.Port)
	loadEnvDuration("REQUEST_TIMEOUT", &l.RequestTimeout)
}

/* Log Configuration */

type logConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

func defaultLogConfig() logConfig {
	return logConfig{
		Level:  "info",
		Format: "json",
	}
}

func (l *logConfig) loadFromEnv() {
	loadEnvString("LOG_LEVEL", &l.Level)
	loadEnvString("LOG_FORMAT", &l.Format)
}

/* Storage Configuration */

// Storage backends
const (
	BackendAzure  = "azure"
	BackendGCS    = "gcs"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

type storageConfig struct {
	Backend         string        `json:"backend"`
	Container       string        `json:"container"`
	CreateContainer bool          `json:"create_container"`
	Timeout         time.Duration `json:"timeout"`
	SignConcurrency int           `json:"sign_concurrency"`
	MaxUploadBytes  int64         `json:"max_upload_bytes"`
	// MemoryBaseURL addresses objects of the in-memory backend; the server serves them under its path
	MemoryBaseURL string `json:"memory_base_url"`
}

func defaultStorageConfig() storageConfig {
	return storageConfig{
		Backend:         BackendAzure,
		Container:       "photos",
		CreateContainer: false,
		Timeout:         30 * time.Second,
		SignConcurrency: 8,
		MaxUploadBytes:  20 << 20,
		MemoryBaseURL:   "http://localhost:8080/objects",
	}
}

func (s *storageConfig) loadFromEnv() {
	loadEnvString("STORAGE_BACKEND", &s.Backend)
	loadEnvString("STORAGE_CONTAINER", &s.Container)
	loadEnvBool("STORAGE_CREATE_CONTAINER", &s.CreateContainer)
	loadEnvDuration("STORAGE_TIMEOUT", &s.Timeout)
	loadEnvInt("SIGN_CONCURRENCY", &s.SignConcurrency)
	loadEnvInt64("MAX_UPLOAD_BYTES", &s.MaxUploadBytes)
	loadEnvString("STORAGE_MEMORY_BASE_URL", &s.MemoryBaseURL)
}

/* GCS Configuration */

type GCSConfig struct {
	ProjectID       string
	CredentialsFile string
	Bucket          string
}

func (g *GCSConfig) loadFromEnv() {
	g.ProjectID = getEnv("GCS_PROJECT_ID", "")
	g.CredentialsFile = getEnv("GCS_CREDENTIALS_FILE", "")
	g.Bucket = getEnv("GCS_STORAGE_BUCKET", "")
}

func defaultGcsConfig() GCSConfig {
	return GCSConfig{
		ProjectID:       "",
		CredentialsFile: "",
		Bucket:          "",
	}
}

/* S3 Configuration */

type s3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

func (s *s3Config) loadFromEnv() {
	loadEnvString("S3_ENDPOINT", &s.Endpoint)
	loadEnvString("S3_ACCESS_KEY", &s.AccessKey)
	loadEnvString("S3_SECRET_KEY", &s.SecretKey)
	loadEnvString("S3_BUCKET", &s.Bucket)
	loadEnvString("S3_REGION", &s.Region)
	loadEnvBool("S3_USE_SSL", &s.UseSSL)
}

func defaultS3Config() s3Config {
	return s3Config{
		Endpoint: "localhost:9000",
		Bucket:   "photos",
		UseSSL:   false,
	}
}

// String never prints the secret key
func (s s3Config) String() string {
	return fmt.Sprintf("s3Config{Endpoint:%s, Bucket:%s, Region:%s, UseSSL:%t}", s.Endpoint, s.Bucket, s.Region, s.UseSSL)
}

/* Secrets Configuration */

// Secret sources
const (
	SecretSourceEnv   = "env"
	SecretSourceRedis = "redis"
)

type secretsConfig struct {
	Source string
	// EnvVar holds the connection descriptor when Source is env
	EnvVar string
	// RedisKey holds the connection descriptor when Source is redis
	RedisKey string
}

func (s *secretsConfig) loadFromEnv() {
	loadEnvString("SECRETS_SOURCE", &s.Source)
	loadEnvString("SECRETS_ENV_VAR", &s.EnvVar)
	loadEnvString("SECRETS_REDIS_KEY", &s.RedisKey)
}

func defaultSecretsConfig() secretsConfig {
	return secretsConfig{
		Source:   SecretSourceEnv,
		EnvVar:   "STORAGE_CONNECTION_STRING",
		RedisKey: "secrets:storage:connection-string",
	}
}

/* NATS Configuration */

type natsConfig struct {
	Enabled  bool
	Host     string
	Port     uint
	Username string
	Password string
	Stream   string
}

func (c *natsConfig) loadFromEnv() {
	loadEnvBool("NATS_ENABLED", &c.Enabled)
	c.Host = getEnv("NATS_HOST", c.Host)
	loadEnvUint("NATS_PORT", &c.Port)
	c.Username = getEnv("NATS_USER", "")
	c.Password = getEnv("NATS_PASSWORD", "")
	loadEnvString("NATS_STREAM", &c.Stream)
}

func (c *natsConfig) URL() string {
	return fmt.Sprintf("nats://%s:%d", c.Host, c.Port)
}

func defaultNatsConfig() natsConfig {
	return natsConfig{
		Enabled:  false,
		Host:     "localhost",
		Port:     4222,
		Username: "",
		Password: "",
		Stream:   "PHOTOS",
	}
}

/* Redis Configuration */

type redisConfig struct {
	Host     string `json:"host"`
	Port     uint   `json:"port"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

func (r *redisConfig) loadFromEnv() {
	loadEnvString("REDIS_HOST", &r.Host)
	loadEnvUint("REDIS_PORT", &r.Port)
	loadEnvString("REDIS_PASSWORD", &r.Password)

	// Load DB number with a default of 0
	if dbStr := getEnv("REDIS_DB", "0"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			r.DB = db
		}
	}
}

func (r redisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func defaultRedisConfig() redisConfig {
	return redisConfig{
		Host:     "localhost",
		Port:     6379,
		Password: "",
		DB:       0,
	}
}

type Config struct {
	Listen  listenConfig
	Log     logConfig
	Storage storageConfig
	GCS     GCSConfig
	S3      s3Config
	Secrets secretsConfig
	Nats    natsConfig
	Redis   redisConfig
}

func (c *Config) LoadFromEnv() {
	c.Listen.loadFromEnv()
	c.Log.loadFromEnv()
	c.Storage.loadFromEnv()
	c.GCS.loadFromEnv()
	c.S3.loadFromEnv()
	c.Secrets.loadFromEnv()
	c.Nats.loadFromEnv()
	c.Redis.loadFromEnv()
}

// Validate rejects settings the service cannot start with
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendAzure, BackendMemory:
	case BackendGCS:
		if c.GCS.Bucket == "" {
			return fmt.Errorf("GCS_STORAGE_BUCKET is required for the gcs backend")
		}
	case BackendS3:
		if c.S3.Bucket == "" || c.S3.Endpoint == "" {
			return fmt.Errorf("S3_ENDPOINT and S3_BUCKET are required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}

	if c.Storage.Backend == BackendAzure && c.Storage.Container == "" {
		return fmt.Errorf("STORAGE_CONTAINER is required for the azure backend")
	}

	switch c.Secrets.Source {
	case SecretSourceEnv, SecretSourceRedis:
	default:
		return fmt.Errorf("unknown SECRETS_SOURCE %q", c.Secrets.Source)
	}

	if c.Storage.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

func DefaultConfig() Config {
	return Config{
		Listen:  defaultListenConfig(),
		Log:     defaultLogConfig(),
		Storage: defaultStorageConfig(),
		GCS:     defaultGcsConfig(),
		S3:      defaultS3Config(),
		Secrets: defaultSecretsConfig(),
		Nats:    defaultNatsConfig(),
		Redis:   defaultRedisConfig(),
	}
}

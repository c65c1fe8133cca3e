package core

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Backend names accepted by the config.
const (
	RelationalSQLite   = "sqlite"
	RelationalPostgres = "postgres"
	RelationalMySQL    = "mysql"

	VectorQdrant = "qdrant"
	VectorChrome = "chromem"
	VectorNone   = "none"

	EmbedderOpenAI = "openai"
	EmbedderMock   = "mock"
)

// Config holds the complete orchestrator configuration.
//
// The relational backend is the durability guarantee and is required. The
// vector backend and embedder are optional: without them the client still
// stores and retrieves memories, keyword-only.
type Config struct {
	// Relational selects the required primary store.
	Relational RelationalConfig `json:"relational"`

	// Vector selects the best-effort similarity store.
	Vector VectorConfig `json:"vector"`

	// Embedder selects the text-embedding provider.
	Embedder EmbedderConfig `json:"embedder"`

	// RelationalTimeout bounds each relational call. Defaults to 5s.
	RelationalTimeout time.Duration `json:"relational_timeout"`

	// VectorTimeout bounds each vector call. Defaults to 2s.
	VectorTimeout time.Duration `json:"vector_timeout"`

	// EmbedTimeout bounds each embedding call. Defaults to 3s.
	EmbedTimeout time.Duration `json:"embed_timeout"`
}

// RelationalConfig selects and configures the primary store.
type RelationalConfig struct {
	// Provider is one of: sqlite, postgres, mysql.
	Provider string `json:"provider"`

	// DBPath is the database file path (sqlite only).
	DBPath string `json:"db_path,omitempty"`

	// Host, Port, User, Password, DBName configure server backends.
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
	DBName   string `json:"db_name,omitempty"`

	// SSLMode applies to postgres. Defaults to "disable".
	SSLMode string `json:"ssl_mode,omitempty"`
}

// VectorConfig selects and configures the similarity store.
type VectorConfig struct {
	// Provider is one of: qdrant, chromem, none.
	Provider string `json:"provider"`

	// BaseURL is the Qdrant server root.
	BaseURL string `json:"base_url,omitempty"`

	// APIKey authenticates Qdrant requests when required.
	APIKey string `json:"api_key,omitempty"`

	// Dir is the chromem persistence directory; empty means in-memory.
	Dir string `json:"dir,omitempty"`
}

// EmbedderConfig selects and configures the embedding provider.
type EmbedderConfig struct {
	// Provider is one of: openai, mock. Empty means no embedder.
	Provider string `json:"provider"`

	// APIKey is the provider API key.
	APIKey string `json:"api_key,omitempty"`

	// Model is the embedding model name.
	Model string `json:"model,omitempty"`

	// BaseURL overrides the API endpoint.
	BaseURL string `json:"base_url,omitempty"`

	// Dimensions is the embedding vector size.
	Dimensions int `json:"dimensions,omitempty"`
}

// DefaultConfig returns a local, dependency-free configuration: SQLite
// relational store, embedded chromem vector store, mock embedder.
func DefaultConfig() *Config {
	return &Config{
		Relational: RelationalConfig{
			Provider: RelationalSQLite,
			DBPath:   "./neuromem.db",
		},
		Vector: VectorConfig{
			Provider: VectorChrome,
		},
		Embedder: EmbedderConfig{
			Provider: EmbedderMock,
		},
	}
}

// LoadConfigFromEnv reads configuration from NEUROMEM_* environment
// variables, loading a .env file first if one is present.
func LoadConfigFromEnv() (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if v := os.Getenv("NEUROMEM_RELATIONAL_PROVIDER"); v != "" {
		cfg.Relational.Provider = v
	}
	if v := os.Getenv("NEUROMEM_DB_PATH"); v != "" {
		cfg.Relational.DBPath = v
	}
	cfg.Relational.Host = getEnvWithDefault("NEUROMEM_DB_HOST", cfg.Relational.Host)
	cfg.Relational.Port = getEnvInt("NEUROMEM_DB_PORT", cfg.Relational.Port)
	cfg.Relational.User = getEnvWithDefault("NEUROMEM_DB_USER", cfg.Relational.User)
	cfg.Relational.Password = getEnvWithDefault("NEUROMEM_DB_PASSWORD", cfg.Relational.Password)
	cfg.Relational.DBName = getEnvWithDefault("NEUROMEM_DB_NAME", cfg.Relational.DBName)
	cfg.Relational.SSLMode = getEnvWithDefault("NEUROMEM_DB_SSLMODE", cfg.Relational.SSLMode)

	if v := os.Getenv("NEUROMEM_VECTOR_PROVIDER"); v != "" {
		cfg.Vector.Provider = v
	}
	cfg.Vector.BaseURL = getEnvWithDefault("NEUROMEM_QDRANT_URL", cfg.Vector.BaseURL)
	cfg.Vector.APIKey = getEnvWithDefault("NEUROMEM_QDRANT_API_KEY", cfg.Vector.APIKey)
	cfg.Vector.Dir = getEnvWithDefault("NEUROMEM_VECTOR_DIR", cfg.Vector.Dir)

	if v := os.Getenv("NEUROMEM_EMBEDDER_PROVIDER"); v != "" {
		cfg.Embedder.Provider = v
	}
	cfg.Embedder.APIKey = getEnvWithDefault("NEUROMEM_EMBEDDING_API_KEY", cfg.Embedder.APIKey)
	cfg.Embedder.Model = getEnvWithDefault("NEUROMEM_EMBEDDING_MODEL", cfg.Embedder.Model)
	cfg.Embedder.BaseURL = getEnvWithDefault("NEUROMEM_EMBEDDING_BASE_URL", cfg.Embedder.BaseURL)
	cfg.Embedder.Dimensions = getEnvInt("NEUROMEM_EMBEDDING_DIMENSIONS", cfg.Embedder.Dimensions)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigFromEnvFile loads the given .env file, then reads the
// environment as LoadConfigFromEnv does.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, fmt.Errorf("%w: load env file %s: %v", ErrInvalidConfig, envPath, err)
	}
	return LoadConfigFromEnv()
}

// LoadConfigFromJSON reads configuration from a JSON file.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read config file %s: %v", ErrInvalidConfig, path, err)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse config file %s: %v", ErrInvalidConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and fills in defaults.
func (c *Config) Validate() error {
	switch c.Relational.Provider {
	case RelationalSQLite:
		if c.Relational.DBPath == "" {
			c.Relational.DBPath = "./neuromem.db"
		}
	case RelationalPostgres, RelationalMySQL:
		if c.Relational.Host == "" || c.Relational.DBName == "" {
			return fmt.Errorf("%w: %s requires host and db name", ErrInvalidConfig, c.Relational.Provider)
		}
	default:
		return fmt.Errorf("%w: unknown relational provider %q", ErrInvalidConfig, c.Relational.Provider)
	}

	switch c.Vector.Provider {
	case VectorQdrant, VectorChrome, VectorNone, "":
	default:
		return fmt.Errorf("%w: unknown vector provider %q", ErrInvalidConfig, c.Vector.Provider)
	}

	switch c.Embedder.Provider {
	case EmbedderMock, "":
	case EmbedderOpenAI:
		if c.Embedder.APIKey == "" {
			return fmt.Errorf("%w: openai embedder requires an API key", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown embedder provider %q", ErrInvalidConfig, c.Embedder.Provider)
	}

	if c.RelationalTimeout <= 0 {
		c.RelationalTimeout = 5 * time.Second
	}
	if c.VectorTimeout <= 0 {
		c.VectorTimeout = 2 * time.Second
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = 3 * time.Second
	}
	return nil
}

func getEnvWithDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

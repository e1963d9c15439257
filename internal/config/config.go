// Package config loads process configuration once at startup. Nothing
// in this package is read again after Load returns; the resulting
// Config is passed down explicitly through the application container
// rather than fetched through a package-level singleton.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds every recognized environment option.
type Config struct {
	AdminAPIKey string

	LLMBaseURL string
	LLMModel   string

	EmbeddingBaseURL string
	EmbeddingModel   string

	VectorStoreDir string
	CollectionName string

	UploadDir         string
	MaxFileSizeMB     int
	AllowedExtensions []string

	ChunkSize     int
	ChunkOverlap  int
	ChunkStrategy string

	TopKResults         int
	ScoreThreshold      float32
	HistoryBudgetTokens int

	CORSOrigins []string

	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	Debug         bool

	Host string
	Port int
}

// Load reads every option from the process environment, applies
// defaults, and validates the result. Invalid configuration is a
// programming error — the caller treats a non-nil error as fatal at
// startup.
func Load() (*Config, error) {
	cfg := &Config{
		AdminAPIKey:         os.Getenv("ADMIN_API_KEY"),
		LLMBaseURL:          envDefault("LLM_BASE_URL", "http://localhost:11434"),
		LLMModel:            envDefault("LLM_MODEL", "llama3.2"),
		EmbeddingBaseURL:    envDefault("EMBEDDING_BASE_URL", envDefault("LLM_BASE_URL", "http://localhost:11434")),
		EmbeddingModel:      envDefault("EMBEDDING_MODEL", "nomic-embed-text"),
		VectorStoreDir:      envDefault("VECTOR_STORE_DIR", "./data/vectors"),
		CollectionName:      envDefault("COLLECTION_NAME", "default"),
		UploadDir:           envDefault("UPLOAD_DIR", "./data/uploads"),
		MaxFileSizeMB:       envInt("MAX_FILE_SIZE_MB", 10),
		AllowedExtensions:   envList("ALLOWED_EXTENSIONS", []string{".pdf", ".md", ".txt", ".docx"}),
		ChunkSize:           envInt("CHUNK_SIZE", 1000),
		ChunkOverlap:        envInt("CHUNK_OVERLAP", 150),
		ChunkStrategy:       envDefault("CHUNK_STRATEGY", "boundary"),
		TopKResults:         envInt("TOP_K_RESULTS", 5),
		ScoreThreshold:      envFloat("SCORE_THRESHOLD", 0),
		HistoryBudgetTokens: envInt("HISTORY_BUDGET_TOKENS", 2000),
		CORSOrigins:         envList("CORS_ORIGINS", []string{"*"}),
		LogPath:             os.Getenv("LOG_PATH"),
		LogMaxSizeMB:        envInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups:       envInt("LOG_MAX_BACKUPS", 7),
		LogMaxAgeDays:       envInt("LOG_MAX_AGE_DAYS", 28),
		Debug:               envBool("DEBUG", false),
		Host:                envDefault("HOST", "0.0.0.0"),
		Port:                envInt("PORT", 8080),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.AdminAPIKey) < 16 {
		return fmt.Errorf("config: ADMIN_API_KEY must be set and at least 16 characters")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("config: CHUNK_SIZE must be positive")
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("config: CHUNK_OVERLAP must be non-negative")
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("config: CHUNK_OVERLAP (%d) must be < CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.ChunkStrategy != "boundary" && c.ChunkStrategy != "recursive" {
		return fmt.Errorf("config: CHUNK_STRATEGY must be %q or %q, got %q", "boundary", "recursive", c.ChunkStrategy)
	}
	if c.TopKResults <= 0 {
		return fmt.Errorf("config: TOP_K_RESULTS must be positive")
	}
	if c.MaxFileSizeMB <= 0 {
		return fmt.Errorf("config: MAX_FILE_SIZE_MB must be positive")
	}
	return nil
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float32) float32 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return fallback
	}
	return float32(f)
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

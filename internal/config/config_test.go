package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"ADMIN_API_KEY", "LLM_BASE_URL", "LLM_MODEL", "EMBEDDING_BASE_URL",
		"EMBEDDING_MODEL", "VECTOR_STORE_DIR", "COLLECTION_NAME", "UPLOAD_DIR",
		"MAX_FILE_SIZE_MB", "ALLOWED_EXTENSIONS", "CHUNK_SIZE", "CHUNK_OVERLAP",
		"CHUNK_STRATEGY", "TOP_K_RESULTS", "SCORE_THRESHOLD", "HISTORY_BUDGET_TOKENS",
		"CORS_ORIGINS",
	}
	for _, k := range keys {
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_RejectsShortAdminKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADMIN_API_KEY", "short")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_RejectsOverlapGESize(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADMIN_API_KEY", "0123456789abcdef")
	t.Setenv("CHUNK_SIZE", "100")
	t.Setenv("CHUNK_OVERLAP", "100")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADMIN_API_KEY", "0123456789abcdef")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 1000, cfg.ChunkSize)
	require.Equal(t, 150, cfg.ChunkOverlap)
	require.Equal(t, "boundary", cfg.ChunkStrategy)
	require.Equal(t, 5, cfg.TopKResults)
	require.Equal(t, []string{".pdf", ".md", ".txt", ".docx"}, cfg.AllowedExtensions)
}

func TestLoad_AcceptsRecursiveChunkStrategy(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADMIN_API_KEY", "0123456789abcdef")
	t.Setenv("CHUNK_STRATEGY", "recursive")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "recursive", cfg.ChunkStrategy)
}

func TestLoad_RejectsUnknownChunkStrategy(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADMIN_API_KEY", "0123456789abcdef")
	t.Setenv("CHUNK_STRATEGY", "quantum")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_ParsesLists(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADMIN_API_KEY", "0123456789abcdef")
	t.Setenv("ALLOWED_EXTENSIONS", ".pdf, .txt")
	t.Setenv("CORS_ORIGINS", "https://a.example.com,https://b.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{".pdf", ".txt"}, cfg.AllowedExtensions)
	require.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
}

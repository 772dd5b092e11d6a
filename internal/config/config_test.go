package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAnalyzer_Defaults(t *testing.T) {
	t.Setenv("PROJECT_ID", "swym-test")

	cfg, err := LoadAnalyzer()
	require.NoError(t, err)
	assert.Equal(t, "swym-test", cfg.ProjectID)
	assert.Equal(t, "artifacts", cfg.Namespace)
	assert.Equal(t, BackendVertex, cfg.StructuringBackend)
	assert.Equal(t, "europe-west1", cfg.VertexAIRegion)
	assert.Equal(t, 50, cfg.MinTextLength)
}

func TestLoadAnalyzer_MissingProject(t *testing.T) {
	t.Setenv("PROJECT_ID", "")

	_, err := LoadAnalyzer()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROJECT_ID")
}

func TestLoadAnalyzer_GeminiNeedsKey(t *testing.T) {
	t.Setenv("PROJECT_ID", "swym-test")
	t.Setenv("STRUCTURING_BACKEND", "gemini")
	t.Setenv("GEMINI_API_KEY", "")

	_, err := LoadAnalyzer()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")

	t.Setenv("GEMINI_API_KEY", "k")
	cfg, err := LoadAnalyzer()
	require.NoError(t, err)
	assert.Equal(t, BackendGemini, cfg.StructuringBackend)
}

func TestLoadAnalyzer_UnknownBackend(t *testing.T) {
	t.Setenv("PROJECT_ID", "swym-test")
	t.Setenv("STRUCTURING_BACKEND", "ocr")

	_, err := LoadAnalyzer()
	assert.ErrorContains(t, err, "unknown STRUCTURING_BACKEND")
}

func TestLoadClient(t *testing.T) {
	t.Setenv("PROJECT_ID", "swym-test")
	t.Setenv("APP_ID", "app-1")
	t.Setenv("UPLOAD_BUCKET", "swym-uploads")

	cfg, err := LoadClient()
	require.NoError(t, err)
	assert.Equal(t, "app-1", cfg.TenantID)
	assert.Equal(t, "swym-uploads", cfg.UploadBucket)
	assert.Equal(t, "artifacts", cfg.Namespace)
}

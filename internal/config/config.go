// Package config loads service configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

const (
	BackendVertex = "vertex"
	BackendGemini = "gemini"
)

// Analyzer configures the ingestion function.
type Analyzer struct {
	ProjectID          string `env:"PROJECT_ID,required,notEmpty"`
	Namespace          string `env:"ARTIFACT_NAMESPACE" envDefault:"artifacts"`
	StructuringBackend string `env:"STRUCTURING_BACKEND" envDefault:"vertex"`
	VertexAIRegion     string `env:"VERTEX_AI_REGION" envDefault:"europe-west1"`
	GeminiAPIKey       string `env:"GEMINI_API_KEY"`
	Model              string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	// MinTextLength is the shortest trimmed PDF text layer still sent as text.
	MinTextLength int    `env:"MIN_TEXT_LENGTH" envDefault:"50"`
	TempDir       string `env:"ANALYZER_TEMP_DIR"`
}

// Client configures the dashboard client.
type Client struct {
	ProjectID    string `env:"PROJECT_ID,required,notEmpty"`
	Namespace    string `env:"ARTIFACT_NAMESPACE" envDefault:"artifacts"`
	TenantID     string `env:"APP_ID,required,notEmpty"`
	UploadBucket string `env:"UPLOAD_BUCKET,required,notEmpty"`
}

// LoadAnalyzer parses and validates the analyzer configuration.
func LoadAnalyzer() (*Analyzer, error) {
	var cfg Analyzer
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Analyzer) Validate() error {
	switch c.StructuringBackend {
	case BackendVertex:
		if c.VertexAIRegion == "" {
			return fmt.Errorf("VERTEX_AI_REGION must be set for the %s backend", BackendVertex)
		}
	case BackendGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY must be set for the %s backend", BackendGemini)
		}
	default:
		return fmt.Errorf("unknown STRUCTURING_BACKEND %q", c.StructuringBackend)
	}
	if c.MinTextLength < 0 {
		return fmt.Errorf("MIN_TEXT_LENGTH must not be negative, got %d", c.MinTextLength)
	}
	return nil
}

// LoadClient parses the dashboard client configuration.
func LoadClient() (*Client, error) {
	var cfg Client
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

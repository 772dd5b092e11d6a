package gcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/Ge9Nico/SWYM/internal/structuring"
)

// GeminiModel is the structuring backend served by the Gemini API with an API key.
type GeminiModel struct {
	PolicyModel *genai.GenerativeModel
	baseClient  *genai.Client
}

// NewGeminiModel creates a Gemini API client with the policy analysis model configured.
func NewGeminiModel(ctx context.Context, apiKey, modelName string) (*GeminiModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("NewGeminiModel: apiKey cannot be empty")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	baseClient, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	policyModel := baseClient.GenerativeModel(modelName)
	policyModel.ResponseMIMEType = "application/json"
	policyModel.SetTemperature(0)

	return &GeminiModel{
		PolicyModel: policyModel,
		baseClient:  baseClient,
	}, nil
}

// Generate sends req to the policy model and returns the concatenated text of the first candidate.
func (m *GeminiModel) Generate(ctx context.Context, req structuring.Request) (string, error) {
	resp, err := m.PolicyModel.GenerateContent(ctx, geminiParts(req)...)
	if err != nil {
		return "", fmt.Errorf("failed to generate content from gemini: %w", err)
	}
	return geminiResponseText(resp), nil
}

func (m *GeminiModel) Close() error {
	if m.baseClient != nil {
		return m.baseClient.Close()
	}
	return nil
}

func geminiParts(req structuring.Request) []genai.Part {
	if req.Multimodal() {
		return []genai.Part{
			genai.Text(req.Prompt()),
			genai.Blob{MIMEType: req.MIMEType, Data: req.InlineData},
		}
	}
	return []genai.Part{genai.Text(req.Prompt())}
}

func geminiResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}
